package usecases

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/ragstream/internal/domain/entities"
)

func TestFormatCitation(t *testing.T) {
	tests := []struct {
		name string
		meta entities.ChunkMetadata
		want string
	}{
		{"full", entities.ChunkMetadata{FileName: "manual.pdf", PageRange: "1"}, "[manual.pdf, pages: 1]"},
		{"empty", entities.ChunkMetadata{}, "[unknown, pages: unknown]"},
		{"missing page", entities.ChunkMetadata{FileName: "a.md"}, "[a.md, pages: unknown]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCitation(tt.meta))
		})
	}
}

func TestAssembleContext_Empty(t *testing.T) {
	assert.Equal(t, NoContextMarker, AssembleContext(nil, nil))
	assert.Equal(t, NoContextMarker, AssembleContext([]entities.RetrievalResult{}, []string{}))
}

func TestAssembleContext_DistinctLines(t *testing.T) {
	results := []entities.RetrievalResult{
		{Text: "alpha", Metadata: entities.ChunkMetadata{FileName: "a.md", PageRange: "1"}},
		{Text: "beta", Metadata: entities.ChunkMetadata{FileName: "b.md", PageRange: "2"}},
	}
	prior := []string{"gamma [c.md, pages: 3]"}

	got := AssembleContext(results, prior)

	require.True(t, strings.HasPrefix(got, "### CONTEXT ###\n"))
	blocks := strings.Split(strings.TrimPrefix(got, "### CONTEXT ###\n"), "\n\n")
	assert.Equal(t, []string{
		"alpha [a.md, pages: 1]",
		"beta [b.md, pages: 2]",
		"gamma [c.md, pages: 3]",
	}, blocks)
}

func TestDedupeLines_KeepsFirstSeenOrder(t *testing.T) {
	results := []entities.RetrievalResult{
		{Text: "one", Metadata: entities.ChunkMetadata{FileName: "f", PageRange: "1"}},
		{Text: "two", Metadata: entities.ChunkMetadata{FileName: "f", PageRange: "2"}},
		{Text: "one", Metadata: entities.ChunkMetadata{FileName: "f", PageRange: "1"}},
	}
	prior := []string{"two [f, pages: 2]", "zero [f, pages: 0]", "zero [f, pages: 0]"}

	assert.Equal(t, []string{
		"one [f, pages: 1]",
		"two [f, pages: 2]",
		"zero [f, pages: 0]",
	}, DedupeLines(results, prior))
}

func TestBuildMessages(t *testing.T) {
	history := []entities.ConversationTurn{
		{Role: entities.RoleUser, Content: "earlier question"},
		{Role: entities.RoleAssistant, Content: "earlier answer"},
	}

	msgs := BuildMessages("### CONTEXT ###\nfact [a.md, pages: 1]", history, "new question")

	require.Len(t, msgs, 4)
	assert.Equal(t, entities.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "RAG Assistant Guidelines")
	assert.Contains(t, msgs[0].Content, "This is not covered in my documentation")
	assert.True(t, strings.HasSuffix(msgs[0].Content, "### CONTEXT ###\nfact [a.md, pages: 1]"))
	assert.Equal(t, history, msgs[1:3])
	assert.Equal(t, entities.ConversationTurn{Role: entities.RoleUser, Content: "new question"}, msgs[3])
}

func TestBuildMessages_NoHistory(t *testing.T) {
	msgs := BuildMessages(NoContextMarker, nil, "q")

	require.Len(t, msgs, 2)
	assert.True(t, strings.HasSuffix(msgs[0].Content, NoContextMarker))
	assert.Equal(t, "q", msgs[1].Content)
}
