package entities

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkMetadata_WithDefaults(t *testing.T) {
	m := ChunkMetadata{Source: "a.pdf"}.WithDefaults()

	assert.Equal(t, Unknown, m.FileName)
	assert.Equal(t, Unknown, m.PageRange)
	assert.Equal(t, "a.pdf", m.Source)
}

func TestChunkMetadata_WithDefaultsKeepsValues(t *testing.T) {
	m := ChunkMetadata{FileName: "manual.pdf", PageRange: "3"}.WithDefaults()

	assert.Equal(t, "manual.pdf", m.FileName)
	assert.Equal(t, "3", m.PageRange)
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAssistant.Valid())
	assert.True(t, RoleSystem.Valid())
	assert.False(t, Role("tool").Valid())
}

func TestChunk_MarshalJSONOmitsEmbedding(t *testing.T) {
	c := Chunk{
		ID:        "doc_0",
		Text:      "hello",
		Metadata:  ChunkMetadata{FileName: "a.txt", PageRange: "1"},
		Embedding: []float32{0.1, 0.2},
	}

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "doc_0", out["id"])
	assert.NotContains(t, out, "Embedding")
	assert.Equal(t, "a.txt", out["metadata"].(map[string]any)["file_name"])
}

func TestErrors_JoinedCauseIsMatchable(t *testing.T) {
	err := fmt.Errorf("adding chunks: %w", errors.Join(ErrStore, errors.New("disk full")))

	assert.ErrorIs(t, err, ErrStore)
	assert.NotErrorIs(t, err, ErrGeneration)
}
