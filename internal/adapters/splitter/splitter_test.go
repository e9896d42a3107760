package splitter

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitter_RespectsChunkSize(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)

	chunks, err := New(200, 40).SplitText(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 200)
	}
}

func TestSplitter_ShortTextIsOneChunk(t *testing.T) {
	chunks, err := New(1000, 200).SplitText("A single short paragraph.")
	require.NoError(t, err)
	assert.Equal(t, []string{"A single short paragraph."}, chunks)
}

func TestSplitter_PrefersSectionBreaks(t *testing.T) {
	first := "## Install\n" + strings.Repeat("a", 60)
	second := "## Usage\n" + strings.Repeat("b", 60)

	chunks, err := New(100, 0).SplitText(first + "\n\n" + second)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0], "Install")
	assert.Contains(t, chunks[1], "Usage")
}
