// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions; adapters implement them.
package ports

import (
	"context"

	"github.com/0xcro3dile/ragstream/internal/domain/entities"
)

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore persists chunks and answers nearest-neighbour queries.
// Errors returned are joined with entities.ErrStore or entities.ErrValidation.
type ChunkStore interface {
	// Query returns at most k results ordered by ascending distance, none
	// farther than maxDistance. No candidates is an empty slice, not an error.
	// k <= 0 or maxDistance < 0 select the store defaults.
	Query(ctx context.Context, text string, k int, maxDistance float64) ([]entities.RetrievalResult, error)

	// Add stores texts with their metadata under sequential ids. Mismatched
	// lengths are rejected and nothing is written.
	Add(ctx context.Context, texts []string, metadatas []entities.ChunkMetadata) error

	// Clear drops every chunk; id numbering restarts from zero.
	Clear(ctx context.Context) error

	// All returns every stored chunk in id order.
	All(ctx context.Context) ([]entities.Chunk, error)

	// DeleteSource removes all chunks whose file_name matches.
	DeleteSource(ctx context.Context, fileName string) error

	// ReplaceSource swaps the chunks of fileName for texts. Either the new
	// chunks are stored or the old ones remain.
	ReplaceSource(ctx context.Context, fileName string, texts []string, metadatas []entities.ChunkMetadata) error
}

// ChatGenerator streams a chat completion.
type ChatGenerator interface {
	// ChatStream starts generation and returns a channel of tokens. The
	// channel is closed after a Done token or a single terminal Err token.
	// Cancelling ctx releases the backend connection.
	ChatStream(ctx context.Context, messages []entities.ConversationTurn, model string) (<-chan StreamToken, error)

	// ListModels returns the model names the backend can serve.
	ListModels(ctx context.Context) ([]string, error)
}

// DocumentExtractor converts raw file bytes into text pages.
type DocumentExtractor interface {
	// Extract returns the non-empty pages of the named document.
	Extract(ctx context.Context, name string, data []byte) ([]entities.Page, error)

	// SupportedExtensions returns file extensions this extractor handles.
	SupportedExtensions() []string
}

// TextSplitter splits text into overlapping chunks.
type TextSplitter interface {
	SplitText(text string) ([]string, error)
}

// StreamToken represents a single fragment in a streaming LLM response.
type StreamToken struct {
	Content string
	Done    bool
	Err     error
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

func (op FileOperation) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	}
	return "unknown"
}
