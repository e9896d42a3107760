// Package entities contains core business entities.
// These are pure domain objects with no knowledge of storage or transport.
package entities

import "encoding/json"

// Unknown is the placeholder used for missing provenance fields.
const Unknown = "unknown"

// ChunkMetadata is the provenance stored alongside every chunk.
type ChunkMetadata struct {
	Source      string `json:"source,omitempty"`
	Type        string `json:"type,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	PageNumber  string `json:"page_number,omitempty"` // page index or "unknown"
	PageRange   string `json:"page_range,omitempty"`
	ChunkNum    string `json:"chunk_num,omitempty"`
	TotalChunks string `json:"total_chunks,omitempty"`
}

// WithDefaults fills the fields citations depend on.
func (m ChunkMetadata) WithDefaults() ChunkMetadata {
	if m.FileName == "" {
		m.FileName = Unknown
	}
	if m.PageRange == "" {
		m.PageRange = Unknown
	}
	return m
}

// Chunk is a bounded slice of a document's extracted text. Immutable once stored.
type Chunk struct {
	ID        string
	Text      string
	Metadata  ChunkMetadata
	Embedding []float32 // populated by the store, never exposed over HTTP
}

// RetrievalResult is one ranked hit for a query. Distance is always set:
// lower means more similar.
type RetrievalResult struct {
	Text     string
	Metadata ChunkMetadata
	Distance float64
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ConversationTurn is a single message in a conversation.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// PipelineRequest is one question to answer. The caller owns the history;
// nothing is persisted between calls.
type PipelineRequest struct {
	Query       string
	History     []ConversationTurn
	PriorChunks []string
	Model       string

	// Optional per-call retrieval overrides.
	NResults    *int
	MaxDistance *float64
}

// Page is one unit of extracted text from a source document.
type Page struct {
	FileName   string
	FileType   string
	PageNumber int
	Text       string
}

// MarshalJSON keeps the wire shape flat, matching the metadata keys
// clients already read.
func (c Chunk) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID       string        `json:"id"`
		Text     string        `json:"text"`
		Metadata ChunkMetadata `json:"metadata"`
	}{c.ID, c.Text, c.Metadata})
}
