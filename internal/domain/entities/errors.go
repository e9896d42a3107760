package entities

import "errors"

// Failure classes. Adapters join one of these with the underlying cause so
// callers can branch with errors.Is without knowing backend error types.
var (
	// ErrExtraction: a document produced empty or unusable text.
	ErrExtraction = errors.New("extraction failed")
	// ErrStore: the chunk store was unavailable or rejected a read/write.
	ErrStore = errors.New("chunk store failure")
	// ErrGeneration: the chat backend errored, timed out or returned a bad status.
	ErrGeneration = errors.New("generation failed")
	// ErrValidation: input was rejected before any mutation.
	ErrValidation = errors.New("validation failed")
)
