package vectordb

import (
	"context"
	"errors"
	"sync"

	"github.com/0xcro3dile/ragstream/internal/domain/entities"
)

// MemoryIndex keeps chunks in process memory. Contents are lost on restart.
type MemoryIndex struct {
	mu     sync.RWMutex
	chunks []entities.Chunk // insertion order == seq order
	ids    map[string]struct{}
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{ids: make(map[string]struct{})}
}

// Insert appends chunks after checking none of the ids exist.
func (m *MemoryIndex) Insert(ctx context.Context, chunks []entities.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range chunks {
		if _, dup := m.ids[c.ID]; dup {
			return errors.New("duplicate chunk id " + c.ID)
		}
	}
	for _, c := range chunks {
		m.ids[c.ID] = struct{}{}
		m.chunks = append(m.chunks, c)
	}
	return nil
}

// Nearest does a brute-force cosine scan.
func (m *MemoryIndex) Nearest(ctx context.Context, embedding []float32, k int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return rank(m.chunks, embedding, k), nil
}

func (m *MemoryIndex) All(ctx context.Context) ([]entities.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]entities.Chunk, len(m.chunks))
	copy(out, m.chunks)
	return out, nil
}

func (m *MemoryIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks), nil
}

func (m *MemoryIndex) NextSeq(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	next := 0
	for _, c := range m.chunks {
		if s := parseSeq(c.ID); s >= next {
			next = s + 1
		}
	}
	return next, nil
}

func (m *MemoryIndex) DeleteWhere(ctx context.Context, fileName string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.chunks[:0]
	removed := 0
	for _, c := range m.chunks {
		if c.Metadata.FileName == fileName {
			delete(m.ids, c.ID)
			removed++
			continue
		}
		kept = append(kept, c)
	}
	m.chunks = kept
	return removed, nil
}

func (m *MemoryIndex) Replace(ctx context.Context, fileName string, chunks []entities.Chunk) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := make([]entities.Chunk, 0, len(m.chunks)+len(chunks))
	ids := make(map[string]struct{}, len(m.chunks)+len(chunks))
	for _, c := range m.chunks {
		if c.Metadata.FileName == fileName {
			continue
		}
		kept = append(kept, c)
		ids[c.ID] = struct{}{}
	}
	removed := len(m.chunks) - len(kept)
	for _, c := range chunks {
		if _, dup := ids[c.ID]; dup {
			return 0, errors.New("duplicate chunk id " + c.ID)
		}
		ids[c.ID] = struct{}{}
		kept = append(kept, c)
	}
	m.chunks, m.ids = kept, ids
	return removed, nil
}

func (m *MemoryIndex) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.chunks = nil
	m.ids = make(map[string]struct{})
	return nil
}

func (m *MemoryIndex) Close() error { return nil }
