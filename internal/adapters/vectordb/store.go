package vectordb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/0xcro3dile/ragstream/internal/domain/entities"
	"github.com/0xcro3dile/ragstream/internal/domain/ports"
	"github.com/0xcro3dile/ragstream/internal/logger"
)

// Store implements ports.ChunkStore on top of an Index. It embeds texts,
// assigns "doc_<n>" ids and applies the distance cutoff.
type Store struct {
	index    Index
	embedder ports.EmbeddingService
	log      *logger.Logger

	defaultK           int
	defaultMaxDistance float64

	// mu makes writes exclusive while queries proceed concurrently.
	mu      sync.RWMutex
	nextSeq int
}

var _ ports.ChunkStore = (*Store)(nil)

// NewStore wraps index. The id counter resumes after the highest stored id.
func NewStore(ctx context.Context, index Index, embedder ports.EmbeddingService, defaultK int, defaultMaxDistance float64, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}
	if defaultK <= 0 {
		defaultK = 5
	}
	if defaultMaxDistance < 0 {
		defaultMaxDistance = 0.6
	}

	next, err := index.NextSeq(ctx)
	if err != nil {
		return nil, errors.Join(entities.ErrStore, fmt.Errorf("reading id sequence: %w", err))
	}

	return &Store{
		index:              index,
		embedder:           embedder,
		log:                log.With("component", "chunk_store"),
		defaultK:           defaultK,
		defaultMaxDistance: defaultMaxDistance,
		nextSeq:            next,
	}, nil
}

// Query embeds text and returns up to k hits within maxDistance.
func (s *Store) Query(ctx context.Context, text string, k int, maxDistance float64) ([]entities.RetrievalResult, error) {
	if k <= 0 {
		k = s.defaultK
	}
	if maxDistance < 0 {
		maxDistance = s.defaultMaxDistance
	}

	emb, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, errors.Join(entities.ErrStore, fmt.Errorf("embedding query: %w", err))
	}

	s.mu.RLock()
	hits, err := s.index.Nearest(ctx, emb, k)
	s.mu.RUnlock()
	if err != nil {
		return nil, errors.Join(entities.ErrStore, fmt.Errorf("searching index: %w", err))
	}

	results := make([]entities.RetrievalResult, 0, len(hits))
	for _, h := range hits {
		if h.Distance > maxDistance {
			continue
		}
		results = append(results, entities.RetrievalResult{
			Text:     h.Chunk.Text,
			Metadata: h.Chunk.Metadata,
			Distance: h.Distance,
		})
	}

	s.log.Debug("query", "k", k, "max_distance", maxDistance, "candidates", len(hits), "kept", len(results))
	return results, nil
}

// Add embeds texts and stores them atomically under consecutive ids.
func (s *Store) Add(ctx context.Context, texts []string, metadatas []entities.ChunkMetadata) error {
	if len(texts) == 0 && len(metadatas) == 0 {
		return nil
	}
	embeddings, err := s.embed(ctx, texts, metadatas)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chunks := s.assign(texts, metadatas, embeddings)
	if err := s.index.Insert(ctx, chunks); err != nil {
		return errors.Join(entities.ErrStore, fmt.Errorf("inserting chunks: %w", err))
	}
	s.nextSeq += len(chunks)

	s.log.Info("chunks added", "count", len(chunks), "first_id", chunks[0].ID)
	return nil
}

// ReplaceSource swaps the chunks of fileName for texts in one index write.
// Embedding happens first, so a failure anywhere leaves the old chunks.
func (s *Store) ReplaceSource(ctx context.Context, fileName string, texts []string, metadatas []entities.ChunkMetadata) error {
	embeddings, err := s.embed(ctx, texts, metadatas)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chunks := s.assign(texts, metadatas, embeddings)
	removed, err := s.index.Replace(ctx, fileName, chunks)
	if err != nil {
		return errors.Join(entities.ErrStore, fmt.Errorf("replacing %s: %w", fileName, err))
	}
	s.nextSeq += len(chunks)

	s.log.Info("source replaced", "file_name", fileName, "removed", removed, "added", len(chunks))
	return nil
}

func (s *Store) embed(ctx context.Context, texts []string, metadatas []entities.ChunkMetadata) ([][]float32, error) {
	if len(texts) != len(metadatas) {
		return nil, errors.Join(entities.ErrValidation,
			fmt.Errorf("got %d texts but %d metadata records", len(texts), len(metadatas)))
	}
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, errors.Join(entities.ErrStore, fmt.Errorf("embedding chunks: %w", err))
	}
	if len(embeddings) != len(texts) {
		return nil, errors.Join(entities.ErrStore,
			fmt.Errorf("embedder returned %d vectors for %d texts", len(embeddings), len(texts)))
	}
	return embeddings, nil
}

// assign gives chunks ids from the counter. Callers hold mu.
func (s *Store) assign(texts []string, metadatas []entities.ChunkMetadata, embeddings [][]float32) []entities.Chunk {
	chunks := make([]entities.Chunk, len(texts))
	for i := range texts {
		chunks[i] = entities.Chunk{
			ID:        formatID(s.nextSeq + i),
			Text:      texts[i],
			Metadata:  metadatas[i].WithDefaults(),
			Embedding: embeddings[i],
		}
	}
	return chunks
}

// Clear removes every chunk and restarts id numbering at doc_0.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Reset(ctx); err != nil {
		return errors.Join(entities.ErrStore, fmt.Errorf("clearing index: %w", err))
	}
	s.nextSeq = 0
	s.log.Info("store cleared")
	return nil
}

func (s *Store) All(ctx context.Context) ([]entities.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks, err := s.index.All(ctx)
	if err != nil {
		return nil, errors.Join(entities.ErrStore, err)
	}
	return chunks, nil
}

func (s *Store) DeleteSource(ctx context.Context, fileName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.index.DeleteWhere(ctx, fileName)
	if err != nil {
		return errors.Join(entities.ErrStore, fmt.Errorf("deleting %s: %w", fileName, err))
	}
	s.log.Info("source removed", "file_name", fileName, "chunks", n)
	return nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Count(ctx)
}

// Close releases the underlying index.
func (s *Store) Close() error {
	return s.index.Close()
}
