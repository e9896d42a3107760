// Package vectordb provides the chunk store and its index backends.
package vectordb

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/0xcro3dile/ragstream/internal/domain/entities"
)

// Hit is a nearest-neighbour candidate returned by an Index.
type Hit struct {
	Chunk    entities.Chunk
	Distance float64
}

// Index is the storage backend behind Store. Implementations do not
// serialise writers themselves; Store does.
type Index interface {
	// Insert writes all chunks or none of them.
	Insert(ctx context.Context, chunks []entities.Chunk) error

	// Nearest returns up to k hits ordered by ascending cosine distance.
	Nearest(ctx context.Context, embedding []float32, k int) ([]Hit, error)

	// All returns every chunk ordered by id sequence.
	All(ctx context.Context) ([]entities.Chunk, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// NextSeq returns one past the highest stored id sequence, 0 when empty.
	NextSeq(ctx context.Context) (int, error)

	// DeleteWhere removes chunks whose file_name matches and reports how many.
	DeleteWhere(ctx context.Context, fileName string) (int, error)

	// Replace deletes the chunks of fileName and inserts chunks as one
	// atomic write. On failure the previous chunks remain.
	Replace(ctx context.Context, fileName string, chunks []entities.Chunk) (int, error)

	// Reset drops everything.
	Reset(ctx context.Context) error

	Close() error
}

const idPrefix = "doc_"

func formatID(seq int) string {
	return idPrefix + strconv.Itoa(seq)
}

// parseSeq returns the numeric part of a "doc_<n>" id, or -1.
func parseSeq(id string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(id, idPrefix))
	if err != nil || !strings.HasPrefix(id, idPrefix) {
		return -1
	}
	return n
}

// cosineSimilarity calculates cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// cosineDistance is 1 - similarity, clamped to [0, 2].
func cosineDistance(a, b []float32) float64 {
	d := 1 - cosineSimilarity(a, b)
	switch {
	case d < 0:
		return 0
	case d > 2:
		return 2
	}
	return d
}

// rank scores every chunk against the query and keeps the k closest.
// Ties keep the input order.
func rank(chunks []entities.Chunk, query []float32, k int) []Hit {
	hits := make([]Hit, 0, len(chunks))
	for _, c := range chunks {
		hits = append(hits, Hit{Chunk: c, Distance: cosineDistance(query, c.Embedding)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
