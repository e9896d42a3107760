package usecases

import (
	"context"
	"strings"
	"sync"

	"github.com/0xcro3dile/ragstream/internal/domain/entities"
	"github.com/0xcro3dile/ragstream/internal/domain/ports"
)

// mockStore implements ports.ChunkStore for testing
type mockStore struct {
	mu      sync.Mutex
	results []entities.RetrievalResult
	queryFn func(text string, k int, maxDistance float64) ([]entities.RetrievalResult, error)
	addErr  error

	added    []string
	metas    []entities.ChunkMetadata
	addCalls int
	deleted  []string

	lastK           int
	lastMaxDistance float64
}

func (m *mockStore) Query(ctx context.Context, text string, k int, maxDistance float64) ([]entities.RetrievalResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastK, m.lastMaxDistance = k, maxDistance
	if m.queryFn != nil {
		return m.queryFn(text, k, maxDistance)
	}
	var out []entities.RetrievalResult
	for _, r := range m.results {
		if r.Distance <= maxDistance && len(out) < k {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStore) Add(ctx context.Context, texts []string, metadatas []entities.ChunkMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCalls++
	if m.addErr != nil {
		return m.addErr
	}
	m.added = append(m.added, texts...)
	m.metas = append(m.metas, metadatas...)
	return nil
}

func (m *mockStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added, m.metas = nil, nil
	return nil
}

func (m *mockStore) All(ctx context.Context) ([]entities.Chunk, error) {
	return nil, nil
}

func (m *mockStore) DeleteSource(ctx context.Context, fileName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, fileName)
	m.dropSource(fileName)
	return nil
}

// ReplaceSource only touches stored chunks when the write succeeds.
func (m *mockStore) ReplaceSource(ctx context.Context, fileName string, texts []string, metadatas []entities.ChunkMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCalls++
	if m.addErr != nil {
		return m.addErr
	}
	m.deleted = append(m.deleted, fileName)
	m.dropSource(fileName)
	m.added = append(m.added, texts...)
	m.metas = append(m.metas, metadatas...)
	return nil
}

func (m *mockStore) dropSource(fileName string) {
	var (
		texts []string
		metas []entities.ChunkMetadata
	)
	for i, meta := range m.metas {
		if meta.FileName == fileName {
			continue
		}
		texts = append(texts, m.added[i])
		metas = append(metas, meta)
	}
	m.added, m.metas = texts, metas
}

// mockChat implements ports.ChatGenerator. It emits fragments, then either
// Done or the terminal error.
type mockChat struct {
	fragments []string
	streamErr error // mid-stream failure
	startErr  error // failure before streaming

	gotMessages []entities.ConversationTurn
	gotModel    string
}

func (m *mockChat) ChatStream(ctx context.Context, messages []entities.ConversationTurn, model string) (<-chan ports.StreamToken, error) {
	m.gotMessages, m.gotModel = messages, model
	if m.startErr != nil {
		return nil, m.startErr
	}
	ch := make(chan ports.StreamToken)
	go func() {
		defer close(ch)
		send := func(tok ports.StreamToken) bool {
			select {
			case ch <- tok:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, f := range m.fragments {
			if !send(ports.StreamToken{Content: f}) {
				return
			}
		}
		if m.streamErr != nil {
			send(ports.StreamToken{Err: m.streamErr})
			return
		}
		send(ports.StreamToken{Done: true})
	}()
	return ch, nil
}

func (m *mockChat) ListModels(ctx context.Context) ([]string, error) {
	return []string{"llama3.2"}, nil
}

// mockExtractor returns canned pages per file name.
type mockExtractor struct {
	pages map[string][]entities.Page
	errs  map[string]error
}

func (m *mockExtractor) Extract(ctx context.Context, name string, data []byte) ([]entities.Page, error) {
	if err, ok := m.errs[name]; ok {
		return nil, err
	}
	return m.pages[name], nil
}

func (m *mockExtractor) SupportedExtensions() []string {
	return []string{".txt", ".pdf"}
}

// paragraphSplitter splits on blank lines.
type paragraphSplitter struct{}

func (paragraphSplitter) SplitText(text string) ([]string, error) {
	return strings.Split(text, "\n\n"), nil
}
