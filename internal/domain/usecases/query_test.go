package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/ragstream/internal/domain/entities"
	"github.com/0xcro3dile/ragstream/internal/domain/ports"
)

func drain(t *testing.T, ch <-chan ports.StreamToken) (fragments []string, errs []error) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case tok, ok := <-ch:
			if !ok {
				return fragments, errs
			}
			switch {
			case tok.Err != nil:
				errs = append(errs, tok.Err)
			case tok.Done:
			default:
				fragments = append(fragments, tok.Content)
			}
		case <-timeout:
			t.Fatal("timeout waiting for stream")
		}
	}
}

func manualStore() *mockStore {
	return &mockStore{results: []entities.RetrievalResult{
		{Text: "chunk one", Metadata: entities.ChunkMetadata{FileName: "manual.pdf", PageRange: "1"}, Distance: 0.2},
		{Text: "chunk two", Metadata: entities.ChunkMetadata{FileName: "manual.pdf", PageRange: "2"}, Distance: 0.9},
	}}
}

func TestQueryUseCase_StreamsFragmentsInOrder(t *testing.T) {
	chat := &mockChat{fragments: []string{"The ", "answer", "."}}
	uc := NewQueryUseCase(manualStore(), chat, 5, 0.6, nil)

	ch, err := uc.Stream(context.Background(), entities.PipelineRequest{Query: "what?"})
	require.NoError(t, err)

	fragments, errs := drain(t, ch)
	assert.Equal(t, []string{"The ", "answer", "."}, fragments)
	assert.Empty(t, errs)
}

func TestQueryUseCase_PromptCarriesCitedContext(t *testing.T) {
	chat := &mockChat{}
	uc := NewQueryUseCase(manualStore(), chat, 5, 0.6, nil)
	history := []entities.ConversationTurn{{Role: entities.RoleUser, Content: "hi"}}

	ch, err := uc.Stream(context.Background(), entities.PipelineRequest{
		Query:   "how do I reset?",
		History: history,
		Model:   "mistral",
	})
	require.NoError(t, err)
	drain(t, ch)

	require.Len(t, chat.gotMessages, 3)
	assert.Contains(t, chat.gotMessages[0].Content, "### CONTEXT ###\nchunk one [manual.pdf, pages: 1]")
	assert.NotContains(t, chat.gotMessages[0].Content, "chunk two")
	assert.Equal(t, history[0], chat.gotMessages[1])
	assert.Equal(t, "how do I reset?", chat.gotMessages[2].Content)
	assert.Equal(t, "mistral", chat.gotModel)
}

func TestQueryUseCase_NoContextMarker(t *testing.T) {
	chat := &mockChat{}
	uc := NewQueryUseCase(&mockStore{}, chat, 5, 0.6, nil)

	ch, err := uc.Stream(context.Background(), entities.PipelineRequest{Query: "anything"})
	require.NoError(t, err)
	drain(t, ch)

	assert.Contains(t, chat.gotMessages[0].Content, NoContextMarker)
}

func TestQueryUseCase_PriorChunksMerged(t *testing.T) {
	chat := &mockChat{}
	uc := NewQueryUseCase(manualStore(), chat, 5, 0.6, nil)

	ch, err := uc.Stream(context.Background(), entities.PipelineRequest{
		Query:       "q",
		PriorChunks: []string{"chunk one [manual.pdf, pages: 1]", "older [x.md, pages: 4]"},
	})
	require.NoError(t, err)
	drain(t, ch)

	assert.Contains(t, chat.gotMessages[0].Content,
		"### CONTEXT ###\nchunk one [manual.pdf, pages: 1]\n\nolder [x.md, pages: 4]")
}

func TestQueryUseCase_TwoFragmentsThenError(t *testing.T) {
	chat := &mockChat{
		fragments: []string{"first", "second"},
		streamErr: errors.Join(entities.ErrGeneration, errors.New("connection reset")),
	}
	uc := NewQueryUseCase(manualStore(), chat, 5, 0.6, nil)

	ch, err := uc.Stream(context.Background(), entities.PipelineRequest{Query: "q"})
	require.NoError(t, err)

	fragments, errs := drain(t, ch)
	assert.Equal(t, []string{"first", "second"}, fragments)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], entities.ErrGeneration)
}

func TestQueryUseCase_GenerationStartFailure(t *testing.T) {
	chat := &mockChat{startErr: errors.Join(entities.ErrGeneration, errors.New("404"))}
	uc := NewQueryUseCase(manualStore(), chat, 5, 0.6, nil)

	_, err := uc.Stream(context.Background(), entities.PipelineRequest{Query: "q"})
	assert.ErrorIs(t, err, entities.ErrGeneration)
}

func TestQueryUseCase_RetrievalFailureNotRetried(t *testing.T) {
	calls := 0
	store := &mockStore{queryFn: func(string, int, float64) ([]entities.RetrievalResult, error) {
		calls++
		return nil, errors.Join(entities.ErrStore, errors.New("index offline"))
	}}
	chat := &mockChat{}
	uc := NewQueryUseCase(store, chat, 5, 0.6, nil)

	_, err := uc.Stream(context.Background(), entities.PipelineRequest{Query: "q"})
	assert.ErrorIs(t, err, entities.ErrStore)
	assert.Equal(t, 1, calls)
	assert.Nil(t, chat.gotMessages, "generation must not start")
}

func TestQueryUseCase_Validation(t *testing.T) {
	uc := NewQueryUseCase(manualStore(), &mockChat{}, 5, 0.6, nil)

	_, err := uc.Stream(context.Background(), entities.PipelineRequest{Query: "   "})
	assert.ErrorIs(t, err, entities.ErrValidation)

	_, err = uc.Stream(context.Background(), entities.PipelineRequest{
		Query:   "q",
		History: []entities.ConversationTurn{{Role: "robot", Content: "beep"}},
	})
	assert.ErrorIs(t, err, entities.ErrValidation)
}

func TestQueryUseCase_RetrieveOverrides(t *testing.T) {
	store := manualStore()
	uc := NewQueryUseCase(store, &mockChat{}, 5, 0.6, nil)

	results, err := uc.Retrieve(context.Background(), entities.PipelineRequest{Query: "q"})
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, 5, store.lastK)
	assert.Equal(t, 0.6, store.lastMaxDistance)

	k, d := 1, 1.0
	results, err = uc.Retrieve(context.Background(), entities.PipelineRequest{Query: "q", NResults: &k, MaxDistance: &d})
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, 1, store.lastK)
	assert.Equal(t, 1.0, store.lastMaxDistance)
}

func TestQueryUseCase_ManualScenario(t *testing.T) {
	uc := NewQueryUseCase(manualStore(), &mockChat{}, 5, 0.6, nil)

	results, err := uc.Retrieve(context.Background(), entities.PipelineRequest{Query: "reset"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"chunk one [manual.pdf, pages: 1]"}, DedupeLines(results, nil))
}

func TestQueryUseCase_CancelStopsRelay(t *testing.T) {
	chat := &mockChat{fragments: []string{"a", "b", "c", "d"}}
	uc := NewQueryUseCase(manualStore(), chat, 5, 0.6, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := uc.Stream(ctx, entities.PipelineRequest{Query: "q"})
	require.NoError(t, err)

	<-ch
	cancel()

	done := make(chan struct{})
	go func() {
		for range ch {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream was not closed after cancel")
	}
}

func TestQueryUseCase_Models(t *testing.T) {
	uc := NewQueryUseCase(&mockStore{}, &mockChat{}, 0, -1, nil)

	models, err := uc.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.2"}, models)
	assert.Equal(t, 5, uc.nResults)
	assert.Equal(t, 0.6, uc.maxDistance)
}
