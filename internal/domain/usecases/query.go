// Package usecases - query.go runs retrieval and streams the grounded answer.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/0xcro3dile/ragstream/internal/domain/entities"
	"github.com/0xcro3dile/ragstream/internal/domain/ports"
	"github.com/0xcro3dile/ragstream/internal/logger"
)

// QueryUseCase answers one question per call: retrieve, assemble context,
// build the prompt and stream the model's answer.
type QueryUseCase struct {
	store       ports.ChunkStore
	chat        ports.ChatGenerator
	nResults    int
	maxDistance float64
	log         *logger.Logger
}

// NewQueryUseCase creates a QueryUseCase with injected dependencies.
func NewQueryUseCase(
	store ports.ChunkStore,
	chat ports.ChatGenerator,
	nResults int,
	maxDistance float64,
	log *logger.Logger,
) *QueryUseCase {
	if nResults <= 0 {
		nResults = 5
	}
	if maxDistance < 0 {
		maxDistance = 0.6
	}
	if log == nil {
		log = logger.Nop()
	}
	return &QueryUseCase{
		store:       store,
		chat:        chat,
		nResults:    nResults,
		maxDistance: maxDistance,
		log:         log.With("component", "query"),
	}
}

// Stream returns a channel of answer fragments. Failures before the first
// fragment are returned as the error; later failures arrive as a single
// terminal token carrying Err. The channel is always closed.
func (uc *QueryUseCase) Stream(ctx context.Context, req entities.PipelineRequest) (<-chan ports.StreamToken, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	results, err := uc.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}

	contextBlock := AssembleContext(results, req.PriorChunks)
	messages := BuildMessages(contextBlock, req.History, req.Query)

	start := time.Now()
	upstream, err := uc.chat.ChatStream(ctx, messages, req.Model)
	if err != nil {
		uc.log.Error("generation failed to start", "error", err)
		return nil, err
	}

	out := make(chan ports.StreamToken)
	go uc.relay(ctx, upstream, out, start)
	return out, nil
}

// relay forwards tokens unchanged and logs how the stream ended.
func (uc *QueryUseCase) relay(ctx context.Context, in <-chan ports.StreamToken, out chan<- ports.StreamToken, start time.Time) {
	defer close(out)

	fragments := 0
	for tok := range in {
		if tok.Err != nil {
			uc.log.Error("generation failed", "fragments", fragments, "duration", time.Since(start), "error", tok.Err)
		} else if tok.Done {
			uc.log.Info("generation finished", "fragments", fragments, "duration", time.Since(start))
		} else {
			fragments++
		}

		select {
		case out <- tok:
		case <-ctx.Done():
			uc.log.Debug("client went away", "fragments", fragments)
			// drain so the producer can exit
			for range in {
			}
			return
		}
	}
}

// Retrieve runs the retrieval step alone, applying per-request overrides.
func (uc *QueryUseCase) Retrieve(ctx context.Context, req entities.PipelineRequest) (results []entities.RetrievalResult, err error) {
	defer uc.log.Timed("retrieve")(&err)

	k := uc.nResults
	if req.NResults != nil && *req.NResults > 0 {
		k = *req.NResults
	}
	maxDistance := uc.maxDistance
	if req.MaxDistance != nil && *req.MaxDistance >= 0 {
		maxDistance = *req.MaxDistance
	}

	results, err = uc.store.Query(ctx, req.Query, k, maxDistance)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}
	uc.log.Debug("retrieved", "k", k, "max_distance", maxDistance, "results", len(results))
	return results, nil
}

// Models lists the chat models the backend can serve.
func (uc *QueryUseCase) Models(ctx context.Context) ([]string, error) {
	return uc.chat.ListModels(ctx)
}

func validate(req entities.PipelineRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return errors.Join(entities.ErrValidation, errors.New("question must not be empty"))
	}
	for i, turn := range req.History {
		if !turn.Role.Valid() {
			return errors.Join(entities.ErrValidation, fmt.Errorf("message %d has unknown role %q", i, turn.Role))
		}
	}
	return nil
}
