// Package llm provides the Ollama chat adapter.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/0xcro3dile/ragstream/internal/domain/entities"
	"github.com/0xcro3dile/ragstream/internal/domain/ports"
	"github.com/0xcro3dile/ragstream/internal/logger"
)

// maxLineSize bounds a single NDJSON record from the backend.
const maxLineSize = 1 << 20

// OllamaChat implements ports.ChatGenerator using Ollama's /api/chat.
type OllamaChat struct {
	baseURL string
	model   string
	client  *http.Client
	log     *logger.Logger
}

// NewOllamaChat creates a chat adapter. timeout bounds a whole generation,
// including the time spent streaming the body.
func NewOllamaChat(baseURL, model string, timeout time.Duration, log *logger.Logger) *OllamaChat {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	if timeout <= 0 {
		timeout = time.Hour
	}
	if log == nil {
		log = logger.Nop()
	}
	return &OllamaChat{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		log:     log.With("component", "llm"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// chatRecord is one NDJSON line. Message is nil on control records.
type chatRecord struct {
	Message *chatMessage `json:"message"`
	Done    bool         `json:"done"`
	Error   string       `json:"error"`
}

func generationErr(format string, args ...any) error {
	return errors.Join(entities.ErrGeneration, fmt.Errorf(format, args...))
}

// ChatStream posts the conversation and streams content fragments.
func (a *OllamaChat) ChatStream(ctx context.Context, messages []entities.ConversationTurn, model string) (<-chan ports.StreamToken, error) {
	if model == "" {
		model = a.model
	}

	payload := chatRequest{Model: model, Stream: true, Messages: make([]chatMessage, len(messages))}
	for i, m := range messages {
		payload.Messages[i] = chatMessage{Role: string(m.Role), Content: m.Content}
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, generationErr("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, generationErr("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	a.log.Info("starting chat stream", "model", model, "messages", len(messages))
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, generationErr("calling Ollama: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, generationErr("ollama returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	ch := make(chan ports.StreamToken)
	go a.relay(ctx, resp.Body, ch)
	return ch, nil
}

// relay reads the body line by line. Every send selects on ctx so an
// abandoned consumer never blocks the goroutine; closing the body releases
// the connection.
func (a *OllamaChat) relay(ctx context.Context, body io.ReadCloser, ch chan<- ports.StreamToken) {
	defer close(ch)
	defer body.Close()

	send := func(tok ports.StreamToken) bool {
		select {
		case ch <- tok:
			return true
		case <-ctx.Done():
			return false
		}
	}

	fragments := 0
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec chatRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			send(ports.StreamToken{Done: true, Err: generationErr("malformed stream record: %w", err)})
			return
		}
		if rec.Error != "" {
			send(ports.StreamToken{Done: true, Err: generationErr("backend error: %s", rec.Error)})
			return
		}
		if rec.Message != nil && rec.Message.Content != "" {
			if !send(ports.StreamToken{Content: rec.Message.Content}) {
				return
			}
			fragments++
		}
		if rec.Done {
			a.log.Info("finished chat stream", "fragments", fragments)
			send(ports.StreamToken{Done: true})
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return
		}
		send(ports.StreamToken{Done: true, Err: generationErr("reading stream: %w", err)})
		return
	}
	// EOF without a done record: the backend hung up mid-answer.
	send(ports.StreamToken{Done: true, Err: generationErr("stream closed before completion")})
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the locally available model names.
func (a *OllamaChat) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}
