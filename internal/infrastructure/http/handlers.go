package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/0xcro3dile/ragstream/internal/domain/entities"
	"github.com/0xcro3dile/ragstream/internal/domain/usecases"
)

// streamErrorMessage is all a client learns about a failed generation.
const streamErrorMessage = "An error occurred while generating the response."

type queryRequest struct {
	Question       string                      `json:"question" binding:"required"`
	Messages       []entities.ConversationTurn `json:"messages"`
	PreviousChunks []string                    `json:"previous_chunks"`
	Model          string                      `json:"model"`
	NResults       *int                        `json:"n_results" binding:"omitempty,gt=0"`
	MaxDistance    *float64                    `json:"max_distance" binding:"omitempty,gte=0"`
}

func (r queryRequest) pipeline() entities.PipelineRequest {
	return entities.PipelineRequest{
		Query:       r.Question,
		History:     r.Messages,
		PriorChunks: r.PreviousChunks,
		Model:       r.Model,
		NResults:    r.NResults,
		MaxDistance: r.MaxDistance,
	}
}

// handleQuery streams the answer as server-sent events.
func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	ctx := c.Request.Context()
	log := s.log.With("request_id", c.GetString("request_id"))
	log.Info("query received", "question", req.Question, "history", len(req.Messages), "prior_chunks", len(req.PreviousChunks))

	tokens, err := s.query.Stream(ctx, req.pipeline())
	if errors.Is(err, entities.ErrValidation) {
		respondDomainError(c, err)
		return
	}

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if err != nil {
		log.Error("query failed", "error", err)
		writeEvent(c, "error", gin.H{"error": streamErrorMessage})
		return
	}

	for tok := range tokens {
		switch {
		case tok.Err != nil:
			log.Error("query stream failed", "error", tok.Err)
			writeEvent(c, "error", gin.H{"error": streamErrorMessage})
		case tok.Done:
		case tok.Content != "":
			writeEvent(c, "", gin.H{"answer": tok.Content})
		}
	}
}

// writeEvent emits one SSE frame and flushes it.
func writeEvent(c *gin.Context, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if event != "" {
		fmt.Fprintf(c.Writer, "event: %s\n", event)
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}

type searchRequest struct {
	Query       string   `json:"query" binding:"required"`
	NResults    *int     `json:"n_results" binding:"omitempty,gt=0"`
	MaxDistance *float64 `json:"max_distance" binding:"omitempty,gte=0"`
}

type searchHit struct {
	Text     string                 `json:"text"`
	Metadata entities.ChunkMetadata `json:"metadata"`
	Distance float64                `json:"distance"`
	Citation string                 `json:"citation"`
}

// handleSearch runs retrieval without generation.
func (s *Server) handleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	results, err := s.query.Retrieve(c.Request.Context(), entities.PipelineRequest{
		Query:       req.Query,
		NResults:    req.NResults,
		MaxDistance: req.MaxDistance,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	hits := make([]searchHit, len(results))
	for i, r := range results {
		hits[i] = searchHit{
			Text:     r.Text,
			Metadata: r.Metadata,
			Distance: r.Distance,
			Citation: usecases.FormatCitation(r.Metadata),
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": hits})
}

func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.ingest.ChunkingConfig())
}

type documentsResponse struct {
	IDs       []string                 `json:"ids"`
	Documents []string                 `json:"documents"`
	Metadatas []entities.ChunkMetadata `json:"metadatas"`
}

func (s *Server) handleListDocuments(c *gin.Context) {
	chunks, err := s.store.All(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}

	resp := documentsResponse{
		IDs:       make([]string, len(chunks)),
		Documents: make([]string, len(chunks)),
		Metadatas: make([]entities.ChunkMetadata, len(chunks)),
	}
	for i, ch := range chunks {
		resp.IDs[i] = ch.ID
		resp.Documents[i] = ch.Text
		resp.Metadatas[i] = ch.Metadata
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleClearDocuments(c *gin.Context) {
	if err := s.store.Clear(c.Request.Context()); err != nil {
		s.log.Error("clear failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  usecases.StatusError,
			"message": "Failed to clear documents",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  usecases.StatusSuccess,
		"message": "Documents cleared successfully",
	})
}

// handleUpload ingests every file in the multipart "files" field.
func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "expected multipart form with files")
		return
	}
	headers := form.File["files"]
	s.log.Info("upload received", "files", len(headers))

	files := make([]usecases.FileInput, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid_request", "cannot read "+fh.Filename)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid_request", "cannot read "+fh.Filename)
			return
		}
		files = append(files, usecases.FileInput{Name: fh.Filename, Data: data})
	}

	report, err := s.ingest.IngestBatch(c.Request.Context(), files)
	if err != nil {
		if errors.Is(err, entities.ErrValidation) {
			respondDomainError(c, err)
			return
		}
		s.log.Error("upload failed", "error", err)
		c.JSON(http.StatusInternalServerError, report)
		return
	}
	c.JSON(http.StatusOK, report)
}

// handleHealth reports the chunk count and, when configured, whether the
// document converter answers. A converter outage only degrades uploads.
func (s *Server) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()
	resp := gin.H{"status": "ok"}

	if counter, ok := s.store.(chunkCounter); ok {
		n, err := counter.Count(ctx)
		if err != nil {
			s.log.Error("health: counting chunks", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "store": "unreachable"})
			return
		}
		resp["chunks"] = n
	}

	if s.opts.Converter != nil {
		resp["converter"] = "ok"
		if !s.opts.Converter.Healthy(ctx) {
			resp["status"] = "degraded"
			resp["converter"] = "unreachable"
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleModels(c *gin.Context) {
	models, err := s.query.Models(c.Request.Context())
	if err != nil {
		s.log.Warn("listing models failed", "error", err)
		respondError(c, http.StatusBadGateway, "backend_unavailable", "could not list models")
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}
