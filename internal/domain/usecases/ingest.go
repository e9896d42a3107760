// Package usecases contains application business rules.
// Usecases orchestrate entities and depend only on port interfaces.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/0xcro3dile/ragstream/internal/domain/entities"
	"github.com/0xcro3dile/ragstream/internal/domain/ports"
	"github.com/0xcro3dile/ragstream/internal/logger"
)

// Upload statuses reported by IngestBatch.
const (
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial_success"
	StatusError          = "error"
)

// ChunkingConfig is the splitter configuration exposed to clients.
type ChunkingConfig struct {
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
}

// FileInput is one uploaded file.
type FileInput struct {
	Name string
	Data []byte
}

// BatchReport summarises a multi-file upload.
type BatchReport struct {
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	Processed []string `json:"processed_files"`
	Errors    []string `json:"errors,omitempty"`
	Chunks    int      `json:"chunks"`
}

// IngestUseCase turns documents into stored chunks.
type IngestUseCase struct {
	extractor ports.DocumentExtractor
	splitter  ports.TextSplitter
	store     ports.ChunkStore
	chunking  ChunkingConfig
	log       *logger.Logger
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
// chunking is reported by ChunkingConfig and must match the splitter's settings.
func NewIngestUseCase(
	extractor ports.DocumentExtractor,
	splitter ports.TextSplitter,
	store ports.ChunkStore,
	chunking ChunkingConfig,
	log *logger.Logger,
) *IngestUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &IngestUseCase{
		extractor: extractor,
		splitter:  splitter,
		store:     store,
		chunking:  chunking,
		log:       log.With("component", "ingest"),
	}
}

// ChunkingConfig returns the active splitter settings.
func (uc *IngestUseCase) ChunkingConfig() ChunkingConfig {
	return uc.chunking
}

// IngestFile extracts, splits and stores one document, returning the number
// of chunks written.
func (uc *IngestUseCase) IngestFile(ctx context.Context, name string, data []byte) (n int, err error) {
	defer uc.log.Timed("ingest_file")(&err)

	texts, metas, err := uc.prepare(ctx, name, data)
	if err != nil {
		return 0, err
	}
	if err := uc.store.Add(ctx, texts, metas); err != nil {
		return 0, err
	}
	uc.log.Info("file ingested", "file_name", name, "chunks", len(texts))
	return len(texts), nil
}

// IngestBatch processes every file, recovering per-file extraction failures,
// and stores all successful chunks in a single Add. The returned error is
// non-nil only for validation or store failures.
func (uc *IngestUseCase) IngestBatch(ctx context.Context, files []FileInput) (report BatchReport, err error) {
	defer uc.log.Timed("ingest_batch")(&err)

	if len(files) == 0 {
		return BatchReport{}, errors.Join(entities.ErrValidation, errors.New("no files provided"))
	}

	var (
		texts []string
		metas []entities.ChunkMetadata
	)
	report.Processed = []string{}

	for _, f := range files {
		t, m, err := uc.prepare(ctx, f.Name, f.Data)
		if err != nil {
			uc.log.Warn("file skipped", "file_name", f.Name, "error", err)
			report.Errors = append(report.Errors, fmt.Sprintf("Error processing %s: %v", f.Name, err))
			continue
		}
		texts = append(texts, t...)
		metas = append(metas, m...)
		report.Processed = append(report.Processed, f.Name)
	}

	if len(texts) == 0 {
		report.Status = StatusError
		report.Message = "No documents were successfully processed. Errors:\n" + strings.Join(report.Errors, "\n")
		return report, nil
	}

	if err := uc.store.Add(ctx, texts, metas); err != nil {
		return BatchReport{
			Status:    StatusError,
			Message:   "Failed to add documents to database",
			Processed: []string{},
			Errors:    report.Errors,
		}, err
	}
	report.Chunks = len(texts)

	if len(report.Errors) == 0 {
		report.Status = StatusSuccess
		report.Message = fmt.Sprintf("Successfully processed %d files", len(files))
	} else {
		report.Status = StatusPartialSuccess
		report.Message = fmt.Sprintf("Processed %d of %d files", len(report.Processed), len(files))
	}
	uc.log.Info("batch ingested", "files", len(files), "processed", len(report.Processed), "chunks", report.Chunks)
	return report, nil
}

// ReindexFile replaces the stored chunks of name with freshly extracted
// ones. Existing chunks are kept when extraction or storage fails.
func (uc *IngestUseCase) ReindexFile(ctx context.Context, name string, data []byte) (n int, err error) {
	defer uc.log.Timed("reindex_file")(&err)

	texts, metas, err := uc.prepare(ctx, name, data)
	if err != nil {
		return 0, err
	}
	if err := uc.store.ReplaceSource(ctx, metas[0].FileName, texts, metas); err != nil {
		return 0, err
	}
	return len(texts), nil
}

// RemoveFile drops every chunk that came from name.
func (uc *IngestUseCase) RemoveFile(ctx context.Context, name string) error {
	return uc.store.DeleteSource(ctx, name)
}

// prepare extracts pages and splits each into chunks with provenance.
func (uc *IngestUseCase) prepare(ctx context.Context, name string, data []byte) ([]string, []entities.ChunkMetadata, error) {
	pages, err := uc.extractor.Extract(ctx, name, data)
	if err != nil {
		return nil, nil, err
	}
	if len(pages) == 0 {
		return nil, nil, errors.Join(entities.ErrExtraction, fmt.Errorf("no documents extracted from %s", name))
	}

	var (
		texts []string
		metas []entities.ChunkMetadata
	)
	for _, page := range pages {
		chunks, err := uc.splitter.SplitText(page.Text)
		if err != nil {
			return nil, nil, errors.Join(entities.ErrExtraction, fmt.Errorf("splitting %s: %w", name, err))
		}
		chunks = nonBlank(chunks)

		pageNum := strconv.Itoa(page.PageNumber)
		fileName := page.FileName
		if fileName == "" {
			fileName = name
		}
		for j, chunk := range chunks {
			texts = append(texts, chunk)
			metas = append(metas, entities.ChunkMetadata{
				Source:      fileName,
				Type:        orUnknown(page.FileType),
				FileName:    fileName,
				PageNumber:  pageNum,
				PageRange:   pageNum,
				ChunkNum:    strconv.Itoa(j + 1),
				TotalChunks: strconv.Itoa(len(chunks)),
			})
		}
	}

	if len(texts) == 0 {
		return nil, nil, errors.Join(entities.ErrExtraction, fmt.Errorf("no text found in %s", name))
	}
	return texts, metas, nil
}

func nonBlank(chunks []string) []string {
	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return entities.Unknown
	}
	return s
}
