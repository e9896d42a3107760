// Package extractor turns uploaded files into text pages.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/0xcro3dile/ragstream/internal/domain/entities"
	"github.com/0xcro3dile/ragstream/internal/domain/ports"
	"github.com/0xcro3dile/ragstream/internal/logger"
)

var textExtensions = []string{".txt", ".md", ".markdown", ".csv", ".json"}

// Multi dispatches on file extension: PDF and HTML are handled in process,
// plain text is passed through and anything else goes to the remote
// converter when one is configured.
type Multi struct {
	remote *Remote
	log    *logger.Logger
}

var _ ports.DocumentExtractor = (*Multi)(nil)

// NewMulti creates an extractor. remote may be nil.
func NewMulti(remote *Remote, log *logger.Logger) *Multi {
	if log == nil {
		log = logger.Nop()
	}
	return &Multi{remote: remote, log: log.With("component", "extractor")}
}

// Extract returns the non-empty pages of the named document.
func (m *Multi) Extract(ctx context.Context, name string, data []byte) ([]entities.Page, error) {
	ext := strings.ToLower(filepath.Ext(name))
	fileName := filepath.Base(name)

	var (
		pages []entities.Page
		err   error
	)
	switch {
	case ext == ".pdf":
		pages, err = extractPDF(fileName, data)
	case ext == ".html" || ext == ".htm":
		pages, err = extractHTML(fileName, data)
	case contains(textExtensions, ext):
		pages = []entities.Page{textPage(fileName, ext, string(data))}
	case m.remote != nil:
		pages, err = m.remote.Extract(ctx, name, data)
	default:
		return nil, errors.Join(entities.ErrExtraction, fmt.Errorf("unsupported file type %q", ext))
	}
	if err != nil {
		return nil, errors.Join(entities.ErrExtraction, fmt.Errorf("extracting %s: %w", fileName, err))
	}

	pages = dropBlank(pages)
	if len(pages) == 0 {
		return nil, errors.Join(entities.ErrExtraction, fmt.Errorf("%s contains no text", fileName))
	}
	m.log.Debug("extracted", "file_name", fileName, "pages", len(pages))
	return pages, nil
}

// SupportedExtensions returns file extensions this extractor handles.
func (m *Multi) SupportedExtensions() []string {
	exts := append([]string{".pdf", ".html", ".htm"}, textExtensions...)
	if m.remote != nil {
		exts = append(exts, m.remote.SupportedExtensions()...)
	}
	sort.Strings(exts)
	return exts
}

func textPage(fileName, ext, text string) entities.Page {
	return entities.Page{
		FileName:   fileName,
		FileType:   contentType(ext),
		PageNumber: 1,
		Text:       strings.ToValidUTF8(text, string(utf8.RuneError)),
	}
}

// contentType resolves a bare media type for ext, or "unknown".
func contentType(ext string) string {
	t := mime.TypeByExtension(ext)
	if t == "" {
		return entities.Unknown
	}
	if mediaType, _, err := mime.ParseMediaType(t); err == nil {
		return mediaType
	}
	return t
}

func dropBlank(pages []entities.Page) []entities.Page {
	out := pages[:0]
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			out = append(out, p)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
