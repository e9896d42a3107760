package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/0xcro3dile/ragstream/internal/domain/entities"
)

// Remote calls an external document converter over HTTP. The service takes
// the raw file on POST /parse and answers with extracted text, either as
// a single "text" field or per page in "page_texts".
type Remote struct {
	serviceURL string
	client     *http.Client
	extensions []string
}

// NewRemote creates a converter client. extensions lists what the service
// accepts; nil selects common office formats.
func NewRemote(serviceURL string, extensions []string) *Remote {
	if serviceURL == "" {
		serviceURL = "http://localhost:8081"
	}
	if len(extensions) == 0 {
		extensions = []string{".docx", ".pptx", ".xlsx", ".odt", ".rtf", ".epub"}
	}
	return &Remote{
		serviceURL: strings.TrimSuffix(serviceURL, "/"),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		extensions: extensions,
	}
}

// parseResponse is the converter's response format.
type parseResponse struct {
	Text      string   `json:"text"`
	PageTexts []string `json:"page_texts,omitempty"`
	Pages     int      `json:"pages"`
	Error     string   `json:"error,omitempty"`
}

// Extract sends data to the converter.
func (r *Remote) Extract(ctx context.Context, name string, data []byte) ([]entities.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.serviceURL+"/parse", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Filename", filepath.Base(name))

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling converter: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var result parseResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("converter error: %s", result.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("converter returned status %d", resp.StatusCode)
	}

	fileName := filepath.Base(name)
	fileType := contentType(strings.ToLower(filepath.Ext(name)))
	if len(result.PageTexts) > 0 {
		pages := make([]entities.Page, len(result.PageTexts))
		for i, text := range result.PageTexts {
			pages[i] = entities.Page{FileName: fileName, FileType: fileType, PageNumber: i + 1, Text: text}
		}
		return pages, nil
	}
	return []entities.Page{{FileName: fileName, FileType: fileType, PageNumber: 1, Text: result.Text}}, nil
}

// SupportedExtensions returns formats the converter handles.
func (r *Remote) SupportedExtensions() []string {
	return r.extensions
}

// Healthy reports whether the converter answers GET /health.
func (r *Remote) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.serviceURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
