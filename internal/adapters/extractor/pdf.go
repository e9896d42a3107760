package extractor

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/0xcro3dile/ragstream/internal/domain/entities"
)

// extractPDF returns one page per PDF page, numbered from 1.
func extractPDF(fileName string, data []byte) (pages []entities.Page, err error) {
	// the pdf package panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}

	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("reading page %d: %w", i, err)
		}
		pages = append(pages, entities.Page{
			FileName:   fileName,
			FileType:   "application/pdf",
			PageNumber: i,
			Text:       text,
		})
	}
	return pages, nil
}
