package usecases

import (
	"fmt"

	"github.com/0xcro3dile/ragstream/internal/domain/entities"
)

// FormatCitation renders "[file_name, pages: page_range]", substituting
// "unknown" for missing fields.
func FormatCitation(meta entities.ChunkMetadata) string {
	meta = meta.WithDefaults()
	return fmt.Sprintf("[%s, pages: %s]", meta.FileName, meta.PageRange)
}
