// Package splitter adapts the langchaingo recursive character splitter.
package splitter

import (
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/0xcro3dile/ragstream/internal/domain/ports"
)

// Separators are tried in order; markdown section breaks come first so
// headed sections stay together when they fit.
var Separators = []string{"\n\n##", "\n\n", "\n", ". ", " ", ""}

// New returns a splitter producing chunks of at most size characters with
// overlap characters carried between neighbours.
func New(size, overlap int) ports.TextSplitter {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators(Separators),
	)
}
