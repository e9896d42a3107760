package usecases

import (
	"strings"

	"github.com/0xcro3dile/ragstream/internal/domain/entities"
)

// NoContextMarker replaces the context block when nothing was retrieved.
const NoContextMarker = "No relevant documentation found for this query."

const contextHeader = "### CONTEXT ###\n"

// DedupeLines turns results into cited lines and merges them with prior
// lines. Exact duplicates collapse; the first occurrence keeps its place.
func DedupeLines(results []entities.RetrievalResult, prior []string) []string {
	seen := make(map[string]struct{}, len(results)+len(prior))
	lines := make([]string, 0, len(results)+len(prior))

	add := func(line string) {
		if _, dup := seen[line]; dup {
			return
		}
		seen[line] = struct{}{}
		lines = append(lines, line)
	}

	for _, r := range results {
		add(r.Text + " " + FormatCitation(r.Metadata))
	}
	for _, p := range prior {
		add(p)
	}
	return lines
}

// AssembleContext builds the block injected into the system prompt.
func AssembleContext(results []entities.RetrievalResult, prior []string) string {
	lines := DedupeLines(results, prior)
	if len(lines) == 0 {
		return NoContextMarker
	}
	return contextHeader + strings.Join(lines, "\n\n")
}
