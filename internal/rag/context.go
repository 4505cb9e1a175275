package rag

import (
	"fmt"
	"strings"

	"github.com/Yates-Labs/scholar/internal/chunk"
)

// BuildContext renders ranked results as the grounding block handed to the
// generator, one entry per result separated by a blank line. It neither
// filters nor reorders.
func BuildContext(results []RankedResult) string {
	entries := make([]string, len(results))
	for i, r := range results {
		entries[i] = FormatEntry(r)
	}
	return strings.Join(entries, "\n\n")
}

// FormatEntry renders "[Act a] [Scene s] [Speaker: name] text". Missing
// markers print as "-" and a missing speaker as "unknown".
func FormatEntry(r RankedResult) string {
	speaker := chunk.Value(r.Metadata.Speaker)
	if speaker == "" {
		speaker = "unknown"
	}
	return fmt.Sprintf("[Act %s] [Scene %s] [Speaker: %s] %s",
		orDash(r.Metadata.Act), orDash(r.Metadata.Scene), speaker, r.Text)
}

// Prefix returns the first n results, or all of them when n <= 0.
func Prefix(results []RankedResult, n int) []RankedResult {
	if n <= 0 || n >= len(results) {
		return results
	}
	return results[:n]
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
