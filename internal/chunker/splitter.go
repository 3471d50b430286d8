package chunker

import "strings"

// boundary separators in priority order: paragraph, line, word.
var separators = []string{"\n\n", "\n", " "}

// splitBySize re-splits text that exceeds the chunk size into pieces
// of at most chunkSize characters. Each cut prefers the latest
// paragraph break inside the budget, then the latest line break, then
// the latest word break, and only falls back to a hard character cut
// when no boundary exists in the window. Consecutive pieces share
// overlap characters.
func (c *Chunker) splitBySize(text string) []string {
	if len(text) <= c.chunkSize {
		return []string{text}
	}

	var pieces []string
	start := 0
	for start < len(text) {
		end := start + c.chunkSize
		if end >= len(text) {
			pieces = append(pieces, text[start:])
			break
		}

		cut := findBoundary(text, start, end)
		pieces = append(pieces, text[start:cut])

		next := cut - c.overlap
		if next <= start {
			// Overlap would stall the scan; advance without it.
			next = cut
		}
		start = next
	}

	return pieces
}

// findBoundary returns the cut position in (start, end] closest to end
// that falls just after a separator, trying separators in priority
// order. Returns end when the window has no separator.
func findBoundary(text string, start, end int) int {
	window := text[start:end]
	for _, sep := range separators {
		idx := strings.LastIndex(window, sep)
		if idx <= 0 {
			continue
		}
		return start + idx + len(sep)
	}
	return end
}
