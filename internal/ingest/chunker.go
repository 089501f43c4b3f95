package ingest

import (
	"strings"
	"unicode"
)

// TextChunker splits extracted text into bounded, overlapping windows.
type TextChunker interface {
	Split(text string, size, overlap int) []string
}

// OverlapChunker implements a boundary-aware splitter. Each chunk holds at
// most size runes and consecutive chunks share overlap runes of trailing
// context so facts spanning a cut are not lost. Splits land on paragraph,
// sentence, or word boundaries when one exists in the tail of the window,
// falling back to a hard cut.
type OverlapChunker struct{}

// Split divides text into chunks. Pure function of its input: identical text
// always yields identical chunks. Empty or whitespace-only text yields nil.
func (OverlapChunker) Split(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/size+1)

	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		cut := boundaryCut(runes, start, end)
		chunks = append(chunks, string(runes[start:cut]))

		next := cut - overlap
		if next <= start {
			// overlap would stall the scan on a tiny chunk
			next = cut
		}
		start = next
	}

	return chunks
}

// boundaryCut picks the split position inside (start, end], preferring the
// latest paragraph break, then sentence end, then word gap in the second
// half of the window.
func boundaryCut(runes []rune, start, end int) int {
	lowest := start + (end-start)/2

	for i := end; i > lowest; i-- {
		if runes[i-1] == '\n' && i < len(runes) && runes[i] == '\n' {
			return i
		}
	}
	for i := end; i > lowest; i-- {
		if isSentenceEnd(runes[i-1]) {
			return i
		}
	}
	for i := end; i > lowest; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}

	return end
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	default:
		return false
	}
}
