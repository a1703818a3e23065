package chunking

import (
	"strings"
	"unicode"
)

const defaultChunkSize = 900

// Splitter cuts text into overlapping rune windows. Cuts prefer whitespace
// near the window end so words and values stay whole.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	switch {
	case overlap < 0:
		overlap = 0
	case overlap >= chunkSize:
		overlap = chunkSize / 4
	}
	return &Splitter{ChunkSize: chunkSize, Overlap: overlap}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var out []string
	start := 0
	for start < len(runes) {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = snapToWhitespace(runes, start, end)
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			return out
		}

		if next := end - s.Overlap; next > start {
			start = next
		} else {
			start = end
		}
	}
	return out
}

// snapToWhitespace backs the cut up to the nearest whitespace, giving up
// after 15% of the window.
func snapToWhitespace(runes []rune, start, end int) int {
	limit := end - (end-start)*15/100
	if limit <= start {
		return end
	}
	for i := end; i > limit; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}
