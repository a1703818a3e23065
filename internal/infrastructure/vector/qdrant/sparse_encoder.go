package qdrant

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"
)

// sparseVector is the qdrant wire form of a lexical vector: parallel
// index/value arrays with indices strictly ascending.
type sparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

const (
	saturationK    = 1.2
	filenameWeight = 1.5
	sparseTermCap  = 256
)

// encodeSparseDocument builds the lexical vector for an indexed chunk.
// Filename tokens carry extra weight so a lookup by document name still
// lands when the body never repeats it.
func encodeSparseDocument(text, filename string) sparseVector {
	freq := make(map[uint32]float64, 64)
	accumulate(freq, text, 1.0)
	accumulate(freq, filename, filenameWeight)
	return toSparse(freq)
}

func encodeSparseQuery(query string) sparseVector {
	freq := make(map[uint32]float64, 32)
	accumulate(freq, query, 1.0)
	return toSparse(freq)
}

func accumulate(freq map[uint32]float64, s string, weight float64) {
	for _, token := range tokenizeAlphaNum(s) {
		freq[hashToken(token)] += weight
	}
}

// toSparse turns accumulated term frequencies into a saturated vector:
// weight = tf*(k+1)/(tf+k), so repeats help but never dominate.
func toSparse(freq map[uint32]float64) sparseVector {
	if len(freq) == 0 {
		return sparseVector{}
	}

	indices := make([]uint32, 0, len(freq))
	for idx := range freq {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	if len(indices) > sparseTermCap {
		indices = indices[:sparseTermCap]
	}

	values := make([]float32, len(indices))
	for i, idx := range indices {
		tf := freq[idx]
		weight := tf * (saturationK + 1) / (tf + saturationK)
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			weight = 0
		}
		values[i] = float32(weight)
	}
	return sparseVector{Indices: indices, Values: values}
}

// hashToken maps a token onto the sparse index space. Zero is bumped to
// one so an index of 0 never appears.
func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	if sum := h.Sum32(); sum != 0 {
		return sum
	}
	return 1
}

// tokenizeAlphaNum lower-cases and splits on anything outside [a-z0-9].
// Accented letters act as separators, which suits the lab codes and
// identifiers these vectors are queried with.
func tokenizeAlphaNum(s string) []string {
	if s == "" {
		return nil
	}
	tokens := make([]string, 0, 24)
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			current.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			current.WriteRune(unicode.ToLower(r))
		default:
			flush()
		}
	}
	flush()
	return tokens
}
