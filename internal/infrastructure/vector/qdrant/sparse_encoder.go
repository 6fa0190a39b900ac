package qdrant

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"
)

// termVector is a hashed bag-of-words vector in Qdrant's sparse format.
// Token text is folded into a 32-bit index; collisions are tolerated since
// lexical scores only need to rank, not to be exact.
type termVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

const (
	saturationK   = 1.2
	filenameBoost = 1.5
	maxTerms      = 256
)

func encodeDocumentTerms(text, filename string) termVector {
	freq := make(map[uint32]float64, 64)
	accumulateTerms(freq, tokenizeLatinDigits(text), 1.0)
	accumulateTerms(freq, tokenizeLatinDigits(filename), filenameBoost)
	return saturate(freq)
}

func encodeQueryTerms(query string) termVector {
	freq := make(map[uint32]float64, 32)
	accumulateTerms(freq, tokenizeLatinDigits(query), 1.0)
	return saturate(freq)
}

func accumulateTerms(dst map[uint32]float64, tokens []string, weight float64) {
	for _, token := range tokens {
		if token == "" {
			continue
		}
		dst[hashTerm(token)] += weight
	}
}

// saturate applies BM25-style term-frequency saturation so repeated terms
// gain diminishing weight.
func saturate(freq map[uint32]float64) termVector {
	if len(freq) == 0 {
		return termVector{}
	}
	indices := make([]uint32, 0, len(freq))
	for idx := range freq {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	if len(indices) > maxTerms {
		indices = indices[:maxTerms]
	}

	values := make([]float32, 0, len(indices))
	for _, idx := range indices {
		tf := freq[idx]
		w := (tf * (saturationK + 1.0)) / (tf + saturationK)
		if math.IsNaN(w) || math.IsInf(w, 0) {
			w = 0
		}
		values = append(values, float32(w))
	}
	return termVector{Indices: indices, Values: values}
}

func hashTerm(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum32()
	if sum == 0 {
		return 1
	}
	return sum
}

func tokenizeLatinDigits(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
