// Package hash provides a deterministic embedder that needs no model files.
//
// Words and word pairs are hashed into a fixed number of buckets with a
// random sign (feature hashing), so texts sharing words get similar
// vectors. It is good enough for tests and offline use, not for real
// semantic search.
package hash

import (
	"context"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/becomeliminal/nim-memory/memory/index"
)

// DefaultDimensions matches all-MiniLM-L6-v2.
const DefaultDimensions = 384

// Embedder is a feature-hashing embedder.
type Embedder struct {
	dimensions int
}

// New creates an Embedder. Dimensions below 1 mean DefaultDimensions.
func New(dimensions int) *Embedder {
	if dimensions < 1 {
		dimensions = DefaultDimensions
	}
	return &Embedder{dimensions: dimensions}
}

// Embed hashes the words of text into a unit vector. A text without words
// gives the zero vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dimensions)
	words := tokenize(text)
	for i, w := range words {
		e.add(vec, w, 1)
		if i > 0 {
			e.add(vec, words[i-1]+" "+w, 0.5)
		}
	}
	return index.Normalize(vec), nil
}

func (e *Embedder) add(vec []float32, feature string, weight float32) {
	h := xxhash.Sum64String(feature)
	bucket := h % uint64(e.dimensions)
	if h>>63 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
