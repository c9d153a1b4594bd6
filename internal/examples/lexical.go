package examples

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const defaultLexicalDimensions = 256

// LexicalEmbedder is an offline Embedder: a hashed bag of lowercase words,
// L2-normalized. It needs no network and is fully deterministic.
type LexicalEmbedder struct {
	Dimensions int
}

func (e LexicalEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	dims := e.Dimensions
	if dims <= 0 {
		dims = defaultLexicalDimensions
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text, dims)
	}
	return out, nil
}

func (e LexicalEmbedder) vector(text string, dims int) []float32 {
	vector := make([]float32, dims)
	for _, word := range words(text) {
		hasher := fnv.New32a()
		_, _ = hasher.Write([]byte(word))
		vector[hasher.Sum32()%uint32(dims)]++
	}

	var norm float64
	for _, value := range vector {
		norm += float64(value) * float64(value)
	}
	if norm == 0 {
		return vector
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vector {
		vector[i] *= scale
	}
	return vector
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
