package examples

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
)

var ErrRetrievalUnavailable = errors.New("example retrieval unavailable")

// Embedder turns texts into vectors of equal length.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type embeddedExample struct {
	example Example
	vector  []float32
}

// Selector ranks the store's examples by cosine similarity to a question.
// The index is built once by NewSelector and never modified afterwards.
type Selector struct {
	embedder Embedder
	index    []embeddedExample
}

func NewSelector(ctx context.Context, store *Store, embedder Embedder) (*Selector, error) {
	if store == nil || store.Len() == 0 {
		return nil, ErrEmptyStore
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrRetrievalUnavailable)
	}

	vectors, err := embedder.Embed(ctx, store.questions())
	if err != nil {
		return nil, fmt.Errorf("%w: embed examples: %w", ErrRetrievalUnavailable, err)
	}
	if len(vectors) != store.Len() {
		return nil, fmt.Errorf("%w: got %d vectors for %d examples", ErrRetrievalUnavailable, len(vectors), store.Len())
	}

	index := make([]embeddedExample, store.Len())
	for i, example := range store.examples {
		index[i] = embeddedExample{example: example, vector: vectors[i]}
	}
	return &Selector{embedder: embedder, index: index}, nil
}

// Select returns at most k examples ordered by descending similarity to
// question. Ties keep catalog order, so the result is deterministic.
func (s *Selector) Select(ctx context.Context, question string, k int) ([]Example, error) {
	if k <= 0 {
		return []Example{}, nil
	}
	vectors, err := s.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("%w: embed question: %w", ErrRetrievalUnavailable, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d vectors for one question", ErrRetrievalUnavailable, len(vectors))
	}

	type scored struct {
		example Example
		score   float32
	}
	ranked := make([]scored, len(s.index))
	for i, entry := range s.index {
		ranked[i] = scored{example: entry.example, score: cosineSimilarity(vectors[0], entry.vector)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	k = min(k, len(ranked))
	out := make([]Example, k)
	for i := 0; i < k; i++ {
		out[i] = ranked[i].example
	}
	return out, nil
}

// cosineSimilarity returns 0 for zero-length or mismatched vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}
