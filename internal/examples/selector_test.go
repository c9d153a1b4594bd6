package examples

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestSelectReturnsAtMostKInDescendingSimilarity(t *testing.T) {
	store, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	embedder := LexicalEmbedder{}
	selector, err := NewSelector(context.Background(), store, embedder)
	if err != nil {
		t.Fatalf("NewSelector() error = %v", err)
	}

	question := "How many shipments were delivered late by each carrier?"
	for _, k := range []int{0, 1, 5, 10, 50} {
		selected, err := selector.Select(context.Background(), question, k)
		if err != nil {
			t.Fatalf("Select(k=%d) error = %v", k, err)
		}
		if want := min(k, store.Len()); len(selected) != want {
			t.Fatalf("Select(k=%d) returned %d examples, want %d", k, len(selected), want)
		}

		questionVector, _ := embedder.Embed(context.Background(), []string{question})
		previous := float32(2)
		for _, example := range selected {
			exampleVector, _ := embedder.Embed(context.Background(), []string{example.Question})
			score := cosineSimilarity(questionVector[0], exampleVector[0])
			if score > previous {
				t.Fatalf("similarity increased: %f after %f", score, previous)
			}
			previous = score
		}
	}
}

func TestSelectIsDeterministic(t *testing.T) {
	store, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	selector, err := NewSelector(context.Background(), store, LexicalEmbedder{})
	if err != nil {
		t.Fatalf("NewSelector() error = %v", err)
	}

	first, err := selector.Select(context.Background(), "average order value per client class", 5)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := selector.Select(context.Background(), "average order value per client class", 5)
		if err != nil {
			t.Fatalf("Select() error = %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Select() not deterministic: %v vs %v", first, again)
		}
	}
	if first[0].Question != "What is the average order value per client class?" {
		t.Fatalf("best match = %q", first[0].Question)
	}
}

func TestSelectBreaksTiesByCatalogOrder(t *testing.T) {
	store, err := NewStore([]Example{
		{Question: "first", SQL: "SELECT 1"},
		{Question: "second", SQL: "SELECT 2"},
		{Question: "third", SQL: "SELECT 3"},
	})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	selector, err := NewSelector(context.Background(), store, constantEmbedder{})
	if err != nil {
		t.Fatalf("NewSelector() error = %v", err)
	}

	selected, err := selector.Select(context.Background(), "anything", 2)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(selected) != 2 || selected[0].Question != "first" || selected[1].Question != "second" {
		t.Fatalf("selected = %#v", selected)
	}
}

func TestSelectorWrapsEmbeddingFailures(t *testing.T) {
	store, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	_, err = NewSelector(context.Background(), store, failingEmbedder{err: errors.New("503 from upstream")})
	if !errors.Is(err, ErrRetrievalUnavailable) {
		t.Fatalf("NewSelector() error = %v, want ErrRetrievalUnavailable", err)
	}

	flaky := &toggleEmbedder{}
	selector, err := NewSelector(context.Background(), store, flaky)
	if err != nil {
		t.Fatalf("NewSelector() error = %v", err)
	}
	flaky.fail = true
	if _, err := selector.Select(context.Background(), "question", 3); !errors.Is(err, ErrRetrievalUnavailable) {
		t.Fatalf("Select() error = %v, want ErrRetrievalUnavailable", err)
	}
}

func TestLexicalEmbedderNormalizes(t *testing.T) {
	vectors, err := LexicalEmbedder{Dimensions: 32}.Embed(context.Background(), []string{"Ordini ordini Clienti", ""})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 || len(vectors[0]) != 32 {
		t.Fatalf("unexpected vectors shape")
	}
	if score := cosineSimilarity(vectors[0], vectors[0]); score < 0.999 {
		t.Fatalf("self similarity = %f", score)
	}
	if score := cosineSimilarity(vectors[0], vectors[1]); score != 0 {
		t.Fatalf("similarity with empty text = %f, want 0", score)
	}
}

type constantEmbedder struct{}

func (constantEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type failingEmbedder struct {
	err error
}

func (f failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, f.err
}

type toggleEmbedder struct {
	fail bool
}

func (e *toggleEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.fail {
		return nil, errors.New("connection refused")
	}
	return LexicalEmbedder{}.Embed(ctx, texts)
}
