// Package examples holds the fixed catalog of question/SQL pairs and picks
// the ones most similar to an incoming question.
package examples

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var ErrEmptyStore = errors.New("example store is empty")

type Example struct {
	Question string `yaml:"question" json:"question"`
	SQL      string `yaml:"sql" json:"sql"`
}

type catalogFile struct {
	Examples []Example `yaml:"examples"`
}

// Store is an immutable, never empty, ordered list of examples. It is safe
// for concurrent use.
type Store struct {
	examples []Example
}

func NewStore(examples []Example) (*Store, error) {
	if len(examples) == 0 {
		return nil, ErrEmptyStore
	}
	copied := make([]Example, 0, len(examples))
	for i, example := range examples {
		example.Question = strings.TrimSpace(example.Question)
		example.SQL = strings.TrimSpace(example.SQL)
		if example.Question == "" || example.SQL == "" {
			return nil, fmt.Errorf("example %d: question and sql are required", i)
		}
		copied = append(copied, example)
	}
	return &Store{examples: copied}, nil
}

// Default returns the built-in catalog.
func Default() (*Store, error) {
	return Parse(defaultCatalog)
}

// LoadFile reads a catalog from a YAML file shaped like the built-in one.
func LoadFile(path string) (*Store, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read example catalog: %w", err)
	}
	return Parse(payload)
}

func Parse(payload []byte) (*Store, error) {
	var file catalogFile
	if err := yaml.Unmarshal(payload, &file); err != nil {
		return nil, fmt.Errorf("decode example catalog: %w", err)
	}
	return NewStore(file.Examples)
}

func (s *Store) Len() int {
	return len(s.examples)
}

// All returns a copy of the examples in insertion order.
func (s *Store) All() []Example {
	out := make([]Example, len(s.examples))
	copy(out, s.examples)
	return out
}

func (s *Store) questions() []string {
	out := make([]string, len(s.examples))
	for i, example := range s.examples {
		out[i] = example.Question
	}
	return out
}
