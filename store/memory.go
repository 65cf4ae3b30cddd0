package store

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"maps"
	"os"

	"gopkg.in/yaml.v3"

	"skinmatch"
	"skinmatch/match"
	"skinmatch/normalize"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type catalogFile struct {
	Products []map[string]any `yaml:"products"`
}

// Memory serves a fixed product list loaded once at startup
type Memory struct {
	records    []normalize.Record
	vocabulary skinmatch.Vocabulary
}

func NewMemory(records []normalize.Record, vocabulary skinmatch.Vocabulary) *Memory {
	return &Memory{
		records:    records,
		vocabulary: vocabulary,
	}
}

// LoadMemory reads a YAML catalog with a top level products list
func LoadMemory(r io.Reader, vocabulary skinmatch.Vocabulary) (*Memory, error) {
	var f catalogFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("error decoding catalog: %w", err)
	}

	records := make([]normalize.Record, 0, len(f.Products))
	for _, p := range f.Products {
		records = append(records, normalize.Record(p))
	}
	return NewMemory(records, vocabulary), nil
}

// LoadMemoryFile loads the catalog at path, or the built-in catalog when path is empty
func LoadMemoryFile(path string, vocabulary skinmatch.Vocabulary) (*Memory, error) {
	if path == "" {
		return LoadMemory(bytes.NewReader(defaultCatalog), vocabulary)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening catalog: %w", err)
	}
	defer f.Close()

	return LoadMemory(f, vocabulary)
}

func (m *Memory) ListAll(ctx context.Context) ([]normalize.Record, error) {
	out := make([]normalize.Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, maps.Clone(r))
	}
	return out, nil
}

func (m *Memory) FilterByMaxPrice(ctx context.Context, maxPrice skinmatch.Cents) ([]normalize.Record, error) {
	var out []normalize.Record
	for _, r := range m.records {
		price, err := normalize.Price(r)
		if err != nil || price > maxPrice {
			continue
		}
		out = append(out, maps.Clone(r))
	}
	return out, nil
}

func (m *Memory) GetByID(ctx context.Context, id string) (normalize.Record, error) {
	for _, r := range m.records {
		if normalize.ID(r) == id {
			return maps.Clone(r), nil
		}
	}
	return nil, match.ErrNotFound
}

func (m *Memory) Vocabulary() skinmatch.Vocabulary {
	return m.vocabulary
}

func (m *Memory) Len() int {
	return len(m.records)
}
