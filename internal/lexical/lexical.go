// Package lexical provides keyword-based suggestions for labels that
// semantic mapping could not place, to aid manual review. It indexes the
// canonical vocabulary in memory with Bleve and answers fuzzy match queries.
package lexical

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
)

// Suggester answers "closest canonical metrics" queries over the vocabulary.
// Suggestions are best-effort: query errors yield no hints, never a failure
// of the surrounding mapping request.
type Suggester struct {
	mu    sync.RWMutex
	index bleve.Index
}

type metricDoc struct {
	Name string `json:"name"`
}

// buildIndex creates an in-memory index over the metric names.
// Standard analyzer (lowercase + tokenize, no stemming) so "receivables"
// matches the exact word rather than a stemmed form.
func buildIndex(metrics []string) (bleve.Index, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	nameField := bleve.NewTextFieldMapping()
	nameField.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("name", nameField)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create suggestion index: %w", err)
	}
	batch := index.NewBatch()
	for _, m := range metrics {
		if err := batch.Index(m, metricDoc{Name: m}); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("failed to index metric %q: %w", m, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to build suggestion index: %w", err)
	}
	return index, nil
}

// New creates a suggester over the given canonical metrics.
func New(metrics []string) (*Suggester, error) {
	index, err := buildIndex(metrics)
	if err != nil {
		return nil, err
	}
	return &Suggester{index: index}, nil
}

// Replace rebuilds the index over a new metric list (vocabulary reload).
func (s *Suggester) Replace(metrics []string) error {
	index, err := buildIndex(metrics)
	if err != nil {
		return err
	}
	s.mu.Lock()
	old := s.index
	s.index = index
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Suggest returns up to limit canonical metric names lexically close to
// label, best first. Exact-word matches rank above fuzzy ones.
func (s *Suggester) Suggest(label string, limit int) []string {
	if label == "" || limit <= 0 {
		return nil
	}

	match := bleve.NewMatchQuery(label)
	match.SetField("name")
	fuzzy := bleve.NewMatchQuery(label)
	fuzzy.SetField("name")
	fuzzy.SetFuzziness(2)
	fuzzy.SetBoost(0.5)

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(match, fuzzy))
	req.Size = limit

	s.mu.RLock()
	index := s.index
	s.mu.RUnlock()

	res, err := index.Search(req)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, hit.ID)
	}
	return out
}

// Close releases the index.
func (s *Suggester) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}
