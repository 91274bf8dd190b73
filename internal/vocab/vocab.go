// Package vocab provides the canonical financial metric vocabulary.
package vocab

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Default returns the built-in ordered canonical vocabulary of standard
// financial statement line items. Order matters: tie-breaks during matching
// resolve to the lowest-index metric.
func Default() []string {
	return []string{
		"Total Assets", "Current Assets", "Non-current Assets",
		"Cash and Cash Equivalents", "Inventory", "Trade Receivables",
		"Property Plant and Equipment", "Total Liabilities",
		"Current Liabilities", "Non-current Liabilities",
		"Total Equity", "Share Capital", "Retained Earnings",
		"Revenue", "Cost of Goods Sold", "Gross Profit",
		"Operating Expenses", "Operating Income", "Net Income",
		"Earnings Per Share", "Operating Cash Flow",
		"Investing Cash Flow", "Financing Cash Flow",
		"EBIT", "EBITDA", "Interest Expense", "Tax Expense",
	}
}

// Vocabulary is a thread-safe holder for the ordered canonical metric list.
// It is static for most process lifetimes; Replace supports hot-reload from
// a watched vocabulary file.
type Vocabulary struct {
	mu      sync.RWMutex
	metrics []string
}

// New creates a vocabulary from the given ordered metric list.
// An empty or nil list falls back to the built-in default.
func New(metrics []string) *Vocabulary {
	if len(metrics) == 0 {
		metrics = Default()
	}
	return &Vocabulary{metrics: metrics}
}

// Metrics returns a copy of the ordered metric list.
func (v *Vocabulary) Metrics() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, len(v.metrics))
	copy(out, v.metrics)
	return out
}

// Len returns the number of canonical metrics.
func (v *Vocabulary) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.metrics)
}

// Replace atomically swaps in a new metric list. Empty lists are ignored so
// a truncated reload cannot wipe the vocabulary.
func (v *Vocabulary) Replace(metrics []string) {
	if len(metrics) == 0 {
		return
	}
	v.mu.Lock()
	v.metrics = metrics
	v.mu.Unlock()
}

// vocabFile is the YAML shape of a vocabulary override file.
type vocabFile struct {
	Metrics []string `yaml:"metrics"`
}

// LoadFile reads an ordered metric list from a YAML file with a top-level
// "metrics" list.
func LoadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}
	var f vocabFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary: %w", err)
	}
	if len(f.Metrics) == 0 {
		return nil, fmt.Errorf("vocabulary file %s has no metrics", path)
	}
	return f.Metrics, nil
}
