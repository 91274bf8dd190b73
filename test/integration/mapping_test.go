// Package integration provides end-to-end tests (full pipeline with real
// sqlite store and suggestion index).
package integration

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/finlens/metricmap/internal/config"
	"github.com/finlens/metricmap/internal/embedding"
	"github.com/finlens/metricmap/internal/lexical"
	"github.com/finlens/metricmap/internal/mapping"
	"github.com/finlens/metricmap/internal/store"
	"github.com/finlens/metricmap/internal/vocab"
)

func TestIntegration_MapMetrics(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(dir, "embeddings.db")
	cfg.Local.Dimensions = 8

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	local := embedding.NewMockEmbedder(cfg.Local.Dimensions)
	defer local.Close()

	v := vocab.New(vocab.Default())
	suggester, err := lexical.New(v.Metrics())
	if err != nil {
		t.Fatal(err)
	}
	defer suggester.Close()

	resolver := embedding.NewResolver(
		embedding.NewCache(cfg.Cache.MaxEntries),
		st, nil, local, true, zap.NewNop(),
	)
	pipeline := mapping.NewPipeline(resolver, v, &cfg.Mapping, suggester, zap.NewNop())
	ctx := context.Background()

	labels := []string{"Net Sales", "Total Assets", "Zqx Unmappable Item"}
	result, err := pipeline.MapMetrics(ctx, labels)
	if err != nil {
		t.Fatal(err)
	}

	total := len(result.HighConfidence) + len(result.MediumConfidence) +
		len(result.LowConfidence) + len(result.RequiresManual)
	if total != len(labels) {
		t.Fatalf("partition not total: %d of %d", total, len(labels))
	}
	if result.Method != mapping.MethodLocal {
		t.Errorf("first run method: got %s, want %s", result.Method, mapping.MethodLocal)
	}

	// Every resolved embedding must have been written through to sqlite.
	count, err := st.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count == 0 {
		t.Error("store should hold written-through embeddings")
	}

	// A fresh cache over the same store resolves without any new inference.
	resolver2 := embedding.NewResolver(
		embedding.NewCache(cfg.Cache.MaxEntries),
		st, nil, nil, true, zap.NewNop(),
	)
	pipeline2 := mapping.NewPipeline(resolver2, v, &cfg.Mapping, nil, zap.NewNop())
	result2, err := pipeline2.MapMetrics(ctx, []string{"Net Sales", "Total Assets"})
	if err != nil {
		t.Fatal(err)
	}
	if result2.Method != mapping.MethodCache {
		t.Errorf("warm-start method: got %s, want %s", result2.Method, mapping.MethodCache)
	}
}
