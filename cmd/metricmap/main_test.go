package main

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/finlens/metricmap/internal/config"
	"github.com/finlens/metricmap/internal/mapping"
)

func TestInitializeComponentsMissingModel(t *testing.T) {
	cfg := config.Default()
	cfg.Local.ModelPath = filepath.Join(t.TempDir(), "missing.onnx")

	components, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("initializeComponents: %v", err)
	}
	defer components.Close()

	// An unresolvable model leaves the local tier absent rather than wiring
	// in a stand-in embedder.
	if components.Local != nil {
		t.Error("local tier should be absent when the model is not resolvable")
	}
	if components.Resolver.LocalAvailable() {
		t.Error("resolver must report local unavailable")
	}

	// With no remote configured either, mapping degrades honestly: every
	// label requires manual review and the method tag is "none".
	r, err := components.Pipeline.MapMetrics(context.Background(), []string{"Net Sales", "Total Assets"})
	if err != nil {
		t.Fatalf("MapMetrics: %v", err)
	}
	if r.Method != mapping.MethodNone {
		t.Errorf("method: got %s, want %s", r.Method, mapping.MethodNone)
	}
	if len(r.RequiresManual) != 2 {
		t.Errorf("requires_manual: got %v", r.RequiresManual)
	}
	if len(r.HighConfidence)+len(r.MediumConfidence)+len(r.LowConfidence) != 0 {
		t.Errorf("no tier may produce mappings, got %+v", r)
	}
}
