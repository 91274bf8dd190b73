//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

var errNoCGO = errors.New("local ONNX engine requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// LocalEngine stub type when built without CGO (see onnx.go for the real implementation).
// The constructor always fails, so the resolver reports the local tier as
// unavailable; the methods exist only to satisfy the Embedder interface.
type LocalEngine struct{}

// NewLocalEngine returns an error when built without CGO (ONNX not available).
func NewLocalEngine(_ string, _, _ int) (*LocalEngine, error) {
	return nil, errNoCGO
}

func (e *LocalEngine) Embed(context.Context, string) ([]float32, error) { return nil, errNoCGO }

func (e *LocalEngine) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errNoCGO
}

func (e *LocalEngine) Dimensions() int { return 0 }

func (e *LocalEngine) Close() error { return nil }
