// Package embedding provides text embedding with a tiered remote/local
// inference strategy, bounded caching, and health tracking.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Origin identifies which tier produced an embedding.
type Origin string

const (
	// OriginCache is an in-memory LRU hit.
	OriginCache Origin = "cache"
	// OriginStore is a persistent store hit (counts as a cache hit).
	OriginStore Origin = "store"
	// OriginRemote is a fresh embedding from the remote inference endpoint.
	OriginRemote Origin = "remote_ai"
	// OriginLocal is a fresh embedding from the local inference engine.
	OriginLocal Origin = "local_ai"
	// OriginNone means no tier produced an embedding.
	OriginNone Origin = "none"
)
