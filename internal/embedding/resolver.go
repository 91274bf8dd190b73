package embedding

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/finlens/metricmap/pkg/utils"
)

// PersistentStore is a second-level embedding store under the in-memory LRU.
// A store hit counts as a cache hit and is promoted into the LRU.
type PersistentStore interface {
	Get(ctx context.Context, text string) ([]float32, bool)
	Put(ctx context.Context, text string, vec []float32, origin string) error
}

// Resolver produces an embedding for a text with tiered fallback and
// cache-aside semantics: LRU cache, persistent store, remote endpoint,
// local engine, in that order, short-circuiting on first success.
//
// Resolution is idempotent: given the same availability flags and cache
// state, repeated resolution of the same text yields the same vector without
// re-invoking inference. A vector is only ever cached once it is complete.
type Resolver struct {
	cache           *Cache
	store           PersistentStore // optional
	remote          *RemoteClient   // optional
	local           Embedder        // optional
	fallbackToLocal bool
	logger          *zap.Logger
}

// Resolution is the outcome of resolving one label.
type Resolution struct {
	Label  string
	Vector []float32
	Origin Origin
	OK     bool
}

// NewResolver creates a resolver. store, remote, and local may each be nil,
// disabling that tier. fallbackToLocal controls whether the local tier is
// consulted when a remote endpoint is configured.
func NewResolver(cache *Cache, store PersistentStore, remote *RemoteClient, local Embedder, fallbackToLocal bool, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NewCache(0)
	}
	return &Resolver{
		cache:           cache,
		store:           store,
		remote:          remote,
		local:           local,
		fallbackToLocal: fallbackToLocal,
		logger:          logger,
	}
}

// CacheStats returns counters for the in-memory cache.
func (r *Resolver) CacheStats() CacheStats {
	return r.cache.Stats()
}

// RemoteConfigured reports whether a remote tier exists.
func (r *Resolver) RemoteConfigured() bool {
	return r.remote != nil
}

// LocalAvailable reports whether a local engine is present.
func (r *Resolver) LocalAvailable() bool {
	return r.local != nil
}

// Resolve returns the embedding for text, its origin, and whether any tier
// produced one. The text is normalized (case-folded, whitespace-collapsed)
// before every tier, so differently-formatted labels with the same normal
// form share one cache entry.
func (r *Resolver) Resolve(ctx context.Context, text string) ([]float32, Origin, bool) {
	key := utils.NormalizeLabel(text)
	if key == "" {
		return nil, OriginNone, false
	}

	if vec, ok := r.cache.Get(key); ok {
		return vec, OriginCache, true
	}

	if r.store != nil {
		if vec, ok := r.store.Get(ctx, key); ok {
			r.cache.Set(key, vec)
			return vec, OriginStore, true
		}
	}

	// Remote is attempted only while marked available. A transient per-call
	// failure falls through without mutating health; only an explicit probe
	// failure disables the remote tier.
	if r.remote != nil && r.remote.Health().Available() {
		if vecs, ok := r.remote.EmbedBatch(ctx, []string{key}); ok && len(vecs) == 1 {
			r.put(ctx, key, vecs[0], OriginRemote)
			return vecs[0], OriginRemote, true
		}
		r.logger.Debug("remote tier fell through", zap.String("label", key))
	}

	if r.local != nil && (r.remote == nil || r.fallbackToLocal) {
		vec, err := r.local.Embed(ctx, key)
		if err == nil && len(vec) > 0 {
			r.put(ctx, key, vec, OriginLocal)
			return vec, OriginLocal, true
		}
		if err != nil {
			r.logger.Warn("local embedding failed", zap.String("label", key), zap.Error(err))
		}
	}

	return nil, OriginNone, false
}

// ResolveBatch resolves labels through a bounded worker pool. workers <= 1
// resolves sequentially, which keeps remote load predictable; higher values
// are safe because only the cache synchronizes writes. Results are returned
// in input order.
func (r *Resolver) ResolveBatch(ctx context.Context, labels []string, workers int) []Resolution {
	results := make([]Resolution, len(labels))
	if workers <= 1 {
		for i, label := range labels {
			vec, origin, ok := r.Resolve(ctx, label)
			results[i] = Resolution{Label: label, Vector: vec, Origin: origin, OK: ok}
		}
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, label := range labels {
		i, label := i, label
		g.Go(func() error {
			vec, origin, ok := r.Resolve(gctx, label)
			results[i] = Resolution{Label: label, Vector: vec, Origin: origin, OK: ok}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; misses are outcomes
	return results
}

// put stores a complete vector in the cache and, when configured, the
// persistent store. Store failures are logged and otherwise ignored.
func (r *Resolver) put(ctx context.Context, key string, vec []float32, origin Origin) {
	r.cache.Set(key, vec)
	if r.store != nil {
		if err := r.store.Put(ctx, key, vec, string(origin)); err != nil {
			r.logger.Warn("persistent store write failed", zap.String("label", key), zap.Error(err))
		}
	}
}
