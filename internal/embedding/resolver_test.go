package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

// countingEmbedder wraps MockEmbedder and counts inference calls.
type countingEmbedder struct {
	*MockEmbedder
	calls atomic.Int32
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.MockEmbedder.Embed(ctx, text)
}

// fakeStore is an in-memory PersistentStore.
type fakeStore struct {
	data map[string][]float32
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]float32)}
}

func (s *fakeStore) Get(_ context.Context, text string) ([]float32, bool) {
	v, ok := s.data[text]
	return v, ok
}

func (s *fakeStore) Put(_ context.Context, text string, vec []float32, _ string) error {
	s.data[text] = vec
	return nil
}

func TestResolveNormalizationIdempotence(t *testing.T) {
	local := &countingEmbedder{MockEmbedder: NewMockEmbedder(8)}
	r := NewResolver(NewCache(10), nil, nil, local, true, zap.NewNop())

	v1, origin, ok := r.Resolve(context.Background(), "Total Revenue")
	if !ok || origin != OriginLocal {
		t.Fatalf("first resolve: ok=%v origin=%s", ok, origin)
	}
	// Different surface form, identical normalized form: must hit the same
	// cache entry with zero additional inference calls.
	v2, origin, ok := r.Resolve(context.Background(), "  total   REVENUE ")
	if !ok || origin != OriginCache {
		t.Fatalf("second resolve: ok=%v origin=%s", ok, origin)
	}
	if local.calls.Load() != 1 {
		t.Errorf("inference calls: got %d, want 1", local.calls.Load())
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("vectors differ at %d: %f vs %f", i, v1[i], v2[i])
		}
	}
}

func TestResolveNoTiers(t *testing.T) {
	r := NewResolver(NewCache(10), nil, nil, nil, true, zap.NewNop())
	start := time.Now()
	if _, origin, ok := r.Resolve(context.Background(), "Foo"); ok || origin != OriginNone {
		t.Errorf("expected total miss, got origin=%s ok=%v", origin, ok)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("miss took %v; no network call should be attempted", elapsed)
	}
}

func TestResolveEmptyLabel(t *testing.T) {
	r := NewResolver(NewCache(10), nil, nil, NewMockEmbedder(4), true, zap.NewNop())
	if _, _, ok := r.Resolve(context.Background(), "   "); ok {
		t.Error("whitespace-only label should miss")
	}
}

func TestResolveRemoteTier(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"embeddings": [[0.6, 0.8]], "info": {}}`))
	}))
	defer srv.Close()

	remote := newTestClient(srv.URL, 0)
	remote.HealthCheck(context.Background())
	calls.Store(0)

	local := &countingEmbedder{MockEmbedder: NewMockEmbedder(2)}
	r := NewResolver(NewCache(10), nil, remote, local, true, zap.NewNop())

	vec, origin, ok := r.Resolve(context.Background(), "revenue")
	if !ok || origin != OriginRemote {
		t.Fatalf("resolve: ok=%v origin=%s", ok, origin)
	}
	if vec[0] != 0.6 || vec[1] != 0.8 {
		t.Errorf("vector: got %v", vec)
	}
	if local.calls.Load() != 0 {
		t.Error("local should not be consulted when remote succeeds")
	}
	if calls.Load() != 1 {
		t.Errorf("remote calls: got %d", calls.Load())
	}
}

func TestResolveRemoteNotProbedSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	// Health starts unavailable: the resolver must not attempt the network.
	remote := newTestClient(srv.URL, 0)
	local := NewMockEmbedder(4)
	r := NewResolver(NewCache(10), nil, remote, local, true, zap.NewNop())

	_, origin, ok := r.Resolve(context.Background(), "revenue")
	if !ok || origin != OriginLocal {
		t.Fatalf("resolve: ok=%v origin=%s", ok, origin)
	}
	if calls.Load() != 0 {
		t.Errorf("remote was called %d times despite being marked unavailable", calls.Load())
	}
}

func TestResolvePerCallFailureKeepsHealth(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy {
			_, _ = w.Write([]byte(`{"embeddings": [[1, 0]], "info": {}}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	remote := newTestClient(srv.URL, 0)
	remote.HealthCheck(context.Background())
	healthy = false

	local := NewMockEmbedder(2)
	r := NewResolver(NewCache(10), nil, remote, local, true, zap.NewNop())

	_, origin, ok := r.Resolve(context.Background(), "net sales")
	if !ok || origin != OriginLocal {
		t.Fatalf("resolve: ok=%v origin=%s", ok, origin)
	}
	// Transient per-call failure must not flip long-lived health state.
	if !remote.Health().Available() {
		t.Error("per-call failure must not disable remote health")
	}
}

func TestResolveNoLocalFallbackWhenDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	remote := NewRemoteClient(srv.URL, "", time.Second, 0, NewHealth(srv.URL), zap.NewNop())
	remote.Health().MarkAvailable(nil)

	local := NewMockEmbedder(4)
	r := NewResolver(NewCache(10), nil, remote, local, false, zap.NewNop())

	if _, _, ok := r.Resolve(context.Background(), "revenue"); ok {
		t.Error("with fallback disabled and remote failing, resolution must miss")
	}
}

func TestResolveStoreTier(t *testing.T) {
	store := newFakeStore()
	store.data["revenue"] = []float32{0.1, 0.2}

	r := NewResolver(NewCache(10), store, nil, nil, true, zap.NewNop())
	vec, origin, ok := r.Resolve(context.Background(), "Revenue")
	if !ok || origin != OriginStore {
		t.Fatalf("resolve: ok=%v origin=%s", ok, origin)
	}
	if vec[1] != 0.2 {
		t.Errorf("vector: got %v", vec)
	}

	// Store hit promotes into the LRU.
	_, origin, ok = r.Resolve(context.Background(), "revenue")
	if !ok || origin != OriginCache {
		t.Errorf("second resolve should hit cache, got %s", origin)
	}
}

func TestResolveWritesThroughToStore(t *testing.T) {
	store := newFakeStore()
	local := NewMockEmbedder(4)
	r := NewResolver(NewCache(10), store, nil, local, true, zap.NewNop())

	if _, _, ok := r.Resolve(context.Background(), "EBITDA"); !ok {
		t.Fatal("resolve failed")
	}
	if _, ok := store.data["ebitda"]; !ok {
		t.Error("resolved vector should be written through to the store")
	}
}

func TestResolveBatch(t *testing.T) {
	local := NewMockEmbedder(4)
	r := NewResolver(NewCache(100), nil, nil, local, true, zap.NewNop())

	labels := []string{"Revenue", "Net Income", "", "EBITDA"}
	for _, workers := range []int{1, 4} {
		results := r.ResolveBatch(context.Background(), labels, workers)
		if len(results) != len(labels) {
			t.Fatalf("workers=%d: got %d results", workers, len(results))
		}
		for i, res := range results {
			if res.Label != labels[i] {
				t.Errorf("workers=%d: result %d out of order: %q", workers, i, res.Label)
			}
		}
		if results[2].OK {
			t.Errorf("workers=%d: empty label should miss", workers)
		}
		if !results[0].OK || !results[3].OK {
			t.Errorf("workers=%d: valid labels should resolve", workers)
		}
	}
}
