package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/finlens/metricmap/internal/config"
	"github.com/finlens/metricmap/internal/embedding"
	"github.com/finlens/metricmap/internal/mapping"
	"github.com/finlens/metricmap/internal/vocab"
)

func newTestServer(t *testing.T, mutate func(cfg *config.Config), remote *embedding.RemoteClient) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}

	local := embedding.NewMockEmbedder(8)
	resolver := embedding.NewResolver(embedding.NewCache(cfg.Cache.MaxEntries), nil, remote, local, true, zap.NewNop())
	pipeline := mapping.NewPipeline(resolver, vocab.New(vocab.Default()), &cfg.Mapping, nil, zap.NewNop())

	s := NewServer(pipeline, remote, nil, &cfg.Server, zap.NewNop())
	ts := httptest.NewServer(s.router())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHandleMap(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	resp := postJSON(t, ts.URL+"/api/v1/map", `{"labels":["Net Sales","Total Assets","Gibberish Item"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	var result mapping.Result
	decodeBody(t, resp, &result)

	total := len(result.HighConfidence) + len(result.MediumConfidence) + len(result.LowConfidence) + len(result.RequiresManual)
	if total != 3 {
		t.Errorf("partition not total: %d of 3 (%+v)", total, result)
	}
	if result.RequestID == "" {
		t.Error("request id missing")
	}
	if result.Method != mapping.MethodLocal {
		t.Errorf("method: got %s, want %s", result.Method, mapping.MethodLocal)
	}
}

func TestHandleMapInvalidBody(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	resp := postJSON(t, ts.URL+"/api/v1/map", `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHandleMapEmptyLabels(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	resp := postJSON(t, ts.URL+"/api/v1/map", `{"labels":[]}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] == "" {
		t.Error("error message missing")
	}
}

func TestHandleMapDisabled(t *testing.T) {
	off := false
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Mapping.Enabled = &off
	}, nil)

	resp := postJSON(t, ts.URL+"/api/v1/map", `{"labels":["Revenue"]}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status: got %d, want 422", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if !strings.Contains(body["error"], "disabled") {
		t.Errorf("error: got %q", body["error"])
	}
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("body: got %v", body)
	}
}

func TestHandleVocabulary(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	resp, err := http.Get(ts.URL + "/api/v1/vocabulary")
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		Metrics []string `json:"metrics"`
		Count   int      `json:"count"`
	}
	decodeBody(t, resp, &body)
	if body.Count != 27 || len(body.Metrics) != 27 {
		t.Errorf("vocabulary: got count=%d len=%d", body.Count, len(body.Metrics))
	}
}

func TestHandleStatus(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	resp, err := http.Get(ts.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]interface{}
	decodeBody(t, resp, &body)

	if body["remote_configured"] != false {
		t.Errorf("remote_configured: got %v", body["remote_configured"])
	}
	if body["local_available"] != true {
		t.Errorf("local_available: got %v", body["local_available"])
	}
	if body["vocabulary_size"] != float64(27) {
		t.Errorf("vocabulary_size: got %v", body["vocabulary_size"])
	}
	if _, ok := body["cache"].(map[string]interface{}); !ok {
		t.Errorf("cache stats missing: %v", body)
	}
}

func TestHandleHealthCheckNoRemote(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	resp := postJSON(t, ts.URL+"/api/v1/health-check", `{}`)
	var body map[string]interface{}
	decodeBody(t, resp, &body)
	if body["configured"] != false || body["available"] != false {
		t.Errorf("no-remote health check: got %v", body)
	}
}

func TestHandleHealthCheckProbesRemote(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Texts []string `json:"texts"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		out := make([][]float32, len(req.Texts))
		for i := range out {
			out[i] = []float32{1, 0, 0}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"embeddings": out,
			"info":       map[string]interface{}{"model": "test-model"},
		})
	}))
	defer upstream.Close()

	health := embedding.NewHealth(upstream.URL)
	remote := embedding.NewRemoteClient(upstream.URL, "", time.Second, 0, health, zap.NewNop())
	ts := newTestServer(t, nil, remote)

	resp := postJSON(t, ts.URL+"/api/v1/health-check", `{}`)
	var body struct {
		Configured bool                     `json:"configured"`
		Available  bool                     `json:"available"`
		Health     embedding.HealthSnapshot `json:"health"`
	}
	decodeBody(t, resp, &body)

	if !body.Configured || !body.Available {
		t.Fatalf("health check: got %+v", body)
	}
	if !body.Health.Available {
		t.Error("snapshot should show available after successful probe")
	}
	if !health.Available() {
		t.Error("probe success must mark the endpoint available")
	}
}
