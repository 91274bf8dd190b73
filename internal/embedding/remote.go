package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RemoteClient talks to an external GPU-backed embedding endpoint
// (POST {base_url}/embed with {"texts": [...]}).
//
// All network failures (timeout, non-200, malformed JSON, connection refused)
// are soft: callers receive ok=false, never an error that propagates past the
// client boundary.
type RemoteClient struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	maxRetries int
	client     *http.Client
	health     *Health
	logger     *zap.Logger
}

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float32            `json:"embeddings"`
	Info       map[string]interface{} `json:"info"`
}

// NewRemoteClient creates a client for the embedding endpoint at baseURL.
// maxRetries bounds per-request retry attempts so a flaky remote cannot
// head-of-line block the mapping pipeline.
func NewRemoteClient(baseURL, apiKey string, timeout time.Duration, maxRetries int, health *Health, logger *zap.Logger) *RemoteClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		timeout:    timeout,
		maxRetries: maxRetries,
		client:     &http.Client{Timeout: timeout},
		health:     health,
		logger:     logger,
	}
}

// Health returns the health record this client probes into.
func (c *RemoteClient) Health() *Health {
	return c.health
}

// EmbedBatch requests embeddings for texts. Returns ok=false on any failure
// after bounded retries with exponential backoff. Per-call failures do NOT
// mutate the long-lived health state; only HealthCheck does.
func (c *RemoteClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, bool) {
	if len(texts) == 0 {
		return nil, false
	}

	var result *embedResponse
	op := func() error {
		resp, err := c.post(ctx, texts)
		if err != nil {
			return err
		}
		if len(resp.Embeddings) != len(texts) {
			return fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Embeddings), len(texts))
		}
		// Only complete vectors may flow downstream: an empty or odd-sized
		// row would otherwise be cached and persisted as-is.
		dims := len(resp.Embeddings[0])
		for i, vec := range resp.Embeddings {
			if len(vec) == 0 || len(vec) != dims {
				return fmt.Errorf("malformed embedding at index %d: %d values, want %d", i, len(vec), dims)
			}
		}
		result = resp
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		c.logger.Warn("remote embedding failed",
			zap.Int("texts", len(texts)),
			zap.Error(err),
		)
		return nil, false
	}
	return result.Embeddings, true
}

// HealthCheck sends a minimal probe request and records the outcome into the
// health state. A single probe failure marks the endpoint unavailable.
func (c *RemoteClient) HealthCheck(ctx context.Context) bool {
	start := time.Now()
	resp, err := c.post(ctx, []string{"test"})
	if err != nil || len(resp.Embeddings) == 0 {
		if err != nil {
			c.logger.Warn("remote health check failed", zap.String("endpoint", c.baseURL), zap.Error(err))
		} else {
			c.logger.Warn("remote health check returned no embeddings", zap.String("endpoint", c.baseURL))
		}
		c.health.MarkUnavailable()
		return false
	}

	info := resp.Info
	if info == nil {
		info = map[string]interface{}{}
	}
	info["round_trip_ms"] = time.Since(start).Milliseconds()
	c.health.MarkAvailable(info)
	c.logger.Info("remote endpoint healthy",
		zap.String("endpoint", c.baseURL),
		zap.Duration("round_trip", time.Since(start)),
	)
	return true
}

// post performs a single /embed request attempt.
func (c *RemoteClient) post(ctx context.Context, texts []string) (*embedResponse, error) {
	body, err := json.Marshal(embedRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Bypass header for tunneling proxies fronting the GPU notebook.
	req.Header.Set("ngrok-skip-browser-warning", "true")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	return &out, nil
}
