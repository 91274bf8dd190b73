package embedding

import (
	"sync"
	"time"
)

// Health tracks availability of the remote inference endpoint.
//
// The mutation policy is deliberately asymmetric: only an explicit health
// check flips availability, while per-call failures during mapping fall
// through to the next tier without touching it. Flipping per-call failures
// into disablement would thrash on noisy networks.
type Health struct {
	mu        sync.Mutex
	endpoint  string
	available bool
	lastCheck time.Time
	info      map[string]interface{}
}

// HealthSnapshot is a point-in-time copy of the health state.
type HealthSnapshot struct {
	Endpoint  string                 `json:"endpoint"`
	Available bool                   `json:"available"`
	LastCheck time.Time              `json:"last_check"`
	Info      map[string]interface{} `json:"info,omitempty"`
}

// NewHealth creates a health record for the given endpoint, initially unavailable.
func NewHealth(endpoint string) *Health {
	return &Health{endpoint: endpoint}
}

// Available reports whether the remote endpoint is currently marked available.
func (h *Health) Available() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.available
}

// MarkAvailable records a successful probe, including any returned metadata
// (model info, GPU flag).
func (h *Health) MarkAvailable(info map[string]interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.available = true
	h.lastCheck = time.Now()
	h.info = info
}

// MarkUnavailable records a failed probe.
func (h *Health) MarkUnavailable() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.available = false
	h.lastCheck = time.Now()
}

// Snapshot returns a copy of the current health state.
func (h *Health) Snapshot() HealthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	info := make(map[string]interface{}, len(h.info))
	for k, v := range h.info {
		info[k] = v
	}
	return HealthSnapshot{
		Endpoint:  h.endpoint,
		Available: h.available,
		LastCheck: h.lastCheck,
		Info:      info,
	}
}
