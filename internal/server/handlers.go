package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/finlens/metricmap/internal/mapping"
)

type mapRequest struct {
	Labels []string `json:"labels"`
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	var req mapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("map request", zap.Int("labels", len(req.Labels)))

	result, err := s.pipeline.MapMetrics(r.Context(), req.Labels)
	if err != nil {
		switch {
		case errors.Is(err, mapping.ErrNoLabels):
			s.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, mapping.ErrMappingDisabled):
			s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			s.logger.Error("mapping failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if s.remote == nil {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"configured": false,
			"available":  false,
		})
		return
	}
	ok := s.remote.HealthCheck(r.Context())
	snap := s.remote.Health().Snapshot()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"configured": true,
		"available":  ok,
		"health":     snap,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resolver := s.pipeline.Resolver()
	stats := resolver.CacheStats()

	resp := map[string]interface{}{
		"remote_configured": resolver.RemoteConfigured(),
		"local_available":   resolver.LocalAvailable(),
		"vocabulary_size":   len(s.pipeline.Vocabulary().Metrics()),
		"cache": map[string]interface{}{
			"size":      stats.Size,
			"capacity":  stats.Capacity,
			"hits":      stats.Hits,
			"misses":    stats.Misses,
			"evictions": stats.Evictions,
		},
	}
	if s.remote != nil {
		resp["remote_health"] = s.remote.Health().Snapshot()
	}
	if s.store != nil {
		count, err := s.store.Count(r.Context())
		if err != nil {
			s.logger.Error("status: count stored embeddings failed", zap.Error(err))
		} else {
			resp["stored_embeddings"] = count
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVocabulary(w http.ResponseWriter, r *http.Request) {
	metrics := s.pipeline.Vocabulary().Metrics()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"metrics": metrics,
		"count":   len(metrics),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
