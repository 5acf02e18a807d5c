package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/vehicle-ai-core/internal/command"
	"github.com/nerrad567/vehicle-ai-core/internal/vehicle"
)

// Service health values reported on /health.
const (
	healthHealthy     = "healthy"
	healthDegraded    = "degraded"
	healthUnavailable = "unavailable"
	healthDisabled    = "disabled"
)

// healthCheckTimeout bounds each backend probe on /health.
const healthCheckTimeout = 2 * time.Second

// backendServices are always listed on /health, enabled or not.
var backendServices = []string{"mqtt", "influxdb", "journal"}

// handleRoot identifies the service.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Vehicle AI Backend API",
		"status":  "running",
	})
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp float64           `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
}

// handleHealth reports the store, registry, ML parser, speech and optional
// backends. Only a failing enabled backend degrades the overall status; the
// ML parser being down is expected and handled by the fallback.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{
		"vehicle_state":     healthHealthy,
		"websocket_manager": healthHealthy,
		"ml_parser":         healthUnavailable,
		"speech":            healthDisabled,
	}
	if !s.features.WebSocket {
		services["websocket_manager"] = healthDisabled
	}
	if s.parser.Status(r.Context()).Available {
		services["ml_parser"] = healthHealthy
	}
	if s.speech != nil && s.speech.Available() {
		services["speech"] = healthHealthy
	}

	status := healthHealthy
	for _, name := range backendServices {
		hc, ok := s.backends[name]
		if !ok || hc == nil {
			services[name] = healthDisabled
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := hc.HealthCheck(ctx)
		cancel()
		if err != nil {
			s.logger.Warn("backend health check failed", "service", name, "error", err)
			services[name] = healthUnavailable
			status = healthDegraded
			continue
		}
		services[name] = healthHealthy
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Timestamp: vehicle.UnixSeconds(s.now()),
		Services:  services,
		Version:   s.version,
	})
}

// handleStatus returns the full snapshot with the live connection count.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "running",
		"vehicle_state": s.store.Snapshot(),
		"connections":   s.registry.Count(),
		"timestamp":     vehicle.UnixSeconds(s.now()),
	})
}

// handleGetState returns the canonical snapshot.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

// handleResetState restores the configured defaults.
func (s *Server) handleResetState(w http.ResponseWriter, r *http.Request) {
	st := s.processor.Reset(r.Context(), command.SourceHTTP)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Vehicle state reset to defaults",
		"data":    st,
	})
}

// ExecuteRequest is the body of POST /api/execute.
type ExecuteRequest struct {
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters"`
}

// handleExecute runs one action by name.
// The Result is returned as is; failures use 400 with the same body so
// clients can read the reason from "error".
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Action) == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "action is required")
		return
	}

	res := s.processor.Execute(r.Context(), command.SourceHTTP, req.Action, req.Parameters)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, res)
}
