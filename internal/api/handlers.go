package api

import (
	"context"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/nerrad567/traffic-relay/internal/relay"
)

// healthCheckTimeout bounds each component check on /health.
const healthCheckTimeout = 2 * time.Second

// Health status values.
const (
	healthOK       = "ok"
	healthDegraded = "degraded"
)

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Relay      relay.State       `json:"relay"`
	Components map[string]string `json:"components,omitempty"`
}

// StateResponse is the body of GET /api/v1/state.
type StateResponse struct {
	Light1 string      `json:"light1"`
	Light2 string      `json:"light2"`
	Frame  string      `json:"frame"`
	Relay  relay.State `json:"relay"`
}

// UIConfigResponse tells the browser where the WebSocket listener is.
type UIConfigResponse struct {
	WSPort int    `json:"ws_port"`
	WSPath string `json:"ws_path"`
}

// handleHealth reports "ok" when every registered component passes its
// check, otherwise "degraded" with a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  healthOK,
		Version: s.version,
		Relay:   s.relay.Stats().State,
	}

	if len(s.checks) > 0 {
		resp.Components = make(map[string]string, len(s.checks))
		names := make([]string, 0, len(s.checks))
		for name := range s.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := s.checks[name].HealthCheck(ctx)
			cancel()
			if err != nil {
				resp.Components[name] = err.Error()
				resp.Status = healthDegraded
				continue
			}
			resp.Components[name] = healthOK
		}
	}

	status := http.StatusOK
	if resp.Status != healthOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleState returns the current light values.
func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	snap := s.relay.Snapshot()
	writeJSON(w, http.StatusOK, StateResponse{
		Light1: snap.Light1,
		Light2: snap.Light2,
		Frame:  snap.Frame(),
		Relay:  s.relay.Stats().State,
	})
}

// handleUIConfig returns the WebSocket port and path for app.js. A
// configured port of 0 reports the port actually bound.
func (s *Server) handleUIConfig(w http.ResponseWriter, _ *http.Request) {
	port := s.wsCfg.Port
	if port == 0 {
		if addr, ok := s.WSAddr().(*net.TCPAddr); ok {
			port = addr.Port
		}
	}
	writeJSON(w, http.StatusOK, UIConfigResponse{
		WSPort: port,
		WSPath: s.wsCfg.Path,
	})
}
