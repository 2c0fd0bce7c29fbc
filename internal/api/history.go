package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/nerrad567/traffic-relay/internal/history"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// handleHistory returns recorded transitions, newest first.
// Query: light=light1|light2 (optional), limit=1..200 (default 50).
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, history.ErrDisabled.Error())
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	light := r.URL.Query().Get("light")

	entries, err := s.history.GetHistory(r.Context(), light, limit)
	if err != nil {
		if errors.Is(err, history.ErrInvalidLight) {
			writeBadRequest(w, "light must be light1 or light2")
			return
		}
		s.logger.Error("loading light history failed", "error", err, "request_id", requestIDFrom(r.Context()))
		writeInternalError(w, "failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"history": entries,
		"count":   len(entries),
	})
}

// parseHistoryLimit parses the limit query parameter with bounds enforcement.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}

	return limit, nil
}
