package api

import (
	"net/http"
	"time"
)

// handleSystemInfo returns daemon identity and namespace summary data.
func (s *Server) handleSystemInfo(w http.ResponseWriter, _ *http.Request) {
	stats := s.gateway.Stats()

	info := map[string]any{
		"version":        s.version,
		"started_at":     s.startTime.UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"elements":       stats.Elements,
		"rules_swaps":    stats.RulesSwaps,
		"auth_enabled":   s.authEnabled(),
		"history":        s.history != nil,
		"mqtt":           s.mqtt != nil,
	}
	if !stats.LastEventAt.IsZero() {
		info["last_event_at"] = stats.LastEventAt.Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, info)
}
