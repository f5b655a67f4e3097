package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/nerrad567/ctlremap/internal/history"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// handleHistory returns the newest recorded events, optionally filtered to
// one element identity via ?elem=.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "history is not configured")
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	elem := r.URL.Query().Get("elem")
	if len(elem) > maxQueryParamLen {
		writeBadRequest(w, "elem exceeds maximum length")
		return
	}

	var entries []history.Entry
	if elem != "" {
		entries, err = s.history.ForElement(r.Context(), elem, limit)
	} else {
		entries, err = s.history.Recent(r.Context(), limit)
	}
	if err != nil {
		s.logger.Error("history query failed", "error", err)
		writeInternalError(w, "failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"history": entries,
		"count":   len(entries),
	})
}

// handleElementHistory returns the newest recorded events for one element,
// resolved by numid. The history rows are keyed by the numid-less textual
// identity, so the numid is first resolved to its descriptor.
func (s *Server) handleElementHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "history is not configured")
		return
	}

	numid, ok := parseNumid(r)
	if !ok {
		writeBadRequest(w, "invalid numid")
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	info, err := s.gateway.Describe(numid)
	if err != nil {
		writeProviderError(w, err)
		return
	}
	elemID := info.ID
	elemID.Numid = 0
	key := elemID.String()

	entries, err := s.history.ForElement(r.Context(), key, limit)
	if err != nil {
		s.logger.Error("history query failed", "elem", key, "error", err)
		writeInternalError(w, "failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"numid":   numid,
		"elem":    key,
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
