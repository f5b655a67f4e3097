package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/ctlremap/internal/ctl"
	"github.com/nerrad567/ctlremap/internal/remap"
)

// Error is the JSON error body every failing endpoint returns.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Machine-readable error codes carried in the Code field.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeUnavailable  = "service_unavailable"
)

// writeJSON encodes v with the given status. A nil v sends headers only.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// Shorthand writers for the common statuses.

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

func writeUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

// writeProviderError maps control namespace errors onto HTTP statuses.
// Unrecognised errors collapse to a generic 500 so provider internals
// never leak to clients.
func writeProviderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ctl.ErrNotFound):
		writeNotFound(w, "element not found")
	case errors.Is(err, ctl.ErrBusy):
		writeError(w, http.StatusConflict, ErrCodeConflict, "element is locked by another owner")
	case errors.Is(err, remap.ErrInconsistentSources):
		writeError(w, http.StatusConflict, ErrCodeConflict, "merge sources are inconsistent")
	case errors.Is(err, ctl.ErrPermission):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "element access bits forbid this operation")
	case errors.Is(err, ctl.ErrNotSupported):
		writeBadRequest(w, "operation not supported by this element")
	case errors.Is(err, ctl.ErrInvalidID):
		writeBadRequest(w, "invalid element identity")
	case errors.Is(err, ctl.ErrInvalidValue):
		writeBadRequest(w, "invalid element value")
	case errors.Is(err, remap.ErrInvalidConfiguration):
		writeBadRequest(w, "rule configuration rejects this operation")
	case errors.Is(err, ctl.ErrClosed):
		writeUnavailable(w, "control provider is closed")
	default:
		writeInternalError(w, "control operation failed")
	}
}
