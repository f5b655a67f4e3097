package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/ctlremap/internal/ctl"
	"github.com/nerrad567/ctlremap/internal/gateway"
	"github.com/nerrad567/ctlremap/internal/history"
)

const (
	defaultElementsLimit = 100
	maxElementsLimit     = 500
	maxQueryParamLen     = 256
)

// valueResponse is the REST shape of an element value. The identity is
// rendered without its numid; the numid rides in its own field.
type valueResponse struct {
	Numid  uint32  `json:"numid"`
	ID     string  `json:"id"`
	Values []int64 `json:"values,omitempty"`
	Bytes  string  `json:"bytes,omitempty"`
}

func newValueResponse(v *ctl.ElemValue) valueResponse {
	id := v.ID
	id.Numid = 0
	resp := valueResponse{
		Numid:  v.ID.Numid,
		ID:     id.String(),
		Values: v.Ints,
	}
	if len(v.Bytes) > 0 {
		resp.Bytes = hex.EncodeToString(v.Bytes)
	}
	return resp
}

// setValueRequest is the request body for PUT /elements/{numid}/value.
// Values carries numeric channels; Bytes is a hex payload for bytes and
// IEC958 elements.
type setValueRequest struct {
	Values []int64 `json:"values"`
	Bytes  string  `json:"bytes"`
}

// tlvRequest is the request body for TLV writes and commands.
type tlvRequest struct {
	TLV string `json:"tlv"`
}

// parseNumid extracts and validates the numid URL parameter.
func parseNumid(r *http.Request) (uint32, bool) {
	raw := chi.URLParam(r, "numid")
	numid, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || numid == 0 {
		return 0, false
	}
	return uint32(numid), true
}

// parsePageParam parses a non-negative paging parameter with a fallback.
func parsePageParam(raw string, fallback uint32) (uint32, bool) {
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(value), true
}

// handleListElements returns one page of the element namespace.
func (s *Server) handleListElements(w http.ResponseWriter, r *http.Request) {
	offset, ok := parsePageParam(r.URL.Query().Get("offset"), 0)
	if !ok {
		writeBadRequest(w, "invalid offset")
		return
	}
	limit, ok := parsePageParam(r.URL.Query().Get("limit"), defaultElementsLimit)
	if !ok || limit == 0 || limit > maxElementsLimit {
		writeBadRequest(w, "invalid limit")
		return
	}

	ids, total, err := s.gateway.Elements(offset, limit)
	if err != nil {
		writeProviderError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"elements": ids,
		"count":    total,
		"offset":   offset,
		"limit":    limit,
	})
}

// handleGetElement returns the descriptor for one element.
func (s *Server) handleGetElement(w http.ResponseWriter, r *http.Request) {
	numid, ok := parseNumid(r)
	if !ok {
		writeBadRequest(w, "invalid numid")
		return
	}

	info, err := s.gateway.Describe(numid)
	if err != nil {
		writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleLookupElement resolves a textual element identity to its descriptor.
func (s *Server) handleLookupElement(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeBadRequest(w, "id query parameter is required")
		return
	}
	if len(id) > maxQueryParamLen {
		writeBadRequest(w, "id exceeds maximum length")
		return
	}

	info, err := s.gateway.Lookup(id)
	if err != nil {
		writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleGetValue returns the current value of one element.
func (s *Server) handleGetValue(w http.ResponseWriter, r *http.Request) {
	numid, ok := parseNumid(r)
	if !ok {
		writeBadRequest(w, "invalid numid")
		return
	}

	value, err := s.gateway.ReadValue(numid)
	if err != nil {
		writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newValueResponse(value))
}

// handleSetValue writes an element value and returns the settled state.
func (s *Server) handleSetValue(w http.ResponseWriter, r *http.Request) {
	numid, ok := parseNumid(r)
	if !ok {
		writeBadRequest(w, "invalid numid")
		return
	}

	var req setValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Values) == 0 && req.Bytes == "" {
		writeBadRequest(w, "values or bytes is required")
		return
	}

	write := gateway.WriteRequest{
		Numid:  numid,
		Values: req.Values,
		Source: history.SourceAPI,
	}
	if req.Bytes != "" {
		data, err := hex.DecodeString(req.Bytes)
		if err != nil {
			writeBadRequest(w, "bytes must be hex encoded")
			return
		}
		write.Bytes = data
	}

	settled, changed, err := s.gateway.WriteValue(write)
	if err != nil {
		writeProviderError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"changed": changed,
		"value":   newValueResponse(settled),
	})
}

// handleLockElement acquires the element lock for the daemon's handle.
func (s *Server) handleLockElement(w http.ResponseWriter, r *http.Request) {
	numid, ok := parseNumid(r)
	if !ok {
		writeBadRequest(w, "invalid numid")
		return
	}

	if err := s.gateway.Lock(numid); err != nil {
		writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"numid":  numid,
		"status": "locked",
	})
}

// handleUnlockElement releases the element lock.
func (s *Server) handleUnlockElement(w http.ResponseWriter, r *http.Request) {
	numid, ok := parseNumid(r)
	if !ok {
		writeBadRequest(w, "invalid numid")
		return
	}

	if err := s.gateway.Unlock(numid); err != nil {
		writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"numid":  numid,
		"status": "unlocked",
	})
}

// handleGetTLV returns the element's TLV blob, hex encoded.
func (s *Server) handleGetTLV(w http.ResponseWriter, r *http.Request) {
	numid, ok := parseNumid(r)
	if !ok {
		writeBadRequest(w, "invalid numid")
		return
	}

	blob, err := s.gateway.TLVRead(numid)
	if err != nil {
		writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"numid": numid,
		"tlv":   hex.EncodeToString(blob),
	})
}

// handleSetTLV replaces the element's TLV blob.
func (s *Server) handleSetTLV(w http.ResponseWriter, r *http.Request) {
	numid, ok := parseNumid(r)
	if !ok {
		writeBadRequest(w, "invalid numid")
		return
	}

	data, ok := decodeTLVBody(w, r)
	if !ok {
		return
	}

	if err := s.gateway.TLVWrite(numid, data, history.SourceAPI); err != nil {
		writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"numid":  numid,
		"status": "written",
	})
}

// handleTLVCommand issues a TLV command payload.
func (s *Server) handleTLVCommand(w http.ResponseWriter, r *http.Request) {
	numid, ok := parseNumid(r)
	if !ok {
		writeBadRequest(w, "invalid numid")
		return
	}

	data, ok := decodeTLVBody(w, r)
	if !ok {
		return
	}

	if err := s.gateway.TLVCommand(numid, data, history.SourceAPI); err != nil {
		writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"numid":  numid,
		"status": "issued",
	})
}

// decodeTLVBody parses and hex-decodes a TLV request body, writing the
// error response itself on failure.
func decodeTLVBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	var req tlvRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return nil, false
	}
	if req.TLV == "" {
		writeBadRequest(w, "tlv is required")
		return nil, false
	}
	data, err := hex.DecodeString(req.TLV)
	if err != nil {
		writeBadRequest(w, "tlv must be hex encoded")
		return nil, false
	}
	return data, true
}
