package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nerrad567/ctlremap/internal/auth"
)

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// tokenResponse is the response body for login and refresh.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// refreshRequest is the request body for POST /auth/refresh.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// handleLogin verifies the configured admin credential and returns a JWT
// token pair.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.authEnabled() {
		writeError(w, http.StatusNotImplemented, ErrCodeBadRequest, "authentication is not configured")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	err := auth.VerifyCredentials(req.Username, req.Password,
		s.secCfg.Admin.Username, s.secCfg.Admin.PasswordHash)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeUnauthorized(w, "invalid credentials")
			return
		}
		s.logger.Error("credential verification failed", "error", err)
		writeInternalError(w, "credential verification failed")
		return
	}

	s.issueTokens(w, req.Username)
}

// handleRefresh exchanges a valid refresh token for a new token pair.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.authEnabled() {
		writeError(w, http.StatusNotImplemented, ErrCodeBadRequest, "authentication is not configured")
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.RefreshToken == "" {
		writeBadRequest(w, "refresh_token is required")
		return
	}

	claims, err := auth.ParseToken(req.RefreshToken, s.secCfg.JWT.Secret)
	if err != nil {
		writeUnauthorized(w, "invalid or expired refresh token")
		return
	}
	if claims.TokenType != auth.TokenTypeRefresh {
		writeUnauthorized(w, "token is not a refresh token")
		return
	}

	s.issueTokens(w, claims.Subject)
}

// handleAuthMe reports the identity behind the presented access token.
func (s *Server) handleAuthMe(w http.ResponseWriter, r *http.Request) {
	if !s.authEnabled() {
		writeError(w, http.StatusNotImplemented, ErrCodeBadRequest, "authentication is not configured")
		return
	}

	claims, ok := r.Context().Value(ctxKeyClaims).(*auth.Claims)
	if !ok {
		writeUnauthorized(w, "no token presented")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"username":   claims.Subject,
		"role":       claims.Role,
		"session_id": claims.SessionID,
		"expires_at": claims.ExpiresAt.Time.UTC().Format(time.RFC3339),
	})
}

// issueTokens generates and writes a fresh token pair for a username.
func (s *Server) issueTokens(w http.ResponseWriter, username string) {
	pair, err := auth.GenerateTokenPair(username, s.secCfg.JWT.Secret,
		s.secCfg.JWT.AccessTokenTTL, s.secCfg.JWT.RefreshTokenTTL)
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		writeInternalError(w, "failed to generate tokens")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    pair.ExpiresIn,
	})
}
