package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// loginForTokens logs in as the test admin and returns the token pair.
func loginForTokens(t *testing.T, router http.Handler) tokenResponse {
	t.Helper()

	body := `{"username": "admin", "password": "swordfish"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var tokens tokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &tokens); err != nil {
		t.Fatalf("unmarshal tokens: %v", err)
	}
	return tokens
}

// ─── Login Tests ───────────────────────────────────────────────────

func TestLogin(t *testing.T) {
	srv, _ := testServerWithAuth(t)
	router := srv.buildRouter()

	tokens := loginForTokens(t, router)

	if tokens.AccessToken == "" {
		t.Error("access_token is empty")
	}
	if tokens.RefreshToken == "" {
		t.Error("refresh_token is empty")
	}
	if tokens.TokenType != "Bearer" {
		t.Errorf("token_type = %q, want Bearer", tokens.TokenType)
	}
	if tokens.ExpiresIn <= 0 {
		t.Errorf("expires_in = %d, want > 0", tokens.ExpiresIn)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	srv, _ := testServerWithAuth(t)
	router := srv.buildRouter()

	for _, body := range []string{
		`{"username": "admin", "password": "wrong"}`,
		`{"username": "nobody", "password": "swordfish"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want %d", body, w.Code, http.StatusUnauthorized)
		}
	}
}

func TestLogin_MalformedBody(t *testing.T) {
	srv, _ := testServerWithAuth(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestLogin_NotConfigured(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	body := `{"username": "admin", "password": "swordfish"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotImplemented)
	}
}

// ─── Refresh Tests ─────────────────────────────────────────────────

func TestRefresh(t *testing.T) {
	srv, _ := testServerWithAuth(t)
	router := srv.buildRouter()

	tokens := loginForTokens(t, router)

	body := `{"refresh_token": "` + tokens.RefreshToken + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var fresh tokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &fresh); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if fresh.AccessToken == "" || fresh.RefreshToken == "" {
		t.Error("refresh returned an incomplete token pair")
	}

	// The fresh access token authenticates a guarded request
	req = httptest.NewRequest(http.MethodPut, "/api/v1/elements/2/value",
		strings.NewReader(`{"values": [0]}`))
	req.Header.Set("Authorization", "Bearer "+fresh.AccessToken)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("write with refreshed token status = %d, want %d; body: %s",
			w.Code, http.StatusOK, w.Body.String())
	}
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	srv, _ := testServerWithAuth(t)
	router := srv.buildRouter()

	tokens := loginForTokens(t, router)

	// An access token is not acceptable as a refresh token
	body := `{"refresh_token": "` + tokens.AccessToken + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRefresh_MissingToken(t *testing.T) {
	srv, _ := testServerWithAuth(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestRefresh_GarbageToken(t *testing.T) {
	srv, _ := testServerWithAuth(t)
	router := srv.buildRouter()

	body := `{"refresh_token": "not.a.jwt"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// ─── Identity Tests ────────────────────────────────────────────────

func TestAuthMe(t *testing.T) {
	srv, _ := testServerWithAuth(t)
	router := srv.buildRouter()

	tokens := loginForTokens(t, router)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["username"] != "admin" {
		t.Errorf("username = %v, want admin", resp["username"])
	}
	if resp["session_id"] == "" {
		t.Error("session_id is empty")
	}
}

func TestAuthMe_RequiresToken(t *testing.T) {
	srv, _ := testServerWithAuth(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthMe_RejectsRefreshToken(t *testing.T) {
	srv, _ := testServerWithAuth(t)
	router := srv.buildRouter()

	tokens := loginForTokens(t, router)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.RefreshToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
