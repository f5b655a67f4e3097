package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/ctlremap/internal/auth"
	"github.com/nerrad567/ctlremap/internal/ctl/memctl"
	"github.com/nerrad567/ctlremap/internal/gateway"
	"github.com/nerrad567/ctlremap/internal/history"
	"github.com/nerrad567/ctlremap/internal/infrastructure/config"
	"github.com/nerrad567/ctlremap/internal/infrastructure/logging"
)

const testJWTSecret = "test-secret-key-at-least-32-characters-long"

// testLogger is quiet below error so test output stays readable.
func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
}

// startedHub returns a running hub that stops at test cleanup.
func startedHub(t *testing.T) *Hub {
	t.Helper()

	hub := NewHub(testWSConfig(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

// newTestServer creates a Server backed by an in-memory control provider and
// an in-memory SQLite history store. Port 0 is fine for tests that only
// exercise the router via httptest; listener tests pass a real port.
func newTestServer(t *testing.T, sec config.SecurityConfig, port int) (*Server, *memctl.Provider) {
	t.Helper()

	provider := memctl.New()
	seedTestElements(t, provider)

	hub := startedHub(t)
	repo := history.NewSQLiteRepository(setupHistoryDB(t))

	gw, err := gateway.New(gateway.Options{
		Provider: provider,
		Hub:      hub,
		History:  repo,
	})
	if err != nil {
		t.Fatalf("gateway.New() error: %v", err)
	}

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: port,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS:       testWSConfig(),
		Security: sec,
		Logger:   testLogger(),
		Gateway:  gw,
		History:  repo,
		Hub:      hub,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return srv, provider
}

// testServer creates a server with auth disabled: no admin credential is
// configured, so the mutating surface is open.
func testServer(t *testing.T) (*Server, *memctl.Provider) {
	t.Helper()
	return newTestServer(t, config.SecurityConfig{
		JWT: config.JWTConfig{
			Secret:          testJWTSecret,
			AccessTokenTTL:  15,
			RefreshTokenTTL: 60,
		},
	}, 0)
}

// testServerWithAuth creates a server guarded by the admin/swordfish credential.
func testServerWithAuth(t *testing.T) (*Server, *memctl.Provider) {
	t.Helper()

	hash, err := auth.HashPassword("swordfish")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}

	return newTestServer(t, config.SecurityConfig{
		JWT: config.JWTConfig{
			Secret:          testJWTSecret,
			AccessTokenTTL:  15,
			RefreshTokenTTL: 60,
		},
		Admin: config.AdminConfig{
			Username:     "admin",
			PasswordHash: hash,
		},
	}, 0)
}

// seedTestElements loads a small mixer-shaped namespace:
//
//	numid 1: Master Playback Volume  INTEGER x2  0..87  [40, 40]
//	numid 2: Master Playback Switch  BOOLEAN x1  [1]
//	numid 3: IEC958 Playback Default BYTES x4 with a TLV blob
func seedTestElements(t *testing.T, p *memctl.Provider) {
	t.Helper()

	specs := []memctl.ElemSpec{
		{
			ID:      "iface=MIXER,name='Master Playback Volume'",
			Type:    "INTEGER",
			Count:   2,
			Min:     0,
			Max:     87,
			Step:    1,
			Initial: []int64{40, 40},
		},
		{
			ID:      "iface=MIXER,name='Master Playback Switch'",
			Type:    "BOOLEAN",
			Initial: []int64{1},
		},
		{
			ID:     "iface=MIXER,name='IEC958 Playback Default'",
			Type:   "BYTES",
			Count:  4,
			Bytes:  "00000000",
			TLV:    "0001000400000064",
			Access: []string{"read", "write", "tlv_read", "tlv_write", "tlv_command"},
		},
	}
	if err := p.Seed(specs); err != nil {
		t.Fatalf("Seed() error: %v", err)
	}
}

// setupHistoryDB creates an in-memory SQLite database with the control_history table.
func setupHistoryDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE control_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			numid INTEGER NOT NULL,
			elem_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			value TEXT,
			source TEXT NOT NULL DEFAULT 'card',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE INDEX idx_control_history_elem ON control_history(elem_id);
		CREATE INDEX idx_control_history_created ON control_history(created_at);
	`

	if _, execErr := db.Exec(schema); execErr != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", execErr)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// doGet runs a GET through the router and decodes the JSON body into out
// when out is non-nil.
func doGet(t *testing.T, router http.Handler, path string, out any) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode GET %s: %v (body: %s)", path, err, w.Body.String())
		}
	}
	return w
}

// ─── Constructor Tests ─────────────────────────────────────────────

func TestNew_RequiresLogger(t *testing.T) {
	_, err := New(Deps{Gateway: &gateway.Gateway{}})
	if err == nil {
		t.Fatal("New() without logger should fail")
	}
}

func TestNew_RequiresGateway(t *testing.T) {
	_, err := New(Deps{Logger: testLogger()})
	if err == nil {
		t.Fatal("New() without gateway should fail")
	}
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	var resp map[string]any
	w := doGet(t, router, "/api/v1/health", &resp)

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	t.Run("generated when absent", func(t *testing.T) {
		w := doGet(t, router, "/api/v1/health", nil)
		if w.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header to be set")
		}
	})

	t.Run("client value preserved", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		req.Header.Set("X-Request-ID", "client-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if got := w.Header().Get("X-Request-ID"); got != "client-123" {
			t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
		}
	})
}

func TestCORS_Preflight(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	if w := doGet(t, router, "/api/v1/nonexistent", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── System Surface Tests ──────────────────────────────────────────

func TestSystemInfo(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	var resp map[string]any
	w := doGet(t, router, "/api/v1/system/info", &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
	if int(resp["elements"].(float64)) != 3 {
		t.Errorf("elements = %v, want 3", resp["elements"])
	}
	if resp["auth_enabled"] != false {
		t.Errorf("auth_enabled = %v, want false", resp["auth_enabled"])
	}
	if resp["history"] != true {
		t.Errorf("history = %v, want true", resp["history"])
	}
	if resp["mqtt"] != false {
		t.Errorf("mqtt = %v, want false", resp["mqtt"])
	}
}

func TestMetrics(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	var metrics SystemMetrics
	w := doGet(t, router, "/api/v1/metrics", &metrics)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	if metrics.Version != "test" {
		t.Errorf("version = %q, want test", metrics.Version)
	}
	if metrics.Runtime.Goroutines <= 0 {
		t.Errorf("goroutines = %d, want > 0", metrics.Runtime.Goroutines)
	}
	if metrics.Gateway.Elements != 3 {
		t.Errorf("gateway elements = %d, want 3", metrics.Gateway.Elements)
	}
	if metrics.MQTT.Connected {
		t.Error("mqtt connected = true without a client")
	}
}

// ─── WebSocket Hub Tests ───────────────────────────────────────────

// mockWSClient builds a registered client without a network connection,
// subscribed to the given channels.
func mockWSClient(hub *Hub, channels ...string) *WSClient {
	subs := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		subs[ch] = struct{}{}
	}
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: subs,
	}
	hub.Register(client)
	return client
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := startedHub(t)
	client := mockWSClient(hub, gateway.ChannelValueChanged)

	hub.Broadcast(gateway.ChannelValueChanged, map[string]any{"numid": 1, "values": []int64{30, 30}})

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.Type != WSTypeEvent {
			t.Errorf("type = %q, want %q", wsMsg.Type, WSTypeEvent)
		}
		if wsMsg.EventType != gateway.ChannelValueChanged {
			t.Errorf("event_type = %q, want %q", wsMsg.EventType, gateway.ChannelValueChanged)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := startedHub(t)

	// Subscribed to TLV changes only; value broadcasts must pass it by.
	client := mockWSClient(hub, gateway.ChannelTLVChanged)

	hub.Broadcast(gateway.ChannelValueChanged, map[string]any{"numid": 1})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := startedHub(t)

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := mockWSClient(hub)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

// ─── WebSocket Endpoint Tests ──────────────────────────────────────

// listeningServer starts a server on a real port and blocks until its
// health endpoint answers.
func listeningServer(t *testing.T, port int, withAuth bool) (*Server, string) {
	t.Helper()

	sec := config.SecurityConfig{
		JWT: config.JWTConfig{
			Secret:          testJWTSecret,
			AccessTokenTTL:  15,
			RefreshTokenTTL: 60,
		},
	}
	if withAuth {
		hash, err := auth.HashPassword("swordfish")
		if err != nil {
			t.Fatalf("HashPassword() error: %v", err)
		}
		sec.Admin = config.AdminConfig{Username: "admin", PasswordHash: hash}
	}

	srv, _ := newTestServer(t, sec, port)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	t.Cleanup(func() { srv.Close() })

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	waitReady(t, addr)
	return srv, addr
}

// waitReady polls the health endpoint until the listener answers.
func waitReady(t *testing.T, addr string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get("http://" + addr + "/api/v1/health")
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("server at %s never became ready", addr)
}

// dialWS opens a WebSocket connection to the server, closed at cleanup.
func dialWS(t *testing.T, addr, token string) *websocket.Conn {
	t.Helper()

	wsURL := "ws://" + addr + "/api/v1/ws"
	if token != "" {
		wsURL += "?token=" + token
	}
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

// wsRoundTrip writes a frame and returns the next frame the server
// sends back.
func wsRoundTrip(t *testing.T, ws *websocket.Conn, msg WSMessage) WSMessage {
	t.Helper()

	if err := ws.WriteJSON(msg); err != nil {
		t.Fatalf("write %s frame: %v", msg.Type, err)
	}
	return readWS(t, ws)
}

func readWS(t *testing.T, ws *websocket.Conn) WSMessage {
	t.Helper()

	//nolint:errcheck // Deadline failure surfaces through ReadJSON
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return resp
}

func TestWebSocket_Subscribe(t *testing.T) {
	srv, addr := listeningServer(t, 19180, false)
	ws := dialWS(t, addr, "")

	resp := wsRoundTrip(t, ws, WSMessage{
		Type: WSTypeSubscribe,
		ID:   "sub-1",
		Payload: WSSubscribePayload{
			Channels: []string{gateway.ChannelValueChanged},
		},
	})

	if resp.Type != WSTypeResponse {
		t.Errorf("response type = %s, want %s", resp.Type, WSTypeResponse)
	}
	if resp.ID != "sub-1" {
		t.Errorf("response ID = %s, want sub-1", resp.ID)
	}
	if srv.hub.ClientCount() != 1 {
		t.Errorf("hub client count = %d, want 1", srv.hub.ClientCount())
	}
}

func TestWebSocket_Ping(t *testing.T) {
	_, addr := listeningServer(t, 19181, false)
	ws := dialWS(t, addr, "")

	resp := wsRoundTrip(t, ws, WSMessage{Type: WSTypePing, ID: "ping-1"})

	if resp.Type != WSTypePong {
		t.Errorf("response type = %s, want pong", resp.Type)
	}
	if resp.ID != "ping-1" {
		t.Errorf("response ID = %s, want ping-1", resp.ID)
	}
}

func TestWebSocket_BadFrames(t *testing.T) {
	_, addr := listeningServer(t, 19182, false)

	t.Run("not json", func(t *testing.T) {
		ws := dialWS(t, addr, "")
		if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
			t.Fatalf("write invalid message: %v", err)
		}
		if resp := readWS(t, ws); resp.Type != WSTypeError {
			t.Errorf("response type = %s, want error", resp.Type)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		ws := dialWS(t, addr, "")
		resp := wsRoundTrip(t, ws, WSMessage{Type: "unknown_type", ID: "test-1"})
		if resp.Type != WSTypeError {
			t.Errorf("response type = %s, want error", resp.Type)
		}
	})
}

func TestWebSocket_Broadcast(t *testing.T) {
	srv, addr := listeningServer(t, 19184, false)
	ws := dialWS(t, addr, "")

	wsRoundTrip(t, ws, WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{gateway.ChannelValueChanged}},
	})

	srv.hub.Broadcast(gateway.ChannelValueChanged, map[string]any{"numid": 1})

	resp := readWS(t, ws)
	if resp.Type != WSTypeEvent {
		t.Errorf("broadcast type = %s, want event", resp.Type)
	}
	if resp.EventType != gateway.ChannelValueChanged {
		t.Errorf("broadcast event_type = %s, want %s", resp.EventType, gateway.ChannelValueChanged)
	}
}

func TestWebSocket_RequiresToken(t *testing.T) {
	_, addr := listeningServer(t, 19185, true)

	// No token: upgrade refused.
	_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/v1/ws", nil)
	if err == nil {
		t.Fatal("expected error connecting without token")
	}
	if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	// Garbage token: upgrade refused.
	_, resp, err = websocket.DefaultDialer.Dial("ws://"+addr+"/api/v1/ws?token=not-a-token", nil)
	if err == nil {
		t.Fatal("expected error connecting with invalid token")
	}
	if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	// Real token from login: upgrade succeeds.
	loginResp, err := http.Post(
		"http://"+addr+"/api/v1/auth/login",
		"application/json",
		strings.NewReader(`{"username":"admin","password":"swordfish"}`),
	)
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	defer loginResp.Body.Close()

	var tokens tokenResponse
	if err := json.NewDecoder(loginResp.Body).Decode(&tokens); err != nil {
		t.Fatalf("decode login response: %v", err)
	}

	dialWS(t, addr, tokens.AccessToken)
}

// ─── Server Lifecycle Tests ────────────────────────────────────────

func TestServer_StartAndClose(t *testing.T) {
	port := 19186
	srv, _ := newTestServer(t, config.SecurityConfig{
		JWT: config.JWTConfig{Secret: testJWTSecret, AccessTokenTTL: 15},
	}, port)

	ctx, cancel := context.WithCancel(context.Background())

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	waitReady(t, addr)

	resp, err := http.Get("http://" + addr + "/api/v1/health")
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("health check status = %d, want 200", resp.StatusCode)
	}

	cancel()
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}

	// The listener must be gone once Close returns.
	time.Sleep(100 * time.Millisecond)
	_, err = http.Get("http://" + addr + "/api/v1/health")
	if err == nil {
		t.Error("server still responding after Close()")
	}
}

func TestServer_HealthCheck(t *testing.T) {
	srv, _ := testServer(t)

	// Not started: the health check reports failure.
	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() on unstarted server should fail")
	}
}
