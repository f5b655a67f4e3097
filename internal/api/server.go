package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/ctlremap/internal/gateway"
	"github.com/nerrad567/ctlremap/internal/history"
	"github.com/nerrad567/ctlremap/internal/infrastructure/config"
	"github.com/nerrad567/ctlremap/internal/infrastructure/database"
	"github.com/nerrad567/ctlremap/internal/infrastructure/logging"
	"github.com/nerrad567/ctlremap/internal/infrastructure/mqtt"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight
// requests before the listener is torn down anyway.
const gracefulShutdownTimeout = 10 * time.Second

// Deps carries everything the API server needs. Logger and Gateway are
// mandatory; the rest degrade gracefully when absent.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Gateway  *gateway.Gateway
	History  history.Repository // optional; history endpoints 503 without it
	DB       *database.DB       // optional; enriches /metrics
	MQTT     *mqtt.Client       // optional; enriches /metrics
	Hub      *Hub               // if set, the server uses this hub instead of creating its own
	Version  string
}

// Server is the daemon's HTTP face: the REST routes, the middleware
// chain, and the WebSocket hub all hang off it. Construct with New,
// bring up with Start, tear down with Close.
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	gateway     *gateway.Gateway
	history     history.Repository
	db          *database.DB
	mqtt        *mqtt.Client
	version     string
	startTime   time.Time
	server      *http.Server
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New validates deps and builds a Server. Nothing listens until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		gateway:   deps.Gateway,
		history:   deps.History,
		db:        deps.DB,
		mqtt:      deps.MQTT,
		version:   deps.Version,
		startTime: time.Now(),
	}

	// An injected hub means the gateway was wired to broadcast into it
	// before the server existed; don't replace it.
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	}

	if !s.authEnabled() {
		s.logger.Warn("no admin credential configured; mutating API surface is unauthenticated")
	}

	return s, nil
}

// Start builds the router and launches the listener in the background.
// The ctx parent covers the hub goroutine; Close cancels it via the
// derived context even if the parent outlives the server.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go s.listen()

	return nil
}

// listen runs the HTTP listener until shutdown. ErrServerClosed is the
// normal exit and stays out of the log.
func (s *Server) listen() {
	var err error
	if s.cfg.TLS.Enabled {
		s.logger.Info("API server starting with TLS",
			"address", s.server.Addr,
			"cert", s.cfg.TLS.CertFile,
		)
		err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	} else {
		err = s.server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("API server error", "error", err)
	}
}

// Close drains in-flight requests, waiting at most
// gracefulShutdownTimeout, and stops the hub. Safe to call before
// Start.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the listener has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
