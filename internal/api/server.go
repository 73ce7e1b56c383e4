package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/infrastructure/config"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/infrastructure/logging"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/rules"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/twin"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// defaultStreamInterval paces WebSocket state events.
const defaultStreamInterval = 100 * time.Millisecond

// Twin is the part of the virtual twin the API serves.
type Twin interface {
	State() state.AppState
	Stats() twin.Stats
	Rules() []rules.Info
	Session() string
	Enqueue(a state.Action) error
}

// Store is the part of the state store the WebSocket stream watches.
type Store interface {
	Subscribe(slices state.Slices, fn func(state.Change)) func()
}

// HealthChecker is implemented by components reported on /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	WS     config.WebSocketConfig
	Logger *logging.Logger
	Twin   Twin
	Store  Store

	// Metrics serves /metrics when set.
	Metrics http.Handler

	// Checks are reported by /health, keyed by component name.
	Checks map[string]HealthChecker

	// StreamInterval paces WebSocket state events. Zero selects 100ms.
	StreamInterval time.Duration

	Version string
}

// Server is the HTTP API server.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	twin      Twin
	store     Store
	metrics   http.Handler
	checks    map[string]HealthChecker
	version   string
	startTime time.Time

	hub      *Hub
	streamer *streamer
	server   *http.Server
	cancel   context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Twin == nil || deps.Store == nil {
		return nil, fmt.Errorf("twin and store are required")
	}
	if deps.WS.Path == "" {
		deps.WS.Path = "/ws"
	}
	if deps.StreamInterval <= 0 {
		deps.StreamInterval = defaultStreamInterval
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger.Component("api"),
		twin:      deps.Twin,
		store:     deps.Store,
		metrics:   deps.Metrics,
		checks:    deps.Checks,
		version:   deps.Version,
		startTime: time.Now(),
	}
	s.hub = NewHub(deps.WS, s.logger, s.channelSnapshot)
	s.streamer = newStreamer(deps.Store, s.hub, deps.Twin.State, deps.StreamInterval)
	return s, nil
}

// Handler returns the router. Start serves the same handler.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and the state streamer, then launches the
// HTTP listener in a background goroutine. Stop it with Close().
//
// Parameters:
//   - ctx: Parent context for the hub and streamer
//
// Returns:
//   - error: If the server was already started
func (s *Server) Start(ctx context.Context) error {
	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.streamer.run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
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

// HealthCheck verifies the API server is running.
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
