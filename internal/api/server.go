package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/traffic-relay/internal/history"
	"github.com/nerrad567/traffic-relay/internal/infrastructure/config"
	"github.com/nerrad567/traffic-relay/internal/infrastructure/logging"
	"github.com/nerrad567/traffic-relay/internal/relay"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// RelayView is the read side of the relay used by the handlers.
// *relay.Relay satisfies it.
type RelayView interface {
	Snapshot() relay.Snapshot
	Stats() relay.Stats
}

// HistoryReader reads the transition log. *history.Repository satisfies it.
type HistoryReader interface {
	GetHistory(ctx context.Context, light string, limit int) ([]history.Entry, error)
}

// HealthChecker is implemented by every component reported on /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// DBStatser exposes connection pool statistics.
type DBStatser interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	HTTP      config.HTTPConfig
	WebSocket config.WebSocketConfig
	Logger    *logging.Logger

	// Relay is required.
	Relay RelayView

	// Hub is required; the relay broadcasts through it.
	Hub *Hub

	// Panel serves the UI at "/". Optional.
	Panel http.Handler

	// History is nil when the transition log is disabled.
	History HistoryReader

	// DB feeds database pool metrics. Optional.
	DB DBStatser

	// Checks are run by /api/v1/health, keyed by component name.
	Checks map[string]HealthChecker

	Version string
}

// Server owns the HTTP and WebSocket listeners.
type Server struct {
	cfg     config.HTTPConfig
	wsCfg   config.WebSocketConfig
	logger  *logging.Logger
	relay   RelayView
	hub     *Hub
	panel   http.Handler
	history HistoryReader
	db      DBStatser
	checks  map[string]HealthChecker
	version string

	startTime time.Time

	mu       sync.Mutex
	server   *http.Server
	wsServer *http.Server
	httpAddr net.Addr
	wsAddr   net.Addr
}

// New creates a server. It does not listen until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Relay == nil {
		return nil, fmt.Errorf("relay is required")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("websocket hub is required")
	}

	wsCfg := deps.WebSocket
	if wsCfg.Path == "" {
		wsCfg.Path = "/"
	}

	return &Server{
		cfg:       deps.HTTP,
		wsCfg:     wsCfg,
		logger:    deps.Logger,
		relay:     deps.Relay,
		hub:       deps.Hub,
		panel:     deps.Panel,
		history:   deps.History,
		db:        deps.DB,
		checks:    deps.Checks,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start binds both listeners and serves them in the background. Bind
// errors (port in use) are returned; later serve errors are logged.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	httpLn, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("binding HTTP listener: %w", err)
	}
	wsLn, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.wsCfg.Host, s.wsCfg.Port))
	if err != nil {
		httpLn.Close() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("binding WebSocket listener: %w", err)
	}

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       seconds(s.cfg.Timeouts.Read),
		ReadHeaderTimeout: seconds(s.cfg.Timeouts.Read),
		WriteTimeout:      seconds(s.cfg.Timeouts.Write),
		IdleTimeout:       seconds(s.cfg.Timeouts.Idle),
	}
	s.wsServer = &http.Server{
		Handler:           s.buildWSRouter(),
		ReadHeaderTimeout: seconds(s.cfg.Timeouts.Read),
	}
	s.httpAddr = httpLn.Addr()
	s.wsAddr = wsLn.Addr()

	s.serve("HTTP", s.server, httpLn)
	s.serve("WebSocket", s.wsServer, wsLn)

	s.logger.Info("servers listening",
		"http", s.httpAddr.String(),
		"websocket", s.wsAddr.String(),
		"ws_path", s.wsCfg.Path,
	)
	return nil
}

func (s *Server) serve(name string, srv *http.Server, ln net.Listener) {
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(name+" server error", "error", err)
		}
	}()
}

// Close gracefully shuts down both listeners and disconnects all
// WebSocket clients. It waits up to 10 seconds for in-flight requests.
func (s *Server) Close() error {
	s.mu.Lock()
	httpSrv, wsSrv := s.server, s.wsServer
	s.server, s.wsServer = nil, nil
	s.mu.Unlock()

	if httpSrv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("servers shutting down")

	// Hijacked WebSocket connections are not tracked by Shutdown.
	s.hub.Close()

	var errs []error
	if err := wsSrv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down WebSocket server: %w", err))
	}
	if err := httpSrv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down HTTP server: %w", err))
	}
	return errors.Join(errs...)
}

// HealthCheck verifies the server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// HTTPAddr returns the bound HTTP address, or nil before Start.
func (s *Server) HTTPAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpAddr
}

// WSAddr returns the bound WebSocket address, or nil before Start.
func (s *Server) WSAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wsAddr
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
