package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-hub/internal/integrations/nanoleaf"
	"github.com/nerrad567/gray-logic-hub/internal/ratelimit"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// DeviceService is the orchestrator surface the API and the WebSocket hub use.
// Implemented by *orchestrator.Orchestrator.
type DeviceService interface {
	GetAllDevices(ctx context.Context) []device.EnrichedDevice
	GetDevice(ctx context.Context, id string) (device.EnrichedDevice, error)
	TriggerImmediateRefresh(id string)
	RemoveDevice(id string) bool
	RateLimitStats() ratelimit.Stats
	ClientConnected()
	ClientDisconnected()
	ClientCount() int
	IsPolling() bool
}

// NanoleafPairer obtains an auth token from a controller in pairing mode.
// Implemented by *nanoleaf.Client.
type NanoleafPairer interface {
	Pair(ctx context.Context, host string, port int, name string) (nanoleaf.Pairing, error)
}

// NanoleafPairings stores paired controllers.
// Implemented by *nanoleaf.SQLitePairingStore.
type NanoleafPairings interface {
	SavePairing(ctx context.Context, p nanoleaf.Pairing) error
	ListPairings(ctx context.Context) ([]nanoleaf.Pairing, error)
	DeletePairing(ctx context.Context, deviceID string) error
}

// HealthChecker is an optional dependency reported by GET /health.
// Implemented by *mqtt.Client and *influxdb.Client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Devices DeviceService

	// Nanoleaf pairing endpoints are mounted only when both are set.
	Pairer   NanoleafPairer
	Pairings NanoleafPairings

	// HealthChecks are reported by name on GET /health. Optional.
	HealthChecks map[string]HealthChecker

	// Hub, if set, is used instead of creating one. Needed when the
	// orchestrator's change callback is wired before the server starts.
	Hub *Hub

	SiteID  string
	Version string
}

// Server is the HTTP API server for the hub.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg          config.APIConfig
	wsCfg        config.WebSocketConfig
	logger       *logging.Logger
	devices      DeviceService
	pairer       NanoleafPairer
	pairings     NanoleafPairings
	healthChecks map[string]HealthChecker
	siteID       string
	version      string
	server       *http.Server
	hub          *Hub
	cancel       context.CancelFunc // stops the hub on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, device service)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device service is required")
	}

	s := &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		logger:       deps.Logger,
		devices:      deps.Devices,
		pairer:       deps.Pairer,
		pairings:     deps.Pairings,
		healthChecks: deps.HealthChecks,
		siteID:       deps.SiteID,
		version:      deps.Version,
		hub:          deps.Hub,
	}
	if s.hub == nil {
		s.hub = NewHub(deps.WS, deps.Logger, deps.Devices)
	}
	return s, nil
}

// Hub returns the WebSocket hub. Its BroadcastDevices method is the
// orchestrator change callback.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and launches the HTTP listener in a
// background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for the hub (not used for listener lifetime)
//
// Returns:
//   - error: Currently always nil; listener errors are logged
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server listening", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// WebSocket clients are disconnected first, which releases their polling
// references. In-flight requests then get up to 10 seconds to complete.
//
// Returns:
//   - error: If shutdown encounters an error
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

// HealthCheck verifies the API server has been started.
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
