// Package api provides the local HTTP surface of the adapter.
//
// It serves two audiences: local tooling reading device state and sending
// actions, and the phone device itself delivering webhook events. The
// server binds to loopback by default and carries no authentication; it is
// not meant to face a network.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Tsury/ha-tsuryphone/internal/coordinator"
	"github.com/Tsury/ha-tsuryphone/internal/infrastructure/config"
	"github.com/Tsury/ha-tsuryphone/internal/infrastructure/logging"
	"github.com/Tsury/ha-tsuryphone/internal/phone"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Coordinator is the subset of the coordinator the API needs.
type Coordinator interface {
	CurrentState() phone.Snapshot
	Health() coordinator.Health
	RequestAction(ctx context.Context, action string, params map[string]any) (coordinator.PendingAction, error)
	RefreshSection(ctx context.Context, name string) error
	TriggerFastRefresh()
}

// EventSink receives device webhook events for forwarding, typically the
// MQTT bridge. Optional; events still trigger refreshes without one.
type EventSink interface {
	PublishEvent(event string, payload map[string]any) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	Logger      *logging.Logger
	Coordinator Coordinator
	Events      EventSink // optional
	Version     string
}

// Server is the local HTTP server.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	coord   Coordinator
	events  EventSink
	version string
	server  *http.Server
}

// New creates an API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		coord:   deps.Coordinator,
		events:  deps.Events,
		version: deps.Version,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server. It waits up to 10 seconds
// for in-flight requests to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
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
