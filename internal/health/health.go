// Package health serves the liveness/readiness HTTP endpoint on a thin
// Echo wrapper.
package health

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// Config holds the health server's listen settings.
type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig is the standard production listen configuration.
func DefaultConfig() Config {
	return Config{
		Port:         "8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// ReadinessProvider is satisfied by the lifecycle gate.
type ReadinessProvider interface {
	Ready() bool
}

// Counters are the single-writer consume-loop statistics, exposed here
// through atomic reads per the concurrency model's rule that any
// cross-thread visibility of these counters must not tear.
type Counters struct {
	Received  atomic.Int64
	Delivered atomic.Int64
	Skipped   atomic.Int64
	Failed    atomic.Int64
}

// Snapshot is the JSON-serializable view of Counters at one instant.
type Snapshot struct {
	Received  int64 `json:"received"`
	Delivered int64 `json:"delivered"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
}

func (c *Counters) snapshot() Snapshot {
	return Snapshot{
		Received:  c.Received.Load(),
		Delivered: c.Delivered.Load(),
		Skipped:   c.Skipped.Load(),
		Failed:    c.Failed.Load(),
	}
}

// Server wraps an Echo instance serving the three health paths.
type Server struct {
	Echo     *echo.Echo
	cfg      Config
	gate     ReadinessProvider
	counters *Counters
}

// New builds a Server and registers its routes.
func New(cfg Config, gate ReadinessProvider, counters *Counters) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout
	e.Server.IdleTimeout = cfg.IdleTimeout

	s := &Server{Echo: e, cfg: cfg, gate: gate, counters: counters}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.Echo.GET("/health", s.handleHealth)
	s.Echo.GET("/health/live", s.handleLive)
	s.Echo.GET("/health/ready", s.handleReady)
}

type statusBody struct {
	Status string    `json:"status"`
	Counts *Snapshot `json:"counts,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	snap := s.counters.snapshot()
	if s.gate.Ready() {
		return c.JSON(http.StatusOK, statusBody{Status: "UP", Counts: &snap})
	}
	return c.JSON(http.StatusServiceUnavailable, statusBody{Status: "DOWN", Counts: &snap})
}

func (s *Server) handleLive(c echo.Context) error {
	return c.JSON(http.StatusOK, statusBody{Status: "ALIVE"})
}

func (s *Server) handleReady(c echo.Context) error {
	if s.gate.Ready() {
		return c.JSON(http.StatusOK, statusBody{Status: "READY"})
	}
	return c.JSON(http.StatusServiceUnavailable, statusBody{Status: "NOT_READY"})
}

// Start begins listening. It blocks until the server is shut down; run it
// in its own goroutine.
func (s *Server) Start() error {
	addr := fmt.Sprintf("0.0.0.0:%s", s.cfg.Port)
	if err := s.Echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. Implements lifecycle.Closer via
// its ctx-less Close wrapper below.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

// Close adapts Shutdown to the lifecycle.Closer interface with a bounded
// internal timeout, since the gate's Closer contract takes no context.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}
