// Package lifecycle coordinates startup readiness and graceful shutdown
// across the consume-commit loop, the bus client, and the provider
// adapters, in the order the dispatch engine requires them closed.
package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Closer is anything the gate must close exactly once during shutdown.
type Closer interface {
	Close() error
}

// Gate exposes the ready/running flags the health endpoint and the
// consume-commit loop coordinate through, and drives the ordered shutdown
// sequence: loop thread → bus client → adapters → health endpoint.
type Gate struct {
	ready   atomic.Bool
	running atomic.Bool

	gracePeriod time.Duration
	log         *zap.SugaredLogger

	shutdownOnce sync.Once
	loopDone     chan struct{}
}

// Config tunes the gate's shutdown grace period.
type Config struct {
	GracePeriod time.Duration
}

// DefaultConfig returns the default 30-second shutdown grace period.
func DefaultConfig() Config {
	return Config{GracePeriod: 30 * time.Second}
}

// New builds a Gate. loopDone must be closed by the consume-commit loop
// when its Run method returns, so Stop can wait on it.
func New(cfg Config, loopDone chan struct{}, log *zap.SugaredLogger) *Gate {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = 30 * time.Second
	}
	return &Gate{gracePeriod: grace, log: log, loopDone: loopDone}
}

// MarkReady flips ready=true. Called immediately before the consumer
// enters its polling loop.
func (g *Gate) MarkReady() { g.ready.Store(true) }

// MarkRunning flips running=true. Called at loop entry.
func (g *Gate) MarkRunning() { g.running.Store(true) }

// Ready reports the current readiness flag.
func (g *Gate) Ready() bool { return g.ready.Load() }

// Running reports whether the consume-commit loop should keep polling.
func (g *Gate) Running() bool { return g.running.Load() }

// Stop runs the shutdown sequence exactly once: flip ready false, flip
// running false (waking the poller), wait up to the grace period for the
// loop to return, then close every adapter-owning resource exactly once
// regardless of whether the grace period expired.
func (g *Gate) Stop(ctx context.Context, closers ...Closer) {
	g.shutdownOnce.Do(func() {
		g.ready.Store(false)
		g.running.Store(false)

		select {
		case <-g.loopDone:
			g.log.Info("lifecycle: consume loop returned cleanly")
		case <-time.After(g.gracePeriod):
			g.log.Warn("lifecycle: grace period expired, abandoning consume loop")
		case <-ctx.Done():
			g.log.Warn("lifecycle: shutdown context cancelled before loop returned")
		}

		for _, c := range closers {
			if c == nil {
				continue
			}
			if err := c.Close(); err != nil {
				g.log.Errorw("lifecycle: error closing resource", "error", err)
			}
		}
	})
}
