// Package retry wraps a single provider attempt into a bounded sequence
// of attempts with exponential backoff and status-sensitive non-retry
// rules.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/relaynotify/gateway/internal/delivery"
)

// Config is the retry executor's tuning surface, sourced from
// retry.maxAttempts / retry.initialDelayMs / retry.backoffFactor /
// retry.maxDelayMs.
type Config struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
}

// Validate rejects a config that cannot produce a sane delay sequence.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("retry: maxAttempts must be >= 1, got %d", c.MaxAttempts)
	}
	if c.InitialDelay < 0 {
		return fmt.Errorf("retry: initialDelayMs must be >= 0")
	}
	if c.BackoffFactor < 1.0 {
		return fmt.Errorf("retry: backoffFactor must be >= 1.0, got %v", c.BackoffFactor)
	}
	if c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("retry: maxDelayMs must be >= initialDelayMs")
	}
	return nil
}

// DefaultConfig is the standard production retry tuning: three attempts,
// one second initial delay, doubling up to a 30 second cap.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		InitialDelay:  1 * time.Second,
		BackoffFactor: 2.0,
		MaxDelay:      30 * time.Second,
	}
}

// Executor turns an adapter call into a bounded sequence of attempts.
type Executor struct {
	cfg Config
	log *zap.SugaredLogger
}

// New builds an Executor. log may be nil in tests that don't care about
// log output; a nop logger is substituted.
func New(cfg Config, log *zap.SugaredLogger) *Executor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Executor{cfg: cfg, log: log}
}

// specDelay implements backoff.BackOff with the dispatch engine's delay
// formula: an exponential base plus a uniform jitter re-sampled per
// attempt, capped at MaxDelay. It exists because cenkalti/backoff's own
// ExponentialBackOff applies multiplicative randomization, not additive
// jitter bounded by the initial delay.
type specDelay struct {
	attempt int
	cfg     Config
}

func (d *specDelay) NextBackOff() time.Duration {
	d.attempt++
	base := float64(d.cfg.InitialDelay) * math.Pow(d.cfg.BackoffFactor, float64(d.attempt-1))
	jitter := rand.Float64() * float64(d.cfg.InitialDelay) //nolint:gosec // timing jitter, not security sensitive
	delay := time.Duration(base + jitter)
	if delay > d.cfg.MaxDelay {
		delay = d.cfg.MaxDelay
	}
	return delay
}

func (d *specDelay) Reset() { d.attempt = 0 }

// Execute invokes op up to cfg.MaxAttempts times. SUCCESS and SKIPPED are
// final on first occurrence; FAILURE is retried with backoff until
// attempts are exhausted. A panic inside op is recovered and converted
// into a FAILURE result instead of propagating. provider/channel label
// the synthesized failure result when op panics, and description is used
// only for log lines.
func (e *Executor) Execute(ctx context.Context, provider, channel, description string, op func() delivery.Result) delivery.Result {
	delayer := backoff.WithContext(&specDelay{cfg: e.cfg}, ctx)

	var last delivery.Result
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		result := e.invoke(provider, channel, op)
		last = result

		switch result.Status {
		case delivery.Success:
			return result
		case delivery.Skipped:
			e.log.Debugw("retry: skipped outcome, not retrying", "description", description, "attempt", attempt)
			return result
		case delivery.Failure:
			e.log.Warnw("retry: attempt failed", "description", description, "attempt", attempt, "max_attempts", e.cfg.MaxAttempts, "error", result.ErrorMessage)
			if attempt == e.cfg.MaxAttempts {
				return result
			}
			wait := delayer.NextBackOff()
			if wait == backoff.Stop {
				return result
			}
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				e.log.Infow("retry: cancelled during inter-attempt sleep", "description", description, "attempt", attempt)
				return result
			}
		}
	}
	return last
}

func (e *Executor) invoke(provider, channel string, op func() delivery.Result) (result delivery.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = delivery.NewFailure(provider, channel, fmt.Sprintf("Exception: %v", r), 0)
		}
	}()
	return op()
}
