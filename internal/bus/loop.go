// Package bus runs the consume-commit loop: poll a batch of records from
// the message bus, process each one through resolve-and-dispatch, then
// commit the whole batch only after every record in it has been handled.
// This is what makes delivery at-least-once rather than at-most-once —
// a crash mid-batch replays the batch from the last committed offset.
package bus

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/relaynotify/gateway/internal/deadletter"
	"github.com/relaynotify/gateway/internal/delivery"
	"github.com/relaynotify/gateway/internal/health"
	"github.com/relaynotify/gateway/internal/notifyevent"
	"github.com/relaynotify/gateway/internal/profile"
)

// Dispatcher is the subset of *dispatch.Dispatcher the loop depends on.
type Dispatcher interface {
	Dispatch(ctx context.Context, event notifyevent.Event, prof notifyevent.Profile) []delivery.Result
}

// Gate is the subset of *lifecycle.Gate the loop drives.
type Gate interface {
	MarkReady()
	MarkRunning()
	Running() bool
}

// Config tunes the poll/commit cadence.
type Config struct {
	PollTimeoutMs  int
	MaxPollRecords int
	OnExhausted    string
}

// Loop owns the single consumer goroutine that polls, processes, and
// commits. Nothing else writes to reader or to counters; the health
// endpoint only ever reads counters through its atomic fields.
type Loop struct {
	reader     Reader
	resolver   profile.Resolver
	dispatcher Dispatcher
	dlq        deadletter.Publisher
	gate       Gate
	counters   *health.Counters
	cfg        Config
	log        *zap.SugaredLogger
	done       chan struct{}
}

// New builds a Loop. done must be the same channel handed to the
// lifecycle gate, so Stop can wait on the loop's exit.
func New(reader Reader, resolver profile.Resolver, dispatcher Dispatcher, dlq deadletter.Publisher, gate Gate, counters *health.Counters, cfg Config, log *zap.SugaredLogger, done chan struct{}) *Loop {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.MaxPollRecords <= 0 {
		cfg.MaxPollRecords = 500
	}
	if cfg.PollTimeoutMs <= 0 {
		cfg.PollTimeoutMs = 500
	}
	return &Loop{
		reader:     reader,
		resolver:   resolver,
		dispatcher: dispatcher,
		dlq:        dlq,
		gate:       gate,
		counters:   counters,
		cfg:        cfg,
		log:        log,
		done:       done,
	}
}

// Run marks the gate ready and running, then polls and processes batches
// until Running() turns false or the bus client returns a fatal error.
// It closes done on every return path, so Stop never blocks forever.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)

	l.gate.MarkReady()
	l.gate.MarkRunning()
	l.log.Info("bus: consume loop started")

	for l.gate.Running() {
		batch, err := l.pollBatch(ctx)
		if err != nil {
			l.log.Errorw("bus: fatal poll error, stopping consume loop", "error", err)
			return
		}
		if len(batch) == 0 {
			continue
		}

		for _, msg := range batch {
			l.processRecord(ctx, msg)
		}

		if err := l.reader.CommitMessages(ctx, batch...); err != nil {
			l.log.Errorw("bus: commit failed, batch will be redelivered", "error", err, "batch_size", len(batch))
		}
	}

	l.log.Infow("bus: consume loop stopped",
		"received", l.counters.Received.Load(),
		"delivered", l.counters.Delivered.Load(),
		"skipped", l.counters.Skipped.Load(),
		"failed", l.counters.Failed.Load(),
	)
}

// pollBatch collects up to MaxPollRecords messages, bounded by
// PollTimeoutMs. A timeout with zero or partial records collected is not
// an error — it's the bounded wait that lets Running() be rechecked, the
// loop's wakeup mechanism on shutdown.
func (l *Loop) pollBatch(ctx context.Context) ([]kafka.Message, error) {
	timeout := time.Duration(l.cfg.PollTimeoutMs) * time.Millisecond
	batchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	batch := make([]kafka.Message, 0, l.cfg.MaxPollRecords)
	for len(batch) < l.cfg.MaxPollRecords {
		msg, err := l.reader.FetchMessage(batchCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				break
			}
			if errors.Is(err, io.EOF) {
				return batch, nil
			}
			return batch, err
		}
		batch = append(batch, msg)
	}
	return batch, nil
}

// processRecord runs one record through decode, resolve, and dispatch,
// isolating any failure (including a recovered panic) to this record —
// per the rule that no single malformed or unlucky record can halt the
// consume-commit loop or sour the rest of the batch.
func (l *Loop) processRecord(ctx context.Context, msg kafka.Message) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorw("bus: panic while processing record, record skipped",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "recovered", r)
			l.counters.Failed.Add(1)
		}
	}()

	l.counters.Received.Add(1)

	event, err := notifyevent.Decode(msg.Value)
	if err != nil {
		l.log.Errorw("bus: decode failed, record skipped",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
		l.counters.Failed.Add(1)
		return
	}

	correlationID := uuid.NewString()

	prof, ok := l.resolver.Resolve(ctx, event.AccountID)
	if !ok {
		l.log.Warnw("bus: profile not found, record skipped",
			"correlation_id", correlationID, "notification_id", event.NotificationID, "account_id", event.AccountID)
		l.counters.Skipped.Add(1)
		return
	}

	results := l.dispatcher.Dispatch(ctx, event, prof)

	anySuccess := false
	for _, r := range results {
		l.log.Infow("bus: channel result",
			"correlation_id", correlationID,
			"notification_id", event.NotificationID,
			"channel", r.Channel,
			"provider", r.Provider,
			"status", r.Status,
		)
		if r.Status == delivery.Success {
			anySuccess = true
		}
	}

	if anySuccess {
		l.counters.Delivered.Add(1)
		return
	}

	l.counters.Failed.Add(1)
	l.log.Errorw("bus: record exhausted all delivery attempts",
		"correlation_id", correlationID,
		"notification_id", event.NotificationID,
		"notification_type", event.NotificationType,
		"account_id", event.AccountID)

	if l.cfg.OnExhausted == "kafka" {
		if err := l.dlq.Publish(ctx, event); err != nil {
			l.log.Errorw("bus: dead-letter publish failed, record not reprocessed", "correlation_id", correlationID, "error", err)
		}
	}
}
