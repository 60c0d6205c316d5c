// Package deadletter publishes exhausted-delivery events to a configured
// dead-letter bus topic and keeps a parallel audit trail on a logging
// backend separate from the main zap stream, so the dead-letter record
// survives even when the primary log pipeline is the thing misbehaving.
package deadletter

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	kafka "github.com/segmentio/kafka-go"

	"github.com/relaynotify/gateway/internal/notifyevent"
)

// Publisher emits an exhausted event's original record to the DLQ.
type Publisher interface {
	Publish(ctx context.Context, event notifyevent.Event) error
	Close() error
}

// PayloadMode selects what KafkaPublisher writes to the DLQ topic.
type PayloadMode string

const (
	// PayloadRaw republishes the original record bytes unchanged,
	// preserving fields this gateway doesn't itself understand.
	PayloadRaw PayloadMode = "raw"
	// PayloadReencoded republishes notifyevent.Event.Encode()'s output
	// instead, for deployments that want the DLQ to carry the gateway's
	// normalized view of the event rather than the producer's original
	// bytes (e.g. when the original record's key/value framing includes
	// envelope bytes a downstream DLQ consumer shouldn't have to parse).
	PayloadReencoded PayloadMode = "reencoded"
)

// messageWriter is the subset of *kafka.Writer Publish needs; tests
// substitute an in-memory fake.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher republishes an exhausted event to the configured DLQ
// topic in the configured PayloadMode, and appends one audit line per
// publish to a zerolog sink independent of the main zap log stream.
type KafkaPublisher struct {
	writer messageWriter
	audit  zerolog.Logger
	mode   PayloadMode
}

// NewKafkaPublisher builds a KafkaPublisher. auditOut defaults to stderr
// when nil. An empty or unrecognized mode defaults to PayloadRaw.
func NewKafkaPublisher(brokers []string, topic string, mode PayloadMode, auditOut io.Writer) *KafkaPublisher {
	if auditOut == nil {
		auditOut = os.Stderr
	}
	if mode != PayloadReencoded {
		mode = PayloadRaw
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		audit: zerolog.New(auditOut).With().Timestamp().Str("sink", "deadletter").Logger(),
		mode:  mode,
	}
}

// Publish writes the event to the DLQ topic in the configured payload
// mode and records an audit line regardless of outcome. A DLQ publish
// failure is surfaced to the caller but never retried — a poison record
// must not loop. A PayloadReencoded event that fails to re-encode falls
// back to the raw bytes rather than dropping the DLQ message.
func (p *KafkaPublisher) Publish(ctx context.Context, event notifyevent.Event) error {
	payload := event.Raw()
	if p.mode == PayloadReencoded {
		if reencoded, encErr := event.Encode(); encErr == nil {
			payload = reencoded
		} else {
			p.audit.Warn().Err(encErr).Str("notification_id", event.NotificationID).
				Msg("dead-letter re-encode failed, falling back to raw bytes")
		}
	}

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(event.AccountID, 10)),
		Value: payload,
	})

	logEvent := p.audit.Info()
	if err != nil {
		logEvent = p.audit.Error().Err(err)
	}
	logEvent.
		Str("notification_id", event.NotificationID).
		Str("notification_type", string(event.NotificationType)).
		Int64("account_id", event.AccountID).
		Msg("dead-letter publish")

	if err != nil {
		return fmt.Errorf("deadletter: publish failed: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying Kafka writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogOnly implements Publisher for the onExhausted=log policy
// (onExhausted=kafka without a dlqTopic is rejected by config validation
// rather than degraded to this). It never publishes anywhere; the
// exhausted-delivery ERROR log line itself is emitted by the consume loop,
// not here.
type LogOnly struct{}

// Publish is a no-op.
func (LogOnly) Publish(context.Context, notifyevent.Event) error { return nil }

// Close is a no-op.
func (LogOnly) Close() error { return nil }
