package bus

import (
	"context"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/relaynotify/gateway/internal/gwconfig"
)

// Reader is the subset of *kafka.Reader the consume-commit loop depends
// on. *kafka.Reader satisfies this interface structurally; tests supply
// an in-memory fake instead.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewReader builds a *kafka.Reader from the bus configuration, forwarding
// auto-offset-reset, session/heartbeat, and max-poll-records tuning
// unchanged.
func NewReader(cfg gwconfig.BusConfig) *kafka.Reader {
	startOffset := kafka.LastOffset
	if cfg.AutoOffsetReset == "earliest" {
		startOffset = kafka.FirstOffset
	}

	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:           cfg.Bootstrap,
		GroupID:           cfg.GroupID,
		GroupTopics:       cfg.Topics,
		StartOffset:       startOffset,
		MinBytes:          1,
		MaxBytes:          10e6,
		QueueCapacity:     cfg.MaxPollRecords,
		SessionTimeout:    time.Duration(cfg.SessionTimeoutMs) * time.Millisecond,
		HeartbeatInterval: time.Duration(cfg.HeartbeatIntervalMs) * time.Millisecond,
	})
}
