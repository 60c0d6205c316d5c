// Package dispatch computes the required channels for a notification event
// and walks each channel's ordered adapter list through the retry executor.
package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/relaynotify/gateway/internal/delivery"
	"github.com/relaynotify/gateway/internal/notifyevent"
	"github.com/relaynotify/gateway/internal/retry"
)

// Adapter is the boundary contract every provider implementation satisfies.
// ProviderName is a stable identifier used in logs and results; Send must
// always return a Result and must never panic across the adapter/dispatcher
// boundary (a panic is tolerated — the retry executor recovers it — but
// well-behaved adapters report failures as FAILURE results instead).
type Adapter interface {
	ProviderName() string
	ChannelType() string
	IsConfigured() bool
	Send(ctx context.Context, event notifyevent.Event, profile notifyevent.Profile) delivery.Result
	Close() error
}

// FilterConfigured keeps only adapters whose IsConfigured() returns true,
// preserving order. Applied once at startup; the dispatcher never
// re-checks configuration per event.
func FilterConfigured(adapters []Adapter) []Adapter {
	out := make([]Adapter, 0, len(adapters))
	for _, a := range adapters {
		if a.IsConfigured() {
			out = append(out, a)
		}
	}
	return out
}

// Config wires the two ordered, already-startup-filtered adapter lists and
// the routing rule into a Dispatcher.
type Config struct {
	EmailAdapters      []Adapter
	SMSAdapters        []Adapter
	ForceBothOnSeverity map[notifyevent.Severity]bool
	Executor           *retry.Executor
	Logger             *zap.SugaredLogger
}

// DefaultForceBothOnSeverity upgrades HIGH and CRITICAL events to both
// channels.
func DefaultForceBothOnSeverity() map[notifyevent.Severity]bool {
	return map[notifyevent.Severity]bool{
		notifyevent.SeverityHigh:     true,
		notifyevent.SeverityCritical: true,
	}
}

// Dispatcher transforms one (event, profile) pair into a list of per-channel
// attempt results.
type Dispatcher struct {
	emailAdapters []Adapter
	smsAdapters   []Adapter
	forceBoth     map[notifyevent.Severity]bool
	executor      *retry.Executor
	log           *zap.SugaredLogger
}

// New builds a Dispatcher from Config.
func New(cfg Config) *Dispatcher {
	forceBoth := cfg.ForceBothOnSeverity
	if forceBoth == nil {
		forceBoth = DefaultForceBothOnSeverity()
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Dispatcher{
		emailAdapters: cfg.EmailAdapters,
		smsAdapters:   cfg.SMSAdapters,
		forceBoth:     forceBoth,
		executor:      cfg.Executor,
		log:           log,
	}
}

// Dispatch computes the required channels and walks each one's adapter
// list. It returns one Result per required channel; an empty slice only
// when neither channel was required.
func (d *Dispatcher) Dispatch(ctx context.Context, event notifyevent.Event, profile notifyevent.Profile) []delivery.Result {
	sendEmail, sendSMS := d.selectChannels(event)

	if !sendEmail && !sendSMS {
		d.log.Warnw("dispatch: no channel required for event",
			"notification_id", event.NotificationID, "account_id", event.AccountID)
		return nil
	}

	results := make([]delivery.Result, 0, 2)
	if sendEmail {
		results = append(results, d.walkChannel(ctx, "EMAIL", d.emailAdapters, event, profile))
	}
	if sendSMS {
		results = append(results, d.walkChannel(ctx, "SMS", d.smsAdapters, event, profile))
	}
	return results
}

func (d *Dispatcher) selectChannels(event notifyevent.Event) (sendEmail, sendSMS bool) {
	forced := event.Severity != nil && d.forceBoth[*event.Severity]

	wantsEmail := event.Channel != nil && (*event.Channel == notifyevent.ChannelEmail || *event.Channel == notifyevent.ChannelBoth)
	wantsSMS := event.Channel != nil && (*event.Channel == notifyevent.ChannelSMS || *event.Channel == notifyevent.ChannelBoth)

	return forced || wantsEmail, forced || wantsSMS
}

// walkChannel performs the ordered provider-fallback walk for one channel.
func (d *Dispatcher) walkChannel(ctx context.Context, channel string, adapters []Adapter, event notifyevent.Event, profile notifyevent.Profile) delivery.Result {
	if len(adapters) == 0 {
		return delivery.NewSkipped("none", channel, fmt.Sprintf("No %s adapters configured", channel))
	}

	var last delivery.Result
	for _, adapter := range adapters {
		desc := fmt.Sprintf("%s/%s notification=%s account=%d", channel, adapter.ProviderName(), event.NotificationID, event.AccountID)
		result := d.executor.Execute(ctx, adapter.ProviderName(), channel, desc, func() delivery.Result {
			return adapter.Send(ctx, event, profile)
		})
		last = result

		d.log.Infow("dispatch: adapter attempt concluded",
			"notification_id", event.NotificationID,
			"channel", channel,
			"provider", adapter.ProviderName(),
			"status", result.Status,
		)

		switch result.Status {
		case delivery.Success, delivery.Skipped:
			return result
		case delivery.Failure:
			continue
		}
	}
	return last
}
