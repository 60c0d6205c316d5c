// Command gateway runs the notification dispatch engine: it consumes
// notification events from the message bus and routes them to the
// configured email and SMS providers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/relaynotify/gateway/internal/bus"
	"github.com/relaynotify/gateway/internal/deadletter"
	"github.com/relaynotify/gateway/internal/dispatch"
	"github.com/relaynotify/gateway/internal/gwconfig"
	"github.com/relaynotify/gateway/internal/health"
	"github.com/relaynotify/gateway/internal/lifecycle"
	"github.com/relaynotify/gateway/internal/logger"
	"github.com/relaynotify/gateway/internal/notifyevent"
	"github.com/relaynotify/gateway/internal/profile"
	"github.com/relaynotify/gateway/internal/providers/email"
	"github.com/relaynotify/gateway/internal/providers/sms"
	"github.com/relaynotify/gateway/internal/retry"
)

func main() {
	configPath := flag.String("config", "", "path to the gateway YAML config file")
	flag.Parse()

	cfg, err := gwconfig.Load(*configPath)
	if err != nil {
		// Config is invalid; there is no logger to route this through yet
		// and nothing useful to start, so fail loudly and exit non-zero.
		fmt.Fprintln(os.Stderr, "gateway: invalid configuration:", err)
		os.Exit(1)
	}

	logFormat := logger.FormatJSON
	if cfg.Logging.Format == "console" {
		logFormat = logger.FormatConsole
	}
	logger.Init(&logger.Config{Level: cfg.Logging.Level, Format: logFormat})
	log := logger.S()
	defer logger.Sync()

	log.Infow("gateway: starting", "bus_topics", cfg.Bus.Topics, "group_id", cfg.Bus.GroupID)

	emailAdapters := dispatch.FilterConfigured(buildEmailAdapters(cfg))
	smsAdapters := dispatch.FilterConfigured(buildSMSAdapters(cfg))
	if len(emailAdapters)+len(smsAdapters) == 0 {
		// Providers were enabled in config but none passed the
		// IsConfigured credential check.
		log.Error("gateway: zero adapters configured after startup filter")
		_ = logger.Sync()
		os.Exit(1)
	}
	log.Infow("gateway: adapters configured", "email", len(emailAdapters), "sms", len(smsAdapters))

	resolver := buildResolver(cfg, log)

	initialDelay, maxDelay := cfg.Retry.Durations()
	executor := retry.New(retry.Config{
		MaxAttempts:   cfg.Retry.MaxAttempts,
		InitialDelay:  initialDelay,
		BackoffFactor: cfg.Retry.BackoffFactor,
		MaxDelay:      maxDelay,
	}, log)

	forceBoth := make(map[notifyevent.Severity]bool)
	for _, s := range cfg.Routing.ForceBothOnSeverity {
		forceBoth[notifyevent.Severity(s)] = true
	}
	dispatcher := dispatch.New(dispatch.Config{
		EmailAdapters:       emailAdapters,
		SMSAdapters:         smsAdapters,
		ForceBothOnSeverity: forceBoth,
		Executor:            executor,
		Logger:              log,
	})

	dlq := buildDLQ(cfg)

	reader := bus.NewReader(cfg.Bus)
	counters := &health.Counters{}
	loopDone := make(chan struct{})

	gate := lifecycle.New(lifecycle.Config{GracePeriod: 30 * time.Second}, loopDone, log)
	healthServer := health.New(health.Config{Port: cfg.Health.Port}, gate, counters)

	loop := bus.New(reader, resolver, dispatcher, dlq, gate, counters, bus.Config{
		PollTimeoutMs:  cfg.Bus.PollTimeoutMs,
		MaxPollRecords: cfg.Bus.MaxPollRecords,
		OnExhausted:    cfg.Retry.OnExhausted,
	}, log, loopDone)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go loop.Run(ctx)

	go func() {
		if err := healthServer.Start(); err != nil {
			log.Errorw("gateway: health server stopped unexpectedly", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("gateway: shutdown signal received, draining consume loop")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 35*time.Second)
	defer cancel()

	// Close order: bus client first, then the adapters, the health
	// endpoint last so probes keep answering DOWN while we drain.
	closers := []lifecycle.Closer{reader, dlq}
	closers = append(closers, adapterClosers(emailAdapters, smsAdapters)...)
	closers = append(closers, resolver, healthServer)
	gate.Stop(shutdownCtx, closers...)

	log.Info("gateway: shutdown complete")
}

func buildEmailAdapters(cfg gwconfig.Config) []dispatch.Adapter {
	adapters := make([]dispatch.Adapter, 0, len(cfg.Channels.Email.Providers))
	for _, p := range cfg.Channels.Email.Providers {
		if !p.Enabled {
			continue
		}
		timeout := time.Duration(p.TimeoutMs) * time.Millisecond
		switch p.Name {
		case "sendgrid":
			adapters = append(adapters, email.NewSendgrid(email.SendgridConfig{
				APIKey:    p.Credentials["apiKey"],
				FromEmail: p.Credentials["fromEmail"],
				FromName:  p.Credentials["fromName"],
				BaseURL:   p.Credentials["baseUrl"],
				Timeout:   timeout,
			}))
		case "smtp-relay":
			port, _ := strconv.Atoi(p.Credentials["port"])
			adapters = append(adapters, email.NewSMTPRelay(email.SMTPConfig{
				Host:        p.Credentials["host"],
				Port:        port,
				Username:    p.Credentials["username"],
				Password:    p.Credentials["password"],
				FromAddress: p.Credentials["fromAddress"],
				UseTLS:      gwconfig.ParseBool(p.Credentials["useTls"]),
				Timeout:     timeout,
			}))
		}
	}
	return adapters
}

func buildSMSAdapters(cfg gwconfig.Config) []dispatch.Adapter {
	adapters := make([]dispatch.Adapter, 0, len(cfg.Channels.SMS.Providers))
	for _, p := range cfg.Channels.SMS.Providers {
		if !p.Enabled {
			continue
		}
		timeout := time.Duration(p.TimeoutMs) * time.Millisecond
		switch p.Name {
		case "twilio":
			adapters = append(adapters, sms.NewTwilio(sms.TwilioConfig{
				AccountSID: p.Credentials["accountSid"],
				AuthToken:  p.Credentials["authToken"],
				FromNumber: p.Credentials["fromNumber"],
				BaseURL:    p.Credentials["baseUrl"],
				Timeout:    timeout,
			}))
		case "messagebird":
			adapters = append(adapters, sms.NewMessageBird(sms.MessageBirdConfig{
				AccessKey:  p.Credentials["accessKey"],
				Originator: p.Credentials["originator"],
				BaseURL:    p.Credentials["baseUrl"],
				Timeout:    timeout,
			}))
		}
	}
	return adapters
}

func adapterClosers(lists ...[]dispatch.Adapter) []lifecycle.Closer {
	var out []lifecycle.Closer
	for _, list := range lists {
		for _, a := range list {
			out = append(out, a)
		}
	}
	return out
}

func buildResolver(cfg gwconfig.Config, log *zap.SugaredLogger) profile.Resolver {
	if cfg.Resolver.Type == "http" {
		return profile.NewHTTP(profile.HTTPConfig{
			BaseURL: cfg.Resolver.HTTP.BaseURL,
			Timeout: time.Duration(cfg.Resolver.HTTP.TimeoutMs) * time.Millisecond,
		}, log)
	}
	return profile.NewMock(nil)
}

func buildDLQ(cfg gwconfig.Config) deadletter.Publisher {
	if cfg.Retry.OnExhausted == "kafka" {
		mode := deadletter.PayloadRaw
		if cfg.Retry.DLQPayload == "reencoded" {
			mode = deadletter.PayloadReencoded
		}
		return deadletter.NewKafkaPublisher(cfg.Bus.Bootstrap, cfg.Retry.DLQTopic, mode, os.Stderr)
	}
	return deadletter.LogOnly{}
}
