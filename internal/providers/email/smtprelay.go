package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"time"

	"github.com/relaynotify/gateway/internal/delivery"
	"github.com/relaynotify/gateway/internal/notifyevent"
)

// SMTPConfig configures the fallback SMTP email provider. Timeout is
// stored on the adapter but not applied: the dial and the SMTP exchange
// run without a deadline.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	UseTLS      bool
	Timeout     time.Duration
}

// SMTPRelay delivers email by speaking SMTP directly, used as the
// fallback adapter behind an HTTP-API primary provider.
type SMTPRelay struct {
	cfg     SMTPConfig
	timeout time.Duration
}

// NewSMTPRelay builds an SMTPRelay adapter.
func NewSMTPRelay(cfg SMTPConfig) *SMTPRelay {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMTPRelay{cfg: cfg, timeout: timeout}
}

// ProviderName identifies this adapter.
func (s *SMTPRelay) ProviderName() string { return "smtp-relay" }

// ChannelType is the channel this adapter serves.
func (s *SMTPRelay) ChannelType() string { return "EMAIL" }

// IsConfigured reports whether the minimum SMTP settings are present.
func (s *SMTPRelay) IsConfigured() bool {
	return s.cfg.Host != "" && s.cfg.Port != 0 && s.cfg.FromAddress != ""
}

// Send delivers the event over SMTP. net/smtp has no context support, so
// cancellation here is cooperative only: the retry executor's own
// inter-attempt sleep remains cancellable even though one in-flight SMTP
// dial is not. In-flight provider calls are allowed to run to completion.
func (s *SMTPRelay) Send(_ context.Context, event notifyevent.Event, profile notifyevent.Profile) delivery.Result {
	if !profile.HasEmail() {
		return delivery.NewSkipped(s.ProviderName(), s.ChannelType(), "profile has no email contact")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", s.cfg.FromAddress, profile.Email, event.Subject, event.Body)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	var err error
	if s.cfg.UseTLS {
		err = s.sendTLS(addr, auth, profile.Email, []byte(msg))
	} else {
		err = smtp.SendMail(addr, auth, s.cfg.FromAddress, []string{profile.Email}, []byte(msg))
	}
	if err != nil {
		return delivery.NewFailure(s.ProviderName(), s.ChannelType(), fmt.Sprintf("smtp send failed: %v", err), 0)
	}
	return delivery.NewSuccess(s.ProviderName(), s.ChannelType(), "")
}

func (s *SMTPRelay) sendTLS(addr string, auth smtp.Auth, to string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
		return err
	}
	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(s.cfg.FromAddress); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// Close is a no-op; SMTPRelay holds no persistent connection.
func (s *SMTPRelay) Close() error { return nil }
