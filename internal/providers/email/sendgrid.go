// Package email implements email channel provider adapters.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/relaynotify/gateway/internal/delivery"
	"github.com/relaynotify/gateway/internal/notifyevent"
)

// SendgridConfig configures the primary HTTP-JSON email provider.
type SendgridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	BaseURL   string
	Timeout   time.Duration
}

// Sendgrid is an HTTP REST email adapter: a plain *http.Client, a
// hand-built JSON request, and status-code-to-result mapping.
type Sendgrid struct {
	cfg    SendgridConfig
	client *http.Client
}

// NewSendgrid builds a Sendgrid adapter.
func NewSendgrid(cfg SendgridConfig) *Sendgrid {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.sendgrid.com/v3/mail/send"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sendgrid{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

// ProviderName identifies this adapter in logs and results.
func (s *Sendgrid) ProviderName() string { return "sendgrid" }

// ChannelType is the channel this adapter serves.
func (s *Sendgrid) ChannelType() string { return "EMAIL" }

// IsConfigured reports whether the minimum credentials are present.
func (s *Sendgrid) IsConfigured() bool {
	return s.cfg.APIKey != "" && s.cfg.FromEmail != ""
}

type sendgridRequest struct {
	Personalizations []sendgridPersonalization `json:"personalizations"`
	From             sendgridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendgridContent         `json:"content"`
}

type sendgridPersonalization struct {
	To []sendgridAddress `json:"to"`
}

type sendgridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendgridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Send delivers the event's subject/body over the Sendgrid mail API. The
// profile lacking an email address is a permanent SKIPPED condition — no
// fallback adapter can invent a contact address.
func (s *Sendgrid) Send(ctx context.Context, event notifyevent.Event, profile notifyevent.Profile) delivery.Result {
	if !profile.HasEmail() {
		return delivery.NewSkipped(s.ProviderName(), s.ChannelType(), "profile has no email contact")
	}

	body := sendgridRequest{
		Personalizations: []sendgridPersonalization{{To: []sendgridAddress{{Email: profile.Email, Name: profile.FirstName + " " + profile.LastName}}}},
		From:             sendgridAddress{Email: s.cfg.FromEmail, Name: s.cfg.FromName},
		Subject:          event.Subject,
		Content:          []sendgridContent{{Type: "text/plain", Value: event.Body}},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return delivery.NewFailure(s.ProviderName(), s.ChannelType(), fmt.Sprintf("failed to encode request: %v", err), 0)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return delivery.NewFailure(s.ProviderName(), s.ChannelType(), fmt.Sprintf("failed to build request: %v", err), 0)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return delivery.NewFailure(s.ProviderName(), s.ChannelType(), fmt.Sprintf("network error: %v", err), 0)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK:
		return delivery.NewSuccess(s.ProviderName(), s.ChannelType(), resp.Header.Get("X-Message-Id"))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return delivery.NewFailure(s.ProviderName(), s.ChannelType(), "invalid credentials", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return delivery.NewFailure(s.ProviderName(), s.ChannelType(), "rate limited", resp.StatusCode)
	default:
		return delivery.NewFailure(s.ProviderName(), s.ChannelType(), fmt.Sprintf("sendgrid returned status %d", resp.StatusCode), resp.StatusCode)
	}
}

// Close releases idle HTTP connections held by the client.
func (s *Sendgrid) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
