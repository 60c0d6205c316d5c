// Package sms implements SMS channel provider adapters.
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/relaynotify/gateway/internal/delivery"
	"github.com/relaynotify/gateway/internal/notifyevent"
)

// TwilioConfig configures the primary SMS provider.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
	Timeout    time.Duration
}

// Twilio delivers SMS via Twilio's REST API: a form-encoded POST with
// status-code-to-result mapping.
type Twilio struct {
	cfg    TwilioConfig
	client *http.Client
}

// NewTwilio builds a Twilio adapter.
func NewTwilio(cfg TwilioConfig) *Twilio {
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", cfg.AccountSID)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Twilio{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

// ProviderName identifies this adapter.
func (t *Twilio) ProviderName() string { return "twilio" }

// ChannelType is the channel this adapter serves.
func (t *Twilio) ChannelType() string { return "SMS" }

// IsConfigured reports whether the minimum credentials are present.
func (t *Twilio) IsConfigured() bool {
	return t.cfg.AccountSID != "" && t.cfg.AuthToken != "" && t.cfg.FromNumber != ""
}

// Send delivers the event's body as an SMS. A profile without a phone
// number is a permanent SKIPPED condition.
func (t *Twilio) Send(ctx context.Context, event notifyevent.Event, profile notifyevent.Profile) delivery.Result {
	if !profile.HasPhone() {
		return delivery.NewSkipped(t.ProviderName(), t.ChannelType(), "profile has no phone contact")
	}

	values := url.Values{}
	values.Set("To", profile.Phone)
	values.Set("From", t.cfg.FromNumber)
	values.Set("Body", smsBody(event))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL, strings.NewReader(values.Encode()))
	if err != nil {
		return delivery.NewFailure(t.ProviderName(), t.ChannelType(), fmt.Sprintf("failed to build request: %v", err), 0)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return delivery.NewFailure(t.ProviderName(), t.ChannelType(), fmt.Sprintf("network error: %v", err), 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK {
		var out struct {
			SID string `json:"sid"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return delivery.NewSuccess(t.ProviderName(), t.ChannelType(), out.SID)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return delivery.NewFailure(t.ProviderName(), t.ChannelType(), "invalid credentials", resp.StatusCode)
	case http.StatusTooManyRequests:
		return delivery.NewFailure(t.ProviderName(), t.ChannelType(), "rate limited", resp.StatusCode)
	default:
		return delivery.NewFailure(t.ProviderName(), t.ChannelType(), fmt.Sprintf("twilio returned status %d", resp.StatusCode), resp.StatusCode)
	}
}

func smsBody(event notifyevent.Event) string {
	if event.Subject == "" {
		return event.Body
	}
	return event.Subject + ": " + event.Body
}

// Close releases idle HTTP connections held by the client.
func (t *Twilio) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
