package sms

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

// MessageBirdConfig configures the fallback SMS provider.
type MessageBirdConfig struct {
	AccessKey  string
	Originator string
	BaseURL    string
	Timeout    time.Duration
}

// MessageBird delivers SMS via the MessageBird REST API, used as the
// fallback adapter behind Twilio.
type MessageBird struct {
	cfg    MessageBirdConfig
	client *http.Client
}

// NewMessageBird builds a MessageBird adapter.
func NewMessageBird(cfg MessageBirdConfig) *MessageBird {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://rest.messagebird.com/messages"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MessageBird{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

// ProviderName identifies this adapter.
func (m *MessageBird) ProviderName() string { return "messagebird" }

// ChannelType is the channel this adapter serves.
func (m *MessageBird) ChannelType() string { return "SMS" }

// IsConfigured reports whether the minimum credentials are present.
func (m *MessageBird) IsConfigured() bool {
	return m.cfg.AccessKey != "" && m.cfg.Originator != ""
}

type messageBirdRequest struct {
	Recipients []string `json:"recipients"`
	Originator string   `json:"originator"`
	Body       string   `json:"body"`
}

type messageBirdResponse struct {
	ID string `json:"id"`
}

// Send delivers the event's body as an SMS via MessageBird.
func (m *MessageBird) Send(ctx context.Context, event notifyevent.Event, profile notifyevent.Profile) delivery.Result {
	if !profile.HasPhone() {
		return delivery.NewSkipped(m.ProviderName(), m.ChannelType(), "profile has no phone contact")
	}

	payload, err := json.Marshal(messageBirdRequest{
		Recipients: []string{profile.Phone},
		Originator: m.cfg.Originator,
		Body:       smsBody(event),
	})
	if err != nil {
		return delivery.NewFailure(m.ProviderName(), m.ChannelType(), fmt.Sprintf("failed to encode request: %v", err), 0)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return delivery.NewFailure(m.ProviderName(), m.ChannelType(), fmt.Sprintf("failed to build request: %v", err), 0)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "AccessKey "+m.cfg.AccessKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return delivery.NewFailure(m.ProviderName(), m.ChannelType(), fmt.Sprintf("network error: %v", err), 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK {
		var out messageBirdResponse
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return delivery.NewSuccess(m.ProviderName(), m.ChannelType(), out.ID)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return delivery.NewFailure(m.ProviderName(), m.ChannelType(), "invalid credentials", resp.StatusCode)
	case http.StatusTooManyRequests:
		return delivery.NewFailure(m.ProviderName(), m.ChannelType(), "rate limited", resp.StatusCode)
	default:
		return delivery.NewFailure(m.ProviderName(), m.ChannelType(), fmt.Sprintf("messagebird returned status %d", resp.StatusCode), resp.StatusCode)
	}
}

// Close releases idle HTTP connections held by the client.
func (m *MessageBird) Close() error {
	m.client.CloseIdleConnections()
	return nil
}
