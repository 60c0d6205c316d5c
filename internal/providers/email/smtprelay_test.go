package email

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relaynotify/gateway/internal/delivery"
	"github.com/relaynotify/gateway/internal/notifyevent"
)

func TestSMTPRelay_IsConfigured(t *testing.T) {
	assert.True(t, NewSMTPRelay(SMTPConfig{Host: "mail.example.com", Port: 587, FromAddress: "noreply@example.com"}).IsConfigured())
	assert.False(t, NewSMTPRelay(SMTPConfig{Host: "mail.example.com"}).IsConfigured())
}

func TestSMTPRelay_SendSkipsWithoutEmail(t *testing.T) {
	s := NewSMTPRelay(SMTPConfig{Host: "mail.example.com", Port: 587, FromAddress: "noreply@example.com"})
	result := s.Send(context.Background(), notifyevent.Event{}, notifyevent.Profile{})
	assert.Equal(t, delivery.Skipped, result.Status)
}

func TestSMTPRelay_SendFailureOnUnreachableHost(t *testing.T) {
	s := NewSMTPRelay(SMTPConfig{Host: "127.0.0.1", Port: 1, FromAddress: "noreply@example.com"})
	result := s.Send(context.Background(), notifyevent.Event{Subject: "s", Body: "b"}, notifyevent.Profile{Email: "a@example.com"})

	assert.Equal(t, delivery.Failure, result.Status)
	assert.Zero(t, result.HTTPStatusCode)
}
