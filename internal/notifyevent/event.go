// Package notifyevent defines the notification event and customer profile
// types that flow through the dispatch engine.
package notifyevent

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type is the closed set of notification event kinds the gateway understands.
type Type string

const (
	TypeFraudAlert     Type = "FRAUD_ALERT"
	TypeHighValueAlert Type = "HIGH_VALUE_ALERT"
	TypeBalanceUpdate  Type = "BALANCE_UPDATE"
	TypeDormancyAlert  Type = "DORMANCY_ALERT"
	TypeDailySpendSum  Type = "DAILY_SPEND_SUMMARY"
)

func validType(t Type) bool {
	switch t {
	case TypeFraudAlert, TypeHighValueAlert, TypeBalanceUpdate, TypeDormancyAlert, TypeDailySpendSum:
		return true
	default:
		return false
	}
}

// Severity is the notification priority, used for force-both routing.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Channel is a requested delivery transport hint on the event.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
	ChannelBoth  Channel = "BOTH"
)

// wireEvent mirrors the JSON schema in the external interface contract.
// Unknown fields are ignored by encoding/json by default.
type wireEvent struct {
	NotificationID   string          `json:"notificationId"`
	NotificationType string          `json:"notificationType"`
	Severity         *string         `json:"severity"`
	Channel          *string         `json:"channel"`
	AccountID        int64           `json:"accountId"`
	CustomerID       int64           `json:"customerId"`
	AccountNumber    string          `json:"accountNumber"`
	Subject          string          `json:"subject"`
	Body             string          `json:"body"`
	EventTime        *time.Time      `json:"eventTime"`
	GeneratedAt      *time.Time      `json:"generatedAt"`
	Metadata         json.RawMessage `json:"metadata"`
}

// Event is the decoded, immutable representation of a notification record.
type Event struct {
	NotificationID   string
	NotificationType Type
	Severity         *Severity
	Channel          *Channel
	AccountID        int64
	CustomerID       int64
	AccountNumber    string
	Subject          string
	Body             string
	EventTime        *time.Time
	GeneratedAt      *time.Time
	Metadata         json.RawMessage

	// raw retains the original bytes so a dead-letter publish can
	// republish exactly what was consumed instead of a re-encoding.
	raw []byte
}

// Raw returns the exact bytes the event was decoded from.
func (e Event) Raw() []byte { return e.raw }

// Decode parses one bus record value into an Event. A missing notificationId,
// an unparseable JSON document, or an unrecognized notificationType is a
// decode failure (the caller treats all three as the same failure class but
// may log the distinguishing reason via the returned error).
func Decode(value []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(value, &w); err != nil {
		return Event{}, fmt.Errorf("decode: malformed json: %w", err)
	}
	if w.NotificationID == "" {
		return Event{}, fmt.Errorf("decode: missing notificationId")
	}
	if !validType(Type(w.NotificationType)) {
		return Event{}, fmt.Errorf("decode: unknown notificationType %q", w.NotificationType)
	}

	ev := Event{
		NotificationID:   w.NotificationID,
		NotificationType: Type(w.NotificationType),
		AccountID:        w.AccountID,
		CustomerID:       w.CustomerID,
		AccountNumber:    w.AccountNumber,
		Subject:          w.Subject,
		Body:             w.Body,
		EventTime:        w.EventTime,
		GeneratedAt:      w.GeneratedAt,
		Metadata:         w.Metadata,
		raw:              append([]byte(nil), value...),
	}
	if w.Severity != nil {
		s := Severity(*w.Severity)
		ev.Severity = &s
	}
	if w.Channel != nil {
		c := Channel(*w.Channel)
		ev.Channel = &c
	}
	return ev, nil
}

// Encode re-serializes the event to its wire JSON form.
func (e Event) Encode() ([]byte, error) {
	w := wireEvent{
		NotificationID:   e.NotificationID,
		NotificationType: string(e.NotificationType),
		AccountID:        e.AccountID,
		CustomerID:       e.CustomerID,
		AccountNumber:    e.AccountNumber,
		Subject:          e.Subject,
		Body:             e.Body,
		EventTime:        e.EventTime,
		GeneratedAt:      e.GeneratedAt,
		Metadata:         e.Metadata,
	}
	if e.Severity != nil {
		s := string(*e.Severity)
		w.Severity = &s
	}
	if e.Channel != nil {
		c := string(*e.Channel)
		w.Channel = &c
	}
	return json.Marshal(w)
}

// Profile is the resolved customer contact record for one account.
type Profile struct {
	CustomerID int64
	AccountID  int64
	FirstName  string
	LastName   string
	Email      string
	Phone      string
}

// HasEmail reports whether the profile has a usable email contact.
func (p Profile) HasEmail() bool { return nonBlank(p.Email) }

// HasPhone reports whether the profile has a usable phone contact.
func (p Profile) HasPhone() bool { return nonBlank(p.Phone) }

func nonBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' {
			return true
		}
	}
	return false
}
