// Package delivery holds the immutable outcome of one provider attempt.
package delivery

import "time"

// Status is the terminal classification of one adapter invocation.
type Status string

const (
	// Success means the provider accepted the message.
	Success Status = "SUCCESS"
	// Failure means a transient or unknown error occurred; retryable.
	Failure Status = "FAILURE"
	// Skipped means a permanent condition made the attempt moot — no
	// retry, no fallback within the channel, can fix it.
	Skipped Status = "SKIPPED"
)

// Result is the immutable outcome of one provider attempt. Exactly one of
// ProviderMessageID (on Success) or ErrorMessage (on Failure/Skipped) is
// populated.
type Result struct {
	Status            Status
	Provider          string
	Channel           string
	ProviderMessageID string
	ErrorMessage      string
	HTTPStatusCode    int
	DeliveredAt       time.Time
}

// NewSuccess builds a Success result.
func NewSuccess(provider, channel, providerMessageID string) Result {
	return Result{
		Status:            Success,
		Provider:          provider,
		Channel:           channel,
		ProviderMessageID: providerMessageID,
		DeliveredAt:       time.Now(),
	}
}

// NewFailure builds a Failure result. httpStatusCode is 0 when no transport
// response was received at all (e.g. a dial error).
func NewFailure(provider, channel, errorMessage string, httpStatusCode int) Result {
	return Result{
		Status:         Failure,
		Provider:       provider,
		Channel:        channel,
		ErrorMessage:   errorMessage,
		HTTPStatusCode: httpStatusCode,
		DeliveredAt:    time.Now(),
	}
}

// NewSkipped builds a Skipped result — a permanent, non-retryable condition.
func NewSkipped(provider, channel, errorMessage string) Result {
	return Result{
		Status:       Skipped,
		Provider:     provider,
		Channel:      channel,
		ErrorMessage: errorMessage,
		DeliveredAt:  time.Now(),
	}
}
