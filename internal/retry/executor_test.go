package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaynotify/gateway/internal/delivery"
)

func fastConfig(maxAttempts int) Config {
	return Config{
		MaxAttempts:   maxAttempts,
		InitialDelay:  time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      10 * time.Millisecond,
	}
}

func TestExecute_SuccessOnFirstAttempt(t *testing.T) {
	e := New(fastConfig(3), nil)
	calls := 0

	result := e.Execute(context.Background(), "sendgrid", "EMAIL", "test", func() delivery.Result {
		calls++
		return delivery.NewSuccess("sendgrid", "EMAIL", "msg-1")
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, delivery.Success, result.Status)
}

func TestExecute_SkippedNeverRetried(t *testing.T) {
	e := New(fastConfig(5), nil)
	calls := 0

	result := e.Execute(context.Background(), "sendgrid", "EMAIL", "test", func() delivery.Result {
		calls++
		return delivery.NewSkipped("sendgrid", "EMAIL", "no contact")
	})

	assert.Equal(t, 1, calls, "SKIPPED must not be retried")
	assert.Equal(t, delivery.Skipped, result.Status)
}

func TestExecute_RetriesUpToMaxAttempts(t *testing.T) {
	e := New(fastConfig(3), nil)
	calls := 0

	result := e.Execute(context.Background(), "sendgrid", "EMAIL", "test", func() delivery.Result {
		calls++
		return delivery.NewFailure("sendgrid", "EMAIL", "boom", 500)
	})

	assert.Equal(t, 3, calls)
	assert.Equal(t, delivery.Failure, result.Status)
}

func TestExecute_SuccessAfterRetries(t *testing.T) {
	e := New(fastConfig(3), nil)
	calls := 0

	result := e.Execute(context.Background(), "sendgrid", "EMAIL", "test", func() delivery.Result {
		calls++
		if calls < 3 {
			return delivery.NewFailure("sendgrid", "EMAIL", "boom", 500)
		}
		return delivery.NewSuccess("sendgrid", "EMAIL", "msg-1")
	})

	assert.Equal(t, 3, calls)
	assert.Equal(t, delivery.Success, result.Status)
}

func TestExecute_PanicAbsorbedIntoFailure(t *testing.T) {
	e := New(fastConfig(1), nil)

	result := e.Execute(context.Background(), "sendgrid", "EMAIL", "test", func() delivery.Result {
		panic("adapter exploded")
	})

	require.Equal(t, delivery.Failure, result.Status)
	assert.Contains(t, result.ErrorMessage, "Exception:")
	assert.Contains(t, result.ErrorMessage, "adapter exploded")
}

func TestExecute_PanicThenSuccess(t *testing.T) {
	e := New(fastConfig(3), nil)
	calls := 0

	result := e.Execute(context.Background(), "sendgrid", "EMAIL", "test", func() delivery.Result {
		calls++
		if calls < 3 {
			panic("transient")
		}
		return delivery.NewSuccess("sendgrid", "EMAIL", "msg-1")
	})

	assert.Equal(t, 3, calls)
	assert.Equal(t, delivery.Success, result.Status)
}

func TestExecute_MaxAttemptsOneIsSingleCall(t *testing.T) {
	e := New(fastConfig(1), nil)
	calls := 0

	result := e.Execute(context.Background(), "sendgrid", "EMAIL", "test", func() delivery.Result {
		calls++
		return delivery.NewFailure("sendgrid", "EMAIL", "boom", 500)
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, delivery.Failure, result.Status)
}

func TestExecute_CancellationDuringSleepStopsRetrying(t *testing.T) {
	cfg := Config{
		MaxAttempts:   5,
		InitialDelay:  50 * time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      time.Second,
	}
	e := New(cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	result := e.Execute(ctx, "sendgrid", "EMAIL", "test", func() delivery.Result {
		calls++
		return delivery.NewFailure("sendgrid", "EMAIL", "boom", 500)
	})

	assert.Less(t, calls, 5, "cancellation should interrupt the retry loop before exhaustion")
	assert.Equal(t, delivery.Failure, result.Status)
}

func TestSpecDelay_CapsAtMaxDelay(t *testing.T) {
	d := &specDelay{cfg: Config{
		InitialDelay:  10 * time.Millisecond,
		BackoffFactor: 3.0,
		MaxDelay:      25 * time.Millisecond,
	}}

	for i := 0; i < 8; i++ {
		wait := d.NextBackOff()
		assert.GreaterOrEqual(t, wait, time.Duration(0))
		assert.LessOrEqual(t, wait, 25*time.Millisecond)
	}
}

// The jitter additive is bounded by InitialDelay, so with a factor of 2
// each attempt's delay window [base, base+initial) is fully above the
// previous window's floor: the base component is non-decreasing even
// though the sampled jitter varies.
func TestSpecDelay_BaseGrowsWithAttempts(t *testing.T) {
	d := &specDelay{cfg: Config{
		InitialDelay:  10 * time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      10 * time.Second,
	}}

	first := d.NextBackOff()
	second := d.NextBackOff()
	third := d.NextBackOff()

	assert.GreaterOrEqual(t, first, 10*time.Millisecond)
	assert.Less(t, first, 20*time.Millisecond)
	assert.GreaterOrEqual(t, second, 20*time.Millisecond)
	assert.Less(t, second, 30*time.Millisecond)
	assert.GreaterOrEqual(t, third, 40*time.Millisecond)
	assert.Less(t, third, 50*time.Millisecond)
}

func TestSpecDelay_ResetRestartsTheSequence(t *testing.T) {
	d := &specDelay{cfg: Config{
		InitialDelay:  10 * time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      10 * time.Second,
	}}

	_ = d.NextBackOff()
	_ = d.NextBackOff()
	d.Reset()

	assert.Less(t, d.NextBackOff(), 20*time.Millisecond)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", DefaultConfig(), false},
		{"zero max attempts", Config{MaxAttempts: 0, BackoffFactor: 1, MaxDelay: time.Second}, true},
		{"factor below one", Config{MaxAttempts: 1, BackoffFactor: 0.5, MaxDelay: time.Second}, true},
		{"max delay below initial", Config{MaxAttempts: 1, BackoffFactor: 1, InitialDelay: 2 * time.Second, MaxDelay: time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
