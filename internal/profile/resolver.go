// Package profile resolves an account id to a customer contact profile.
// A transport error at this boundary degrades to "not found" rather than
// propagating — the core dispatch engine never retries resolution.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/relaynotify/gateway/internal/notifyevent"
)

// Resolver looks up the contact profile for an account.
type Resolver interface {
	Resolve(ctx context.Context, accountID int64) (notifyevent.Profile, bool)
	Close() error
}

// Mock is an in-memory resolver, useful for local runs and tests.
type Mock struct {
	profiles map[int64]notifyevent.Profile
}

// NewMock builds a Mock resolver seeded with the given profiles.
func NewMock(profiles map[int64]notifyevent.Profile) *Mock {
	return &Mock{profiles: profiles}
}

// Resolve looks the account up in the in-memory map.
func (m *Mock) Resolve(_ context.Context, accountID int64) (notifyevent.Profile, bool) {
	p, ok := m.profiles[accountID]
	return p, ok
}

// Close is a no-op; Mock holds no resources.
func (m *Mock) Close() error { return nil }

// HTTPConfig configures the HTTP-backed resolver.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HTTP resolves profiles via a REST lookup, modeled on the plain
// *http.Client adapters this codebase uses for outbound provider calls.
type HTTP struct {
	baseURL string
	client  *http.Client
	log     *zap.SugaredLogger
}

// NewHTTP builds an HTTP resolver.
func NewHTTP(cfg HTTPConfig, log *zap.SugaredLogger) *HTTP {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTP{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

type httpProfile struct {
	CustomerID int64  `json:"customerId"`
	AccountID  int64  `json:"accountId"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
}

// Resolve calls GET {baseURL}/accounts/{accountId}/profile. Any transport
// error, non-200 status, or malformed body is treated as "not found" —
// resolution failure is a permanent skip, not something the core retries.
func (h *HTTP) Resolve(ctx context.Context, accountID int64) (notifyevent.Profile, bool) {
	url := fmt.Sprintf("%s/accounts/%d/profile", h.baseURL, accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		h.log.Warnw("resolver: failed to build request", "account_id", accountID, "error", err)
		return notifyevent.Profile{}, false
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.log.Warnw("resolver: transport error, treating as not found", "account_id", accountID, "error", err)
		return notifyevent.Profile{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return notifyevent.Profile{}, false
	}
	if resp.StatusCode != http.StatusOK {
		h.log.Warnw("resolver: unexpected status, treating as not found", "account_id", accountID, "status", resp.StatusCode)
		return notifyevent.Profile{}, false
	}

	var hp httpProfile
	if err := json.NewDecoder(resp.Body).Decode(&hp); err != nil {
		h.log.Warnw("resolver: malformed response body, treating as not found", "account_id", accountID, "error", err)
		return notifyevent.Profile{}, false
	}

	return notifyevent.Profile{
		CustomerID: hp.CustomerID,
		AccountID:  hp.AccountID,
		FirstName:  hp.FirstName,
		LastName:   hp.LastName,
		Email:      hp.Email,
		Phone:      hp.Phone,
	}, true
}

// Close releases the resolver's HTTP client idle connections.
func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
