package profile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaynotify/gateway/internal/notifyevent"
)

func TestMock_ResolveFoundAndNotFound(t *testing.T) {
	m := NewMock(map[int64]notifyevent.Profile{
		42: {AccountID: 42, Email: "a@example.com"},
	})

	p, ok := m.Resolve(context.Background(), 42)
	require.True(t, ok)
	assert.Equal(t, "a@example.com", p.Email)

	_, ok = m.Resolve(context.Background(), 99)
	assert.False(t, ok)
}

func TestHTTP_ResolveSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(httpProfile{AccountID: 7, Email: "x@example.com", Phone: "+15551234567"})
	}))
	defer srv.Close()

	resolver := NewHTTP(HTTPConfig{BaseURL: srv.URL}, nil)
	p, ok := resolver.Resolve(context.Background(), 7)

	require.True(t, ok)
	assert.Equal(t, int64(7), p.AccountID)
	assert.True(t, p.HasEmail())
	assert.True(t, p.HasPhone())
}

func TestHTTP_ResolveNotFoundOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	resolver := NewHTTP(HTTPConfig{BaseURL: srv.URL}, nil)
	_, ok := resolver.Resolve(context.Background(), 7)
	assert.False(t, ok)
}

func TestHTTP_ResolveTransportErrorDegradesToNotFound(t *testing.T) {
	resolver := NewHTTP(HTTPConfig{BaseURL: "http://127.0.0.1:0"}, nil)
	_, ok := resolver.Resolve(context.Background(), 7)
	assert.False(t, ok)
}
