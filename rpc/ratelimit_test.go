package rpc

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterRefillsAndEvicts(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := NewRateLimiter(RateLimit{RequestsPerMinute: 60, Burst: 2})
	limiter.now = func() time.Time { return now }

	require.True(t, limiter.allow("a"))
	require.True(t, limiter.allow("a"))
	require.False(t, limiter.allow("a"))
	require.True(t, limiter.allow("b"))

	now = now.Add(time.Second)
	require.True(t, limiter.allow("a"))

	now = now.Add(visitorTTL + time.Second)
	require.True(t, limiter.allow("c"))
	limiter.mu.Lock()
	_, tracked := limiter.visitors["b"]
	limiter.mu.Unlock()
	require.False(t, tracked)
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{})
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/votes", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestClientIDPrefersProxyHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:4000"
	require.Equal(t, "10.0.0.1", clientID(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.2")
	require.Equal(t, "203.0.113.9", clientID(req))

	req.Header.Set("X-Real-IP", "198.51.100.4")
	require.Equal(t, "198.51.100.4", clientID(req))
}
