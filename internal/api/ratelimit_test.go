package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_SlidingWindow(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{Limit: 2, Window: time.Minute})
	defer rl.Stop()

	now := time.Date(2023, 9, 23, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.1:1234"

	assert.True(t, rl.Allow(req))
	assert.True(t, rl.Allow(req))
	assert.False(t, rl.Allow(req))

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "198.51.100.2:1234"
	assert.True(t, rl.Allow(other))

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow(req))
}

func TestRateLimiter_Prune(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{Limit: 1, Window: time.Minute})
	defer rl.Stop()

	now := time.Date(2023, 9, 23, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rl.Allow(req)
	assert.Len(t, rl.windows, 1)

	now = now.Add(2 * time.Minute)
	rl.prune()
	assert.Empty(t, rl.windows)
}

func TestRateLimiter_MiddlewareSetsRetryAfter(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{Limit: 1, Window: time.Minute})
	defer rl.Stop()

	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", GetClientIP(req))

	req.RemoteAddr = "unix"
	assert.Equal(t, "unix", GetClientIP(req))
}
