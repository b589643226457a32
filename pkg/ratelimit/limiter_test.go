package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAttemptLimiterBurst(t *testing.T) {
	l := NewAttemptLimiter(3, 0.001, 0)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1"), "attempt %d should pass", i)
	}
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestAttemptLimiterKeysAreIndependent(t *testing.T) {
	l := NewAttemptLimiter(1, 0.001, 0)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestAttemptLimiterRefill(t *testing.T) {
	// 50 tokens per second refills the single-token bucket well within
	// the wait below.
	l := NewAttemptLimiter(1, 50, 0)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	time.Sleep(50 * time.Millisecond)
	assert.True(t, l.Allow("10.0.0.1"))
}

func TestAttemptLimiterReset(t *testing.T) {
	l := NewAttemptLimiter(2, 0.001, 0)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	l.Reset("10.0.0.1")
	assert.True(t, l.Allow("10.0.0.1"))
}

func TestMiddlewareBlocksAfterBudget(t *testing.T) {
	m := NewMiddleware(NewAttemptLimiter(2, 0.001, 0))
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestMiddlewareUsesForwardedFor(t *testing.T) {
	m := NewMiddleware(NewAttemptLimiter(1, 0.001, 0))
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, ip := range []string{"203.0.113.7", "203.0.113.8"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "distinct forwarded IPs get their own budget")
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
