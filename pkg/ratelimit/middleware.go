package ratelimit

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"
)

// Middleware refuses requests once the client's attempt budget is
// spent. Keys are client IPs.
type Middleware struct {
	limiter *AttemptLimiter
}

func NewMiddleware(limiter *AttemptLimiter) *Middleware {
	return &Middleware{limiter: limiter}
}

// Handler wraps next with the attempt limit.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		if !m.limiter.Allow(ip) {
			slog.Warn("Login attempt rate limited", "ip", ip)
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, map[string]string{
				"status":  "error",
				"message": "Too many attempts, try again later",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP resolves the caller's address, preferring proxy headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
