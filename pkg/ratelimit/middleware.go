package ratelimit

import (
	"net"
	"net/http"
)

// KeyFunc derives the rate-limit key from a request.
type KeyFunc func(r *http.Request) string

// ByClientIP keys requests by remote address, ignoring the port.
func ByClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests over budget with 429. Store failures fail
// open: losing the limiter must not take signups down with it.
func Middleware(limiter *Limiter, key KeyFunc) func(http.Handler) http.Handler {
	if key == nil {
		key = ByClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), key(r))
			if err == nil && !allowed {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
