package middleware

import (
	"fmt"
	"net"
	"net/http"

	"github.com/manabi-dev/manabi/internal/middleware/ratelimit"
	"github.com/manabi-dev/manabi/internal/utils"
)

// RateLimit throttles requests per identity. Applied to the credential
// endpoints (login, register, password reset) it slows online guessing
// without affecting authenticated traffic.
func RateLimit(limiter *ratelimit.Limiter, identity func(r *http.Request) (string, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := identity(r)
			if err != nil {
				utils.WriteErrorAndStatusCode(w, err)
				return
			}
			if !limiter.Allow(key) {
				utils.WriteJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many requests, try again later"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client IP from RemoteAddr. X-Forwarded-For and
// X-Real-IP are deliberately not trusted, there is no reverse proxy that
// sanitizes them.
func ClientIP(r *http.Request) (string, error) {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("invalid client address: %s", ip)
	}
	return ip, nil
}
