package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	pkghttp "github.com/lecternhq/lectern/pkg/http"
)

// RateLimitConfig holds per-client rate limiting settings
type RateLimitConfig struct {
	RequestsPerMinute int
	Window            time.Duration
}

// DefaultAuthRateLimit returns the limit applied to unauthenticated
// auth endpoints. The ceiling matches the failed-login lockout
// threshold so a single client cannot trip lockouts faster than it
// can attempt passwords.
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 5,
		Window:            time.Minute,
	}
}

// RateLimitByIP limits requests per client IP over the configured
// window. Exceeding clients get a 429 with a Retry-After hint.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	window := config.Window
	if window <= 0 {
		window = time.Minute
	}

	return httprate.Limit(
		config.RequestsPerMinute,
		window,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			pkghttp.WriteTooManyRequests(w, "Too many requests, slow down")
		}),
	)
}
