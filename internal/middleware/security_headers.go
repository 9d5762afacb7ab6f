package middleware

import (
	"net/http"
	"strings"
)

// SecurityHeadersConfig holds security headers configuration
type SecurityHeadersConfig struct {
	Env string
}

// SecurityHeaders returns a middleware that sets browser security
// headers on every response. The API serves JSON only, but the headers
// still matter when an error page or the response body ends up rendered
// in a browser.
func SecurityHeaders(config SecurityHeadersConfig) func(http.Handler) http.Handler {
	production := config.Env == "production"

	static := map[string]string{
		"X-Frame-Options":            "DENY",
		"X-Content-Type-Options":     "nosniff",
		"X-XSS-Protection":           "1; mode=block",
		"Referrer-Policy":            "strict-origin-when-cross-origin",
		"X-DNS-Prefetch-Control":     "off",
		"Cross-Origin-Opener-Policy": "same-origin",
		"Content-Security-Policy":    buildCSP(production),
		"Permissions-Policy":         buildPermissionsPolicy(),
	}
	if production {
		static["Cross-Origin-Embedder-Policy"] = "require-corp"
	} else {
		static["Cross-Origin-Embedder-Policy"] = "credentialless"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for name, value := range static {
				h.Set(name, value)
			}

			// HSTS only when the request actually arrived over TLS,
			// otherwise a misconfigured proxy would lock clients out.
			if production && requestIsHTTPS(r) {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
			}

			next.ServeHTTP(w, r)
		})
	}
}

func requestIsHTTPS(r *http.Request) bool {
	return r.TLS != nil ||
		r.URL.Scheme == "https" ||
		r.Header.Get("X-Forwarded-Proto") == "https"
}

// buildCSP returns the Content-Security-Policy value. Production locks
// everything to the API origin. Development stays permissive so local
// frontend tooling (hot reload, websocket dev servers) keeps working.
func buildCSP(production bool) string {
	if production {
		return strings.Join([]string{
			"default-src 'self'",
			"script-src 'self'",
			"style-src 'self' 'unsafe-inline'",
			"img-src 'self' data: https:",
			"font-src 'self'",
			"connect-src 'self'",
			"frame-ancestors 'none'",
			"base-uri 'self'",
			"form-action 'self'",
		}, "; ")
	}
	return strings.Join([]string{
		"default-src 'self' http: https: ws:",
		"script-src 'self' 'unsafe-inline' 'unsafe-eval' http: https: ws:",
		"style-src 'self' 'unsafe-inline' http: https:",
		"img-src 'self' data: https: http:",
		"font-src 'self' data: http: https:",
		"connect-src 'self' http: https: ws: wss:",
		"frame-ancestors 'self'",
		"base-uri 'self'",
		"form-action 'self'",
	}, "; ")
}

// buildPermissionsPolicy disables browser features the API never uses.
func buildPermissionsPolicy() string {
	features := []string{
		"accelerometer",
		"camera",
		"geolocation",
		"gyroscope",
		"magnetometer",
		"microphone",
		"payment",
		"usb",
	}
	directives := make([]string, len(features))
	for i, f := range features {
		directives[i] = f + "=()"
	}
	return strings.Join(directives, ", ")
}
