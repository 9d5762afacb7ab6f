package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	pkghttp "github.com/lecternhq/lectern/pkg/http"
	pkglogger "github.com/lecternhq/lectern/pkg/logger"
)

// SecureLogger logs one line per request. Query strings that mention
// credentials or tokens are redacted, and the client IP honors the
// trusted proxy configuration instead of raw headers.
func SecureLogger(logger *slog.Logger, ipConfig *pkghttp.IPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r)

			logger.LogAttrs(context.Background(), slog.LevelInfo, "http_request",
				slog.String("method", r.Method),
				slog.String("path", loggablePath(r)),
				slog.Int("status", wrapped.Status()),
				slog.Int64("bytes", int64(wrapped.BytesWritten())),
				slog.String("duration", time.Since(start).String()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("remote_addr", pkghttp.ExtractClientIP(r, ipConfig)),
			)
		})
	}
}

func loggablePath(r *http.Request) string {
	switch {
	case r.URL.RawQuery == "":
		return r.URL.Path
	case pkglogger.SanitizeQueryString(r.URL.RawQuery):
		return r.URL.Path + "?[REDACTED]"
	default:
		return r.URL.Path + "?" + r.URL.RawQuery
	}
}
