package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/silversurfers/silvergate/internal/appctx"
)

// requestLoggerMiddleware attaches a request-scoped logger to the context.
// Must run after middleware.RequestID so GetReqID returns a value.
func requestLoggerMiddleware(base *slog.Logger, proxies *TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := "unknown"
			if proxies != nil {
				clientIP = proxies.ClientIPString(r)
			}

			reqLogger := base.With(
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path, // path only, no query string
				"client_ip", clientIP,
			)

			ctx := appctx.WithLogger(r.Context(), reqLogger)
			if clientIP != "unknown" {
				ctx = appctx.WithClientIP(ctx, clientIP)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// accessLogMiddleware emits one line per request with the response fields.
// The context logger already carries request_id, method, path and client_ip;
// only response fields are added here to avoid duplicate keys.
func (s *Server) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logger, ok := appctx.LoggerFromContext(r.Context())
			if !ok {
				logger = s.logger.With(
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
				)
			}
			logger.Info("request",
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
