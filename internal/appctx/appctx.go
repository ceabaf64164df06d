// Package appctx provides context-based utilities for cross-cutting concerns:
// the request-scoped logger and the browser scope identifier.
package appctx

import (
	"context"
	"io"
	"log/slog"
)

type loggerKey struct{}
type scopeKey struct{}
type clientIPKey struct{}

// noop is a package-level discard logger, created once.
var noop = slog.New(slog.NewTextHandler(io.Discard, nil))

// Noop returns a logger that discards all output.
func Noop() *slog.Logger { return noop }

// NoopIfNil returns l when non-nil, otherwise a discard logger.
// Intended as the first line in constructors that accept *slog.Logger.
func NoopIfNil(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return noop
}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// LoggerFromContext returns the logger from the context (if present).
func LoggerFromContext(ctx context.Context) (*slog.Logger, bool) {
	l, ok := ctx.Value(loggerKey{}).(*slog.Logger)
	return l, ok && l != nil
}

// GetLogger returns the logger from the context, or slog.Default() if missing.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := LoggerFromContext(ctx); ok {
		return l
	}
	return slog.Default()
}

// WithScopeID attaches the browser scope identifier to the context.
// The scope ID names the durable storage scope for the requesting browser;
// it is set by the server once the scope cookie has been opened or issued.
func WithScopeID(ctx context.Context, scopeID string) context.Context {
	return context.WithValue(ctx, scopeKey{}, scopeID)
}

// ScopeID returns the browser scope identifier from the context.
// An empty string means the request carried no usable scope cookie.
func ScopeID(ctx context.Context) string {
	id, _ := ctx.Value(scopeKey{}).(string)
	return id
}

// WithClientIP attaches the client IP to the context. The server sets this
// after applying its trusted-proxy rules, so downstream consumers never have
// to interpret forwarding headers themselves.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIP returns the trusted client IP from the context, or "" if unset.
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
