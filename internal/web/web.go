// Package web is the browser-facing surface of the gateway. It owns the
// scope cookie, derives the session for each request, guards page
// navigation, and exposes the authentication endpoints the page scripts
// submit to.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/silversurfers/silvergate/internal/appctx"
	"github.com/silversurfers/silvergate/internal/authgw"
	"github.com/silversurfers/silvergate/internal/browserstore"
	"github.com/silversurfers/silvergate/internal/credential"
	"github.com/silversurfers/silvergate/internal/invite"
	"github.com/silversurfers/silvergate/internal/ratelimit"
	"github.com/silversurfers/silvergate/internal/redirect"
	"github.com/silversurfers/silvergate/internal/session"
)

// Handler serves pages and authentication endpoints for one site.
type Handler struct {
	slots          browserstore.SlotStore
	keeper         *credential.ScopeKeeper
	gateway        *authgw.Gateway
	carrier        *invite.Carrier
	latch          *ratelimit.Latch
	limiter        *ratelimit.Limiter
	googleClientID string
	secureCookies  bool
}

// Options configures a Handler.
type Options struct {
	Slots          browserstore.SlotStore
	Keeper         *credential.ScopeKeeper
	Gateway        *authgw.Gateway
	Carrier        *invite.Carrier
	Latch          *ratelimit.Latch
	Limiter        *ratelimit.Limiter
	GoogleClientID string
	// SecureCookies marks the scope cookie Secure; off only for plain-HTTP dev.
	SecureCookies bool
}

// New creates the web handler.
func New(opts Options) *Handler {
	return &Handler{
		slots:          opts.Slots,
		keeper:         opts.Keeper,
		gateway:        opts.Gateway,
		carrier:        opts.Carrier,
		latch:          opts.Latch,
		limiter:        opts.Limiter,
		googleClientID: opts.GoogleClientID,
		secureCookies:  opts.SecureCookies,
	}
}

// Routes assembles the router: scope and session middleware everywhere,
// rate limiting on the authentication endpoints only.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.scopeMiddleware)
	r.Use(h.sessionMiddleware)

	r.Route("/auth", func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter.Middleware)
		}
		r.Post("/login", h.handleLogin)
		r.Post("/admin/login", h.handleAdminLogin)
		r.Post("/signup", h.handleSignup)
		r.Post("/google", h.handleGoogleSignIn)
		r.Post("/forgot-password", h.handleForgotPassword)
		r.Post("/reset-password", h.handleResetPassword)
		r.Post("/resend-verification", h.handleResendVerification)
		r.Post("/logout", h.handleLogout)
	})

	r.Get("/me", h.handleProfile)
	r.Get("/*", h.handlePage)

	return r
}

// credentials returns the credential store for the request's scope.
func (h *Handler) credentials(r *http.Request) *credential.Store {
	return credential.NewStore(h.slots, appctx.ScopeID(r.Context()))
}

// memory returns the redirect memory for the request's scope.
func (h *Handler) memory(r *http.Request) *redirect.Memory {
	return redirect.NewMemory(h.slots, appctx.ScopeID(r.Context()))
}

type sessionCtxKey struct{}

// withSession attaches the derived session to the request context, and
// stamps the logger so every later line carries the authentication state.
func withSession(r *http.Request, s session.Session) *http.Request {
	ctx := context.WithValue(r.Context(), sessionCtxKey{}, s)
	ctx = appctx.WithLogger(ctx,
		appctx.GetLogger(ctx).With(slog.Bool("authenticated", s.Authenticated)))
	return r.WithContext(ctx)
}

// sessionFrom returns the session derived by the middleware, or anonymous.
func sessionFrom(r *http.Request) session.Session {
	if s, ok := r.Context().Value(sessionCtxKey{}).(session.Session); ok {
		return s
	}
	return session.Anonymous()
}
