package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/silversurfers/silvergate/internal/appctx"
	"github.com/silversurfers/silvergate/internal/credential"
	"github.com/silversurfers/silvergate/internal/session"
)

// scopeCookieMaxAge keeps the browser scope stable across visits.
const scopeCookieMaxAge = int(365 * 24 * time.Hour / time.Second)

// scopeMiddleware opens the sealed scope cookie, or issues a fresh scope
// when the cookie is absent or unopenable. Every downstream component keys
// its per-browser state off the scope ID this middleware establishes.
func (h *Handler) scopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scopeID := ""

		if c, err := r.Cookie(credential.ScopeCookieName); err == nil {
			id, err := h.keeper.Open(c.Value)
			if err == nil {
				scopeID = id
			} else {
				// Not produced by our key. A tampered or rotated-away cookie
				// gets replaced, never trusted.
				appctx.GetLogger(r.Context()).Warn("unopenable scope cookie, reissuing")
			}
		}

		if scopeID == "" {
			scopeID = h.keeper.Issue()
			sealed, err := h.keeper.Seal(scopeID)
			if err != nil {
				appctx.GetLogger(r.Context()).Error("failed to seal scope cookie", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     credential.ScopeCookieName,
				Value:    sealed,
				Path:     "/",
				MaxAge:   scopeCookieMaxAge,
				HttpOnly: true,
				Secure:   h.secureCookies,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := appctx.WithScopeID(r.Context(), scopeID)
		ctx = appctx.WithLogger(ctx, appctx.GetLogger(ctx).With("scope_id", scopeID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionMiddleware derives the acting session from the stored credential.
//
// Absence and malformation both resolve to anonymous; the difference shows
// only in the logs. A malformed credential is also cleared, so the fault is
// paid once instead of on every request.
func (h *Handler) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		creds := h.credentials(r)

		token, err := creds.Load(ctx)
		if err != nil {
			appctx.GetLogger(ctx).Error("credential load failed", "error", err)
			next.ServeHTTP(w, withSession(r, session.Anonymous()))
			return
		}

		claims, err := session.Decode(token)
		if err != nil {
			if errors.Is(err, session.ErrMalformed) {
				appctx.GetLogger(ctx).Warn("malformed credential cleared", "error", err)
				if clearErr := creds.Clear(ctx); clearErr != nil {
					appctx.GetLogger(ctx).Error("failed to clear malformed credential", "error", clearErr)
				}
			}
			next.ServeHTTP(w, withSession(r, session.Anonymous()))
			return
		}

		next.ServeHTTP(w, withSession(r, session.Session{
			Authenticated: true,
			Role:          claims.Role,
			Subject:       claims.Subject,
		}))
	})
}
