package web

import (
	"net/http"

	"github.com/silversurfers/silvergate/internal/api"
	"github.com/silversurfers/silvergate/internal/appctx"
	"github.com/silversurfers/silvergate/internal/invite"
	"github.com/silversurfers/silvergate/internal/redirect"
	"github.com/silversurfers/silvergate/internal/routeguard"
	"github.com/silversurfers/silvergate/internal/session"
)

// pages maps exact paths to page names. Paths under a guarded section that
// are not listed here resolve through sectionPages.
var pages = map[string]string{
	"/":                     "home",
	"/pricing":              "pricing",
	"/login":                "login",
	"/signup":               "signup",
	"/admin/login":          "admin-login",
	"/verify-email":         "verify-email",
	"/resend-verification":  "resend-verification",
	"/forgot-password":      "forgot-password",
	"/reset-password":       "reset-password",
	"/account":              "account",
	"/checkout":             "checkout",
	"/admin/dashboard":      "admin-dashboard",
	"/admin/users":          "admin-users",
}

// sectionPages names the page serving any unlisted path under a guarded
// section prefix, so deep links like /account/billing still render.
var sectionPages = map[string]string{
	"account":  "account",
	"checkout": "checkout",
	"admin":    "admin-dashboard",
}

// pageFor resolves a path to a page name.
func pageFor(path string, route *routeguard.Route) (string, bool) {
	if name, ok := pages[path]; ok {
		return name, true
	}
	if route != nil {
		if name, ok := sectionPages[route.Name]; ok {
			return name, true
		}
	}
	return "", false
}

// loginPages are the surfaces whose payload carries the sign-in affordances.
func isLoginSurface(name string) bool {
	return name == "login" || name == "signup" || name == "admin-login"
}

type sessionPayload struct {
	Authenticated bool   `json:"authenticated"`
	Role          string `json:"role,omitempty"`
	Subject       string `json:"subject,omitempty"`
}

type pagePayload struct {
	Page           string                `json:"page"`
	Path           string                `json:"path"`
	Session        sessionPayload        `json:"session"`
	Invite         *invite.PendingInvite `json:"invite,omitempty"`
	GoogleClientID string                `json:"google_client_id,omitempty"`
}

// handlePage runs the navigation guard and renders the page payload.
//
// Denials follow the guard verdict: anonymous users are remembered and sent
// to the matching login surface, an authenticated user short on role is sent
// home with nothing recorded. Allowed visits are tracked as the post-login
// fallback destination.
func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(r)
	path := r.URL.Path
	mem := h.memory(r)

	verdict := routeguard.Evaluate(sess, path)

	switch verdict.State {
	case routeguard.DeniedAnonymous:
		target := path
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		remember := mem.Remember
		if verdict.Route.AdminSection {
			remember = mem.RememberAdmin
		}
		if err := remember(ctx, target); err != nil {
			appctx.GetLogger(ctx).Error("failed to record navigation intent", "error", err)
		}
		appctx.GetLogger(ctx).Info("navigation denied",
			"guard_state", verdict.State.String(), "route", verdict.Route.Name)
		http.Redirect(w, r, verdict.LoginSurface, http.StatusSeeOther)
		return

	case routeguard.DeniedInsufficientRole:
		// No intent is recorded: the user cannot satisfy it by logging in
		// again, and remembering it would plant a guaranteed second denial.
		appctx.GetLogger(ctx).Info("navigation denied",
			"guard_state", verdict.State.String(), "route", verdict.Route.Name)
		http.Redirect(w, r, redirect.DefaultPath, http.StatusSeeOther)
		return
	}

	if verdict.ForwardTo != "" {
		http.Redirect(w, r, verdict.ForwardTo, http.StatusSeeOther)
		return
	}

	name, ok := pageFor(path, verdict.Route)
	if !ok {
		api.WriteNotFound(w, "page not found")
		return
	}

	if err := mem.Track(ctx, path); err != nil {
		appctx.GetLogger(ctx).Error("failed to track visit", "error", err)
	}

	payload := pagePayload{
		Page: name,
		Path: path,
		Session: sessionPayload{
			Authenticated: sess.Authenticated,
			Role:          string(sess.Role),
			Subject:       sess.Subject,
		},
	}

	if isLoginSurface(name) {
		payload.GoogleClientID = h.googleClientID
		payload.Invite = h.stashInvite(r)
	}

	api.WriteJSON(w, http.StatusOK, payload)
}

// stashInvite captures invite parameters arriving on a login surface and
// persists them for the scope, so the invite survives the verification
// detour. Returns the invite now pending for the scope, if any.
func (h *Handler) stashInvite(r *http.Request) *invite.PendingInvite {
	ctx := r.Context()
	scopeID := appctx.ScopeID(ctx)

	if inv, ok := invite.FromQuery(r.URL.Query()); ok {
		if err := h.carrier.Stash(ctx, scopeID, inv); err != nil {
			appctx.GetLogger(ctx).Error("failed to stash invite", "error", err)
			return nil
		}
		return &inv
	}

	inv, ok, err := h.carrier.Peek(ctx, scopeID)
	if err != nil {
		appctx.GetLogger(ctx).Error("failed to read stashed invite", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return &inv
}

// roleOf is a small helper for destination decisions after a credential is
// issued: the freshly issued token, not the middleware-derived session,
// names who just logged in.
func roleOf(token string) session.Role {
	return session.FromToken(token).Role
}
