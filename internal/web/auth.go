package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/silversurfers/silvergate/internal/api"
	"github.com/silversurfers/silvergate/internal/appctx"
	"github.com/silversurfers/silvergate/internal/authgw"
	"github.com/silversurfers/silvergate/internal/invite"
	"github.com/silversurfers/silvergate/internal/redirect"
	"github.com/silversurfers/silvergate/internal/routeguard"
	"github.com/silversurfers/silvergate/internal/session"
)

// authRequest is the body shape shared by the authentication endpoints.
// Unused fields are simply absent for a given endpoint.
type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	IDToken  string `json:"id_token"`
	Token    string `json:"token"`
	// Redirect is the query-directive continuation carried by the page
	// script, e.g. from /login?redirect=/checkout.
	Redirect string `json:"redirect"`
}

// authResponse is returned on success; Redirect names where the page script
// should navigate next.
type authResponse struct {
	Redirect string `json:"redirect,omitempty"`
	Message  string `json:"message,omitempty"`
}

func decodeAuthRequest(w http.ResponseWriter, r *http.Request) (*authRequest, bool) {
	var req authRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "invalid request body")
		return nil, false
	}
	return &req, true
}

// withLatch wraps a form submission: while one submission of the named form
// is outstanding for this scope, a second one is refused instead of queued.
func (h *Handler) withLatch(w http.ResponseWriter, r *http.Request, form string, fn func()) {
	ctx := r.Context()
	scopeID := appctx.ScopeID(ctx)

	ok, err := h.latch.Acquire(ctx, scopeID, form)
	if err != nil {
		// A broken cache must not block logins; proceed unlatched.
		appctx.GetLogger(ctx).Error("submit latch unavailable", "form", form, "error", err)
		fn()
		return
	}
	if !ok {
		api.WriteConflict(w, api.ReasonSubmissionInFlight,
			"a submission is already in progress, please wait")
		return
	}
	defer func() {
		// The request context dies when the client disconnects; the latch
		// must be released regardless or the form stays wedged until the
		// latch TTL expires.
		releaseCtx := context.WithoutCancel(ctx)
		if err := h.latch.Release(releaseCtx, scopeID, form); err != nil {
			appctx.GetLogger(ctx).Warn("submit latch release failed", "form", form, "error", err)
		}
	}()

	fn()
}

// writeFailure maps a classified authentication failure onto the error
// envelope. The mapping is by kind; messages pass through untouched.
func writeFailure(w http.ResponseWriter, f *authgw.Failure) {
	switch f.Kind {
	case authgw.KindInvalidCredentials:
		api.WriteUnauthorized(w, api.ReasonInvalidCredentials, f.Message)
	case authgw.KindEmailNotVerified:
		api.WriteErrorDetail(w, http.StatusForbidden, api.ErrorDetail{
			ReasonCode: api.ReasonEmailNotVerified,
			Message:    f.Message,
			Email:      f.Email,
		})
	case authgw.KindEmailAlreadyRegistered:
		api.WriteConflict(w, api.ReasonEmailAlreadyRegistered, f.Message)
	case authgw.KindRateLimited:
		api.WriteTooManyRequests(w, f.Message)
	case authgw.KindValidationError:
		api.WriteErrorDetail(w, http.StatusBadRequest, api.ErrorDetail{
			ReasonCode: api.ReasonValidationError,
			Message:    f.Message,
			Field:      f.Field,
		})
	case authgw.KindNetworkError:
		api.WriteError(w, http.StatusBadGateway, api.ReasonNetworkError, f.Message)
	default:
		api.WriteError(w, http.StatusBadGateway, api.ReasonServerError, f.Message)
	}
}

// finishCredentialError ends a handler whose gateway call returned a local
// fault. Stale responses end silently: the caller who would have read the
// answer is gone.
func finishCredentialError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, authgw.ErrStaleResponse) {
		appctx.GetLogger(r.Context()).Info("auth response discarded", "error", err)
		return
	}
	appctx.GetLogger(r.Context()).Error("auth operation failed", "error", err)
	api.WriteInternalError(w, "could not complete the request")
}

// handleLogin serves the consumer login form.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAuthRequest(w, r)
	if !ok {
		return
	}
	if req.Email == "" || req.Password == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "email and password are required")
		return
	}

	h.withLatch(w, r, "login", func() {
		ctx := r.Context()
		result, err := h.gateway.Login(ctx, h.credentials(r), req.Email, req.Password)
		if err != nil {
			finishCredentialError(w, r, err)
			return
		}
		if !result.Success() {
			writeFailure(w, result.Failure)
			return
		}

		dest, err := h.consumerDestination(r, result.Token, req.Redirect)
		if err != nil {
			appctx.GetLogger(ctx).Error("failed to resolve destination", "error", err)
			dest = redirect.DefaultPath
		}

		h.discardInvite(r)
		api.WriteJSON(w, http.StatusOK, authResponse{Redirect: dest})
	})
}

// consumerDestination resolves the post-login landing path for a credential
// issued at a consumer surface.
//
// An admin logging in here is a special case: an explicitly recorded intent
// still wins, but the tracked-last-page fallback does not apply. An admin's
// default destination is the dashboard, not wherever they last browsed.
func (h *Handler) consumerDestination(r *http.Request, token, queryDirective string) (string, error) {
	ctx := r.Context()
	mem := h.memory(r)

	if roleOf(token) == session.RoleAdmin {
		intent, err := mem.Consume(ctx)
		if err != nil {
			return "", err
		}
		if intent != "" {
			return intent, nil
		}
		return redirect.AdminDefaultPath, nil
	}

	return mem.Destination(ctx, queryDirective)
}

// handleAdminLogin serves the admin login surface. The credential exchange is
// identical to consumer login; only the destination logic differs.
func (h *Handler) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAuthRequest(w, r)
	if !ok {
		return
	}
	if req.Email == "" || req.Password == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "email and password are required")
		return
	}

	h.withLatch(w, r, "admin-login", func() {
		ctx := r.Context()
		result, err := h.gateway.Login(ctx, h.credentials(r), req.Email, req.Password)
		if err != nil {
			finishCredentialError(w, r, err)
			return
		}
		if !result.Success() {
			writeFailure(w, result.Failure)
			return
		}

		var dest string
		if roleOf(result.Token) == session.RoleAdmin {
			dest, err = h.memory(r).AdminDestination(ctx)
		} else {
			// A non-admin authenticating at the admin surface gets a valid
			// consumer session; the guard keeps them out of the admin section.
			dest, err = h.memory(r).Destination(ctx, "")
		}
		if err != nil {
			appctx.GetLogger(ctx).Error("failed to resolve destination", "error", err)
			dest = redirect.DefaultPath
		}

		api.WriteJSON(w, http.StatusOK, authResponse{Redirect: dest})
	})
}

// handleSignup serves the registration form. The stashed invite, if any,
// restricts and accompanies the registration; it stays stashed until a
// successful login redeems the flow end to end.
func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAuthRequest(w, r)
	if !ok {
		return
	}
	if req.Email == "" || req.Password == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "email and password are required")
		return
	}

	h.withLatch(w, r, "signup", func() {
		ctx := r.Context()

		pending, stashed, err := h.carrier.Peek(ctx, appctx.ScopeID(ctx))
		if err != nil {
			appctx.GetLogger(ctx).Error("failed to read stashed invite", "error", err)
		}
		var p *invite.PendingInvite
		if stashed {
			p = &pending
		}

		result, err := h.gateway.RegisterWithPassword(ctx, req.Email, req.Password, p)
		if err != nil {
			finishCredentialError(w, r, err)
			return
		}
		if !result.Success() {
			writeFailure(w, result.Failure)
			return
		}

		api.WriteJSON(w, http.StatusOK, authResponse{
			Redirect: "/verify-email",
			Message:  "check your inbox to verify your email address",
		})
	})
}

// handleGoogleSignIn exchanges a Google-issued identity token for a session.
func (h *Handler) handleGoogleSignIn(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAuthRequest(w, r)
	if !ok {
		return
	}
	if req.IDToken == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "id_token is required")
		return
	}

	h.withLatch(w, r, "google", func() {
		ctx := r.Context()
		result, err := h.gateway.ExchangeOAuthCredential(ctx, h.credentials(r), req.IDToken)
		if err != nil {
			finishCredentialError(w, r, err)
			return
		}
		if !result.Success() {
			writeFailure(w, result.Failure)
			return
		}

		dest, err := h.consumerDestination(r, result.Token, req.Redirect)
		if err != nil {
			appctx.GetLogger(ctx).Error("failed to resolve destination", "error", err)
			dest = redirect.DefaultPath
		}

		h.discardInvite(r)
		api.WriteJSON(w, http.StatusOK, authResponse{Redirect: dest})
	})
}

// handleForgotPassword requests a reset email. The response is identical for
// every address, registered or not.
func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAuthRequest(w, r)
	if !ok {
		return
	}
	if req.Email == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "email is required")
		return
	}

	h.withLatch(w, r, "forgot-password", func() {
		if _, err := h.gateway.RequestPasswordReset(r.Context(), req.Email); err != nil {
			finishCredentialError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, authResponse{
			Message: "if an account exists for that address, a reset link is on its way",
		})
	})
}

// handleResetPassword completes a reset with the emailed token.
func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAuthRequest(w, r)
	if !ok {
		return
	}
	if req.Token == "" || req.Password == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "token and password are required")
		return
	}

	h.withLatch(w, r, "reset-password", func() {
		result, err := h.gateway.ResetPassword(r.Context(), req.Token, req.Password)
		if err != nil {
			finishCredentialError(w, r, err)
			return
		}
		if !result.Success() {
			writeFailure(w, result.Failure)
			return
		}
		api.WriteJSON(w, http.StatusOK, authResponse{
			Redirect: routeguard.LoginPath,
			Message:  "password updated, please sign in",
		})
	})
}

// handleResendVerification asks for a fresh verification email.
func (h *Handler) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAuthRequest(w, r)
	if !ok {
		return
	}
	if req.Email == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "email is required")
		return
	}

	h.withLatch(w, r, "resend-verification", func() {
		result, err := h.gateway.ResendVerification(r.Context(), req.Email)
		if err != nil {
			finishCredentialError(w, r, err)
			return
		}
		if !result.Success() {
			writeFailure(w, result.Failure)
			return
		}
		api.WriteJSON(w, http.StatusOK, authResponse{
			Message: "verification email sent, check your inbox",
		})
	})
}

// handleLogout clears the credential. Redirect memory and any stashed invite
// survive: logging out is not forgetting where the user was headed.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.credentials(r).Clear(r.Context()); err != nil {
		appctx.GetLogger(r.Context()).Error("failed to clear credential", "error", err)
		api.WriteInternalError(w, "could not complete the request")
		return
	}
	api.WriteJSON(w, http.StatusOK, authResponse{Redirect: redirect.DefaultPath})
}

// handleProfile returns the account behind the current credential.
func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	account, err := h.gateway.Profile(r.Context(), h.credentials(r))
	if err != nil {
		if errors.Is(err, authgw.ErrUnauthenticated) {
			api.WriteUnauthorized(w, api.ReasonUnauthenticated, "not signed in")
			return
		}
		appctx.GetLogger(r.Context()).Error("profile fetch failed", "error", err)
		api.WriteError(w, http.StatusBadGateway, api.ReasonNetworkError,
			"could not reach the server, please try again")
		return
	}
	api.WriteJSON(w, http.StatusOK, account)
}

// discardInvite drops the stashed invite after a successful sign-in; the
// backend has redeemed it by now.
func (h *Handler) discardInvite(r *http.Request) {
	ctx := r.Context()
	scopeID := appctx.ScopeID(ctx)
	if err := h.carrier.Discard(ctx, scopeID); err != nil {
		appctx.GetLogger(ctx).Warn("failed to discard stashed invite", "error", err)
	}
}
