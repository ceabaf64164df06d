// Package authgw performs authentication calls against the SilverSurfers API
// and classifies their outcomes.
//
// Each operation makes at most one network call. Outcomes are returned as a
// Result rather than an error: a rejected login is normal program flow, and
// every failure resolves to a re-presentable form state. The error return is
// reserved for local faults (credential persistence, canceled context).
package authgw

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/silversurfers/silvergate/internal/appctx"
	"github.com/silversurfers/silvergate/internal/credential"
	"github.com/silversurfers/silvergate/internal/httpclient"
	"github.com/silversurfers/silvergate/internal/invite"
)

// ErrStaleResponse means the caller went away while the call was in flight;
// the response was discarded without touching the credential store.
var ErrStaleResponse = errors.New("response discarded: caller context done")

// ErrUnauthenticated means the API rejected the stored credential.
var ErrUnauthenticated = errors.New("credential rejected by API")

// Failure describes a classified, user-presentable authentication failure.
type Failure struct {
	Kind    FailureKind
	Message string
	// Email carries the submitted address forward for the resend-verification
	// affordance. Set only for KindEmailNotVerified.
	Email string
	// Field names the offending input for KindValidationError.
	Field string
}

// Result is the outcome of a gateway operation. Exactly one of Token-bearing
// success, plain success (Token empty, Failure nil), or Failure applies.
type Result struct {
	Token   string
	Failure *Failure
}

// Success reports whether the operation succeeded.
func (r *Result) Success() bool {
	return r.Failure == nil
}

// Account is the profile the API reports for an authenticated credential.
type Account struct {
	Subject string `json:"id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
}

// Gateway calls the SilverSurfers API authentication endpoints.
type Gateway struct {
	client *httpclient.Client
	origin string
}

// New creates a gateway against the given API origin, e.g.
// "https://api.silversurfers.example".
func New(client *httpclient.Client, origin string) *Gateway {
	return &Gateway{client: client, origin: origin}
}

// Login exchanges an email/password pair for a credential.
// On success the credential is persisted before Login returns, so a caller
// observing success can immediately evaluate the new session.
func (g *Gateway) Login(ctx context.Context, creds *credential.Store, email, password string) (*Result, error) {
	resp := g.post(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	return g.acceptToken(ctx, creds, resp, email)
}

// RegisterWithPassword creates an account. The issued credential arrives
// later, after email verification and a subsequent login.
//
// When a pending invite restricts the email, a mismatched address is rejected
// here without any network call: the required address is known locally and
// the immediate, specific message beats a round trip.
func (g *Gateway) RegisterWithPassword(ctx context.Context, email, password string, pending *invite.PendingInvite) (*Result, error) {
	if pending != nil && !pending.MatchesEmail(email) {
		return &Result{Failure: &Failure{
			Kind:    KindValidationError,
			Field:   "email",
			Message: fmt.Sprintf("this invitation was issued to %s; please register with that address", pending.Email),
		}}, nil
	}

	body := map[string]string{
		"email":    email,
		"password": password,
	}
	if pending != nil {
		body["inviteToken"] = pending.Token
	}

	resp := g.post(ctx, "/auth/register", body)
	if resp.failure != nil {
		return &Result{Failure: g.describe(ctx, resp, email)}, nil
	}
	return &Result{}, nil
}

// ExchangeOAuthCredential trades a provider-issued identity token for a
// SilverSurfers credential. Persistence ordering matches Login.
func (g *Gateway) ExchangeOAuthCredential(ctx context.Context, creds *credential.Store, providerToken string) (*Result, error) {
	resp := g.post(ctx, "/auth/google", map[string]string{
		"idToken": providerToken,
	})
	return g.acceptToken(ctx, creds, resp, "")
}

// RequestPasswordReset asks the API to send a reset email.
//
// The outcome is success-shaped for any email, every time, including
// addresses with no account: a distinguishable response would let a caller
// probe which emails are registered. Backend failures are logged, not
// surfaced.
func (g *Gateway) RequestPasswordReset(ctx context.Context, email string) (*Result, error) {
	resp := g.post(ctx, "/auth/forgot-password", map[string]string{
		"email": email,
	})
	if resp.failure != nil {
		appctx.GetLogger(ctx).Warn("password reset request not delivered",
			slog.String("kind", string(resp.failure.Kind)))
	}
	return &Result{}, nil
}

// ResetPassword completes a reset using the emailed token. Failures surface
// the backend's message verbatim. A successful reset does not itself issue a
// credential; the user logs in with the new password.
func (g *Gateway) ResetPassword(ctx context.Context, token, newPassword string) (*Result, error) {
	resp := g.post(ctx, "/auth/reset-password", map[string]string{
		"token":    token,
		"password": newPassword,
	})
	if resp.failure != nil {
		return &Result{Failure: g.describe(ctx, resp, "")}, nil
	}
	return &Result{}, nil
}

// ResendVerification asks the API to send a fresh verification email.
// It never alters the stored credential or session.
func (g *Gateway) ResendVerification(ctx context.Context, email string) (*Result, error) {
	resp := g.post(ctx, "/auth/resend-verification", map[string]string{
		"email": email,
	})
	if resp.failure != nil {
		return &Result{Failure: g.describe(ctx, resp, "")}, nil
	}
	return &Result{}, nil
}

// Profile fetches the account behind the stored credential.
// A 401/403 means the credential is stale (expired or revoked); it is cleared
// so the next session evaluation sees anonymous, and ErrUnauthenticated is
// returned.
func (g *Gateway) Profile(ctx context.Context, creds *credential.Store) (*Account, error) {
	token, err := creds.Load(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrUnauthenticated
	}

	req, err := http.NewRequest(http.MethodGet, g.origin+"/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("profile request failed: %w", err)
	}
	body, err := g.client.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		appctx.GetLogger(ctx).Info("stale credential rejected by API, clearing",
			slog.Int("status", resp.StatusCode))
		if err := creds.Clear(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear stale credential: %w", err)
		}
		return nil, ErrUnauthenticated
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile request failed with status %d", resp.StatusCode)
	}

	var account Account
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("failed to parse profile response: %w", err)
	}
	return &account, nil
}

// backendResponse is the parsed outcome of one API call.
type backendResponse struct {
	status  int
	token   string
	message string
	failure *Failure // pre-classified transport failure, or status-derived
}

// post sends one JSON POST and parses the conventional response shape:
// 200 with an optional {token}, or an error status with {error: "..."}.
func (g *Gateway) post(ctx context.Context, path string, payload map[string]string) *backendResponse {
	raw, err := json.Marshal(payload)
	if err != nil {
		return &backendResponse{failure: &Failure{Kind: KindNetworkError, Message: "could not encode request"}}
	}

	req, err := http.NewRequest(http.MethodPost, g.origin+path, bytes.NewReader(raw))
	if err != nil {
		return &backendResponse{failure: &Failure{Kind: KindNetworkError, Message: "could not build request"}}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	// Auth calls are not cancellable mid-flight: the call runs to completion
	// on a detached context, and acceptToken discards the result if the
	// caller has gone away. Aborting the request instead would leave the
	// backend's view of the attempt ambiguous.
	resp, err := g.client.Do(context.WithoutCancel(ctx), req)
	if err != nil {
		return &backendResponse{failure: &Failure{
			Kind:    KindNetworkError,
			Message: "could not reach the server, please try again",
		}}
	}

	body, err := g.client.ReadBody(resp)
	if err != nil {
		return &backendResponse{failure: &Failure{
			Kind:    KindNetworkError,
			Message: "connection interrupted, please try again",
		}}
	}

	var parsed struct {
		Token string `json:"token"`
		Error string `json:"error"`
	}
	// The error body is surfaced verbatim when present; an unparsable body on
	// an error status still classifies by status code alone.
	_ = json.Unmarshal(body, &parsed)

	br := &backendResponse{
		status:  resp.StatusCode,
		token:   parsed.Token,
		message: parsed.Error,
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		br.failure = &Failure{
			Kind:    classifyStatus(resp.StatusCode, parsed.Error),
			Message: parsed.Error,
		}
	}
	return br
}

// acceptToken finishes a credential-issuing call: persist before returning,
// never persist a stale response.
func (g *Gateway) acceptToken(ctx context.Context, creds *credential.Store, resp *backendResponse, email string) (*Result, error) {
	if resp.failure != nil {
		return &Result{Failure: g.describe(ctx, resp, email)}, nil
	}

	if resp.token == "" {
		return &Result{Failure: &Failure{
			Kind:    KindServerError,
			Message: "the server returned an unexpected response",
		}}, nil
	}

	// The caller may have gone away while the call was in flight; a response
	// nobody is waiting for must not overwrite the credential.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStaleResponse, err)
	}

	if err := creds.Save(ctx, resp.token); err != nil {
		return nil, fmt.Errorf("failed to persist credential: %w", err)
	}
	return &Result{Token: resp.token}, nil
}

// describe finalizes a classified failure, attaching the submitted email to
// unverified-email failures so the resend affordance needs no re-entry.
func (g *Gateway) describe(ctx context.Context, resp *backendResponse, email string) *Failure {
	f := resp.failure
	if f.Message == "" {
		f.Message = defaultMessage(f.Kind)
	}
	if f.Kind == KindEmailNotVerified {
		f.Email = email
	}
	if f.Kind == KindServerError {
		appctx.GetLogger(ctx).Warn("auth call failed upstream",
			slog.Int("status", resp.status))
	}
	return f
}

func defaultMessage(kind FailureKind) string {
	switch kind {
	case KindInvalidCredentials:
		return "incorrect email or password"
	case KindEmailNotVerified:
		return "email not verified, please check your inbox"
	case KindEmailAlreadyRegistered:
		return "an account with this email already exists"
	case KindRateLimited:
		return "too many attempts, please wait a moment"
	case KindValidationError:
		return "please check the highlighted fields"
	case KindNetworkError:
		return "could not reach the server, please try again"
	default:
		return "something went wrong on our side, please try again"
	}
}
