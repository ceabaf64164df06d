// Package routeguard decides, per navigation, whether a destination may be
// rendered for the current session.
package routeguard

import (
	"strings"

	"github.com/silversurfers/silvergate/internal/session"
)

// Login surfaces a denied navigation is sent to.
const (
	LoginPath      = "/login"
	AdminLoginPath = "/admin/login"
)

// AdminDashboardPath is the fixed landing page behind the bare admin index.
const AdminDashboardPath = "/admin/dashboard"

// Route declares the access requirements for one path prefix.
type Route struct {
	Name         string
	Prefix       string
	RequireAuth  bool
	RequireRole  session.Role
	AdminSection bool
}

// Table is the single source of truth for which destinations are guarded.
// Paths matching no entry are public. Longer prefixes win, so the table order
// does not matter.
var Table = []Route{
	{Name: "account", Prefix: "/account", RequireAuth: true},
	{Name: "checkout", Prefix: "/checkout", RequireAuth: true},
	{Name: "admin", Prefix: "/admin", RequireAuth: true, RequireRole: session.RoleAdmin, AdminSection: true},
}

// Lookup returns the most specific guarded route covering path, or nil for a
// public destination. The admin login surface is deliberately public even
// though it sits under the admin prefix.
func Lookup(path string) *Route {
	if path == AdminLoginPath || strings.HasPrefix(path, AdminLoginPath+"/") {
		return nil
	}

	var best *Route
	for i := range Table {
		r := &Table[i]
		if path != r.Prefix && !strings.HasPrefix(path, r.Prefix+"/") {
			continue
		}
		if best == nil || len(r.Prefix) > len(best.Prefix) {
			best = r
		}
	}
	return best
}

// State is the outcome of a guard evaluation.
type State int

const (
	Allowed State = iota
	DeniedAnonymous
	DeniedInsufficientRole
)

func (s State) String() string {
	switch s {
	case Allowed:
		return "allowed"
	case DeniedAnonymous:
		return "denied_anonymous"
	case DeniedInsufficientRole:
		return "denied_insufficient_role"
	default:
		return "unknown"
	}
}

// Verdict is an evaluation result plus the follow-up the caller must perform.
type Verdict struct {
	State State
	// Route is the guarded route that produced a denial, nil for public paths.
	Route *Route
	// LoginSurface is where to send an anonymous denial. Admin-section
	// denials go to the admin login so they never mix into the consumer
	// flow's post-login redirect.
	LoginSurface string
	// ForwardTo is a further redirect for an allowed destination: the bare
	// admin index forwards an admin to the dashboard.
	ForwardTo string
}

// Evaluate runs the guard state machine for one navigation attempt.
func Evaluate(s session.Session, path string) Verdict {
	route := Lookup(path)
	if route == nil {
		return Verdict{State: Allowed}
	}

	if route.RequireAuth && !s.Authenticated {
		surface := LoginPath
		if route.AdminSection {
			surface = AdminLoginPath
		}
		return Verdict{State: DeniedAnonymous, Route: route, LoginSurface: surface}
	}

	if route.RequireRole != "" && !s.HasRole(route.RequireRole) {
		return Verdict{State: DeniedInsufficientRole, Route: route}
	}

	v := Verdict{State: Allowed, Route: route}
	if route.AdminSection && isAdminIndex(path) && s.Role == session.RoleAdmin {
		v.ForwardTo = AdminDashboardPath
	}
	return v
}

func isAdminIndex(path string) bool {
	return path == "/admin" || path == "/admin/"
}
