// Package guard decides whether the current session may reach a protected
// view. A check walks Unchecked -> Checking and terminates in exactly one
// of Denied, Granted or AdminRequired. The guard fails closed: missing,
// malformed or inactive session state always lands in Denied, and a
// malformed or inactive snapshot is cleared on the way so the next check
// starts from a clean "signed out" state.
package guard

import (
	"context"
	"errors"
	"net/url"

	"github.com/crmdesk/crmdesk/internal/repository"
	"github.com/crmdesk/crmdesk/internal/session"
)

// State enumerates the check states. Denied, Granted and AdminRequired
// are terminal.
type State int

const (
	Unchecked State = iota
	Checking
	Denied
	Granted
	AdminRequired
)

func (s State) String() string {
	switch s {
	case Unchecked:
		return "unchecked"
	case Checking:
		return "checking"
	case Denied:
		return "denied"
	case Granted:
		return "granted"
	case AdminRequired:
		return "admin_required"
	}
	return "unknown"
}

// Decision is the outcome of a check. RedirectTo is set only when Denied
// and preserves the requested view for a post-sign-in redirect. Session
// holds the effective profile snapshot when Granted.
type Decision struct {
	State      State
	Reason     string
	RedirectTo string
	Session    session.Snapshot
}

// ProfileSource yields the authoritative profile for a subject. UserRepo
// satisfies it; tests substitute fakes.
type ProfileSource interface {
	GetByID(ctx context.Context, id uint64) (repository.User, error)
}

// Guard evaluates access checks against the session store and, for
// admin-gated views, the authoritative profile source. The cached role is
// never trusted for elevation: a server-side demotion takes effect on the
// demoted user's next admin-gated check.
type Guard struct {
	sessions  *session.Store
	profiles  ProfileSource
	loginPath string
}

func New(sessions *session.Store, profiles ProfileSource, loginPath string) *Guard {
	if loginPath == "" {
		loginPath = "/v1/auth/login"
	}
	return &Guard{sessions: sessions, profiles: profiles, loginPath: loginPath}
}

// Check gates the view for the given subject. The same subject, snapshot
// and requireAdmin flag always yield the same decision.
func (g *Guard) Check(ctx context.Context, subject uint64, view string, requireAdmin bool) Decision {
	if subject == 0 {
		return g.deny(view, "no session")
	}

	snap, err := g.sessions.Get(ctx, subject)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrMalformedSession):
		// Structurally invalid state is treated as no session, never as an
		// error the caller sees. The store already deleted the entry, so
		// the next check starts clean.
		return g.deny(view, "malformed session discarded")
	case errors.Is(err, session.ErrNoSession):
		// No snapshot (expired, cleared, or cache evicted). Re-validate
		// against the source of truth and re-prime the cache; a bearer
		// with no backing profile is denied.
		u, uerr := g.profiles.GetByID(ctx, subject)
		if uerr != nil || !u.IsActive {
			return g.deny(view, "no valid session")
		}
		snap = snapshotOf(u)
		_ = g.sessions.Put(ctx, snap)
	default:
		// Store unavailable in an unexpected way: fail closed.
		return g.deny(view, "session store unavailable")
	}

	if !snap.IsActive {
		// An inactive account is indistinguishable from no session.
		_ = g.sessions.Clear(ctx, subject)
		return g.deny(view, "account disabled")
	}

	if !requireAdmin {
		return Decision{State: Granted, Session: snap}
	}

	// Admin-gated: the cached role may have drifted since sign-in, so the
	// decision is made on the authoritative row, not the snapshot.
	u, err := g.profiles.GetByID(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = g.sessions.Clear(ctx, subject)
			return g.deny(view, "profile no longer exists")
		}
		return g.deny(view, "profile lookup failed")
	}
	if !u.IsActive {
		_ = g.sessions.Clear(ctx, subject)
		return g.deny(view, "account disabled")
	}

	fresh := snapshotOf(u)
	fresh.IssuedAt = snap.IssuedAt
	_ = g.sessions.Put(ctx, fresh)

	if u.Role != repository.RoleAdmin {
		return Decision{State: AdminRequired, Reason: "administrator role required", Session: fresh}
	}
	return Decision{State: Granted, Session: fresh}
}

func (g *Guard) deny(view, reason string) Decision {
	redirect := g.loginPath
	if view != "" {
		redirect += "?next=" + url.QueryEscape(view)
	}
	return Decision{State: Denied, Reason: reason, RedirectTo: redirect}
}

func snapshotOf(u repository.User) session.Snapshot {
	return session.Snapshot{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		IsActive:    u.IsActive,
	}
}
