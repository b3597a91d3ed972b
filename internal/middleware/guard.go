package middleware

// guard.go adapts access guard decisions to HTTP. Denied becomes a 401
// carrying the sign-in URL with the requested view preserved in its
// `next` query parameter; AdminRequired becomes a 403 access-denied body
// with remediation hints rather than a redirect. On Granted the effective
// profile snapshot is stashed in the context under "session" for handlers
// such as /v1/me.

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/crmdesk/crmdesk/internal/guard"
	"github.com/crmdesk/crmdesk/internal/session"
)

// RequireSession gates a route group on a valid, active session. It
// assumes JWTAuth already placed the subject under "user_id".
func RequireSession(g *guard.Guard) echo.MiddlewareFunc {
	return requireState(g, false)
}

// RequireAdmin additionally demands the admin role, re-validated against
// the users table on every request.
func RequireAdmin(g *guard.Guard) echo.MiddlewareFunc {
	return requireState(g, true)
}

func requireState(g *guard.Guard, admin bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, _ := c.Get("user_id").(uint64)
			d := g.Check(c.Request().Context(), uid, c.Request().URL.Path, admin)
			switch d.State {
			case guard.Granted:
				c.Set("session", d.Session)
				return next(c)
			case guard.AdminRequired:
				return c.JSON(http.StatusForbidden, echo.Map{
					"error":         "access_denied",
					"message":       "you do not have administrator privileges for this resource",
					"required_role": "admin",
					"current_role":  d.Session.Role,
				})
			default:
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error":       "unauthorized",
					"redirect_to": d.RedirectTo,
				})
			}
		}
	}
}

// CurrentSession returns the snapshot stored by RequireSession, with a
// second value reporting whether one is present.
func CurrentSession(c echo.Context) (session.Snapshot, bool) {
	snap, ok := c.Get("session").(session.Snapshot)
	return snap, ok
}
