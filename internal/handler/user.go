package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/crmdesk/crmdesk/internal/config"
	"github.com/crmdesk/crmdesk/internal/middleware"
	"github.com/crmdesk/crmdesk/internal/queue"
	"github.com/crmdesk/crmdesk/internal/repository"
	audit "github.com/crmdesk/crmdesk/internal/service"
	"github.com/crmdesk/crmdesk/internal/session"
)

// UserHandler serves the admin-gated user management endpoints. Profile
// edits keep the target user's session snapshot in step with the table,
// and deactivation revokes their refresh tokens so the account goes dark
// immediately.
type UserHandler struct {
	Cfg      config.Config
	Users    *repository.UserRepo
	Tokens   *repository.TokenRepo
	Sessions *session.Store
}

func NewUserHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo, s *session.Store) *UserHandler {
	if u == nil || t == nil || s == nil {
		panic("nil dependency passed to NewUserHandler")
	}
	return &UserHandler{Cfg: cfg, Users: u, Tokens: t, Sessions: s}
}

type createUserReq struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type updateUserReq struct {
	DisplayName *string `json:"display_name"`
	Role        *string `json:"role"`
	IsActive    *bool   `json:"is_active"`
	Password    *string `json:"password"`
}

// List handles GET /v1/users.
func (h *UserHandler) List(c echo.Context) error {
	includeInactive := strings.EqualFold(c.QueryParam("include_inactive"), "true")
	ctx, cancel := reqCtx(c)
	defer cancel()

	items, err := h.Users.List(ctx, !includeInactive)
	if err != nil {
		return recordError(c, err)
	}
	if items == nil {
		items = []*repository.User{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/users/:id.
func (h *UserHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return recordError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// Create handles POST /v1/users. Role defaults to "user" when omitted.
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = repository.RoleUser
	}
	if !repository.ValidRole(role) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be admin or user"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := h.Users.Create(ctx, req.Email, req.Password, strings.TrimSpace(req.DisplayName), role, h.Cfg.BcryptCost)
	if err != nil {
		return recordError(c, err)
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return recordError(c, err)
	}
	h.publish(c, queue.ActionCreated, id, fmt.Sprintf("created %s (%s)", u.Email, u.Role))
	return c.JSON(http.StatusCreated, u)
}

// Update handles PUT /v1/users/:id with a partial body. The cached
// snapshot is refreshed so a role or active-flag change is visible to the
// guard before the old cache entry would have expired.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Role != nil && !repository.ValidRole(strings.ToLower(strings.TrimSpace(*req.Role))) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be admin or user"})
	}
	if req.Role != nil {
		norm := strings.ToLower(strings.TrimSpace(*req.Role))
		req.Role = &norm
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.Update(ctx, id, repository.UserPatch{
		DisplayName: req.DisplayName,
		Role:        req.Role,
		IsActive:    req.IsActive,
		Password:    req.Password,
	}, h.Cfg.BcryptCost)
	if err != nil {
		return recordError(c, err)
	}

	if u.IsActive {
		_ = h.Sessions.Put(ctx, session.Snapshot{
			UserID:      u.ID,
			Email:       u.Email,
			DisplayName: u.DisplayName,
			Role:        u.Role,
			IsActive:    u.IsActive,
		})
	} else {
		_ = h.Sessions.Clear(ctx, u.ID)
		_ = h.Tokens.RevokeAll(ctx, u.ID)
	}

	h.publish(c, queue.ActionUpdated, u.ID, fmt.Sprintf("updated %s", u.Email))
	return c.JSON(http.StatusOK, u)
}

// Delete handles DELETE /v1/users/:id: soft delete plus session teardown.
// An admin cannot delete their own account; locking every admin out of
// user management would leave no remediation path.
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if actor, ok := middleware.CurrentSession(c); ok && actor.UserID == id {
		return c.JSON(http.StatusConflict, echo.Map{"error": "cannot delete your own account"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Users.Deactivate(ctx, id); err != nil {
		return recordError(c, err)
	}
	_ = h.Sessions.Clear(ctx, id)
	_ = h.Tokens.RevokeAll(ctx, id)

	h.publish(c, queue.ActionDeactivated, id, "soft-deleted")
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) publish(c echo.Context, action string, id uint64, summary string) {
	actor, _ := middleware.CurrentSession(c)
	_ = audit.PublishRecordChanged(c.Request().Context(), queue.RecordChangedEvent{
		Entity:     "user",
		EntityID:   id,
		Action:     action,
		ActorID:    actor.UserID,
		ActorEmail: actor.Email,
		Summary:    summary,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})
}
