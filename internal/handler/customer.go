package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/crmdesk/crmdesk/internal/middleware"
	"github.com/crmdesk/crmdesk/internal/queue"
	"github.com/crmdesk/crmdesk/internal/repository"
	audit "github.com/crmdesk/crmdesk/internal/service"
)

// CustomerHandler serves the customer CRUD endpoints. Any authenticated
// active user may manage customers; deletion is a soft delete.
type CustomerHandler struct {
	Customers *repository.CustomerRepo
}

func NewCustomerHandler(repo *repository.CustomerRepo) *CustomerHandler {
	if repo == nil {
		panic("nil repository passed to NewCustomerHandler")
	}
	return &CustomerHandler{Customers: repo}
}

type customerReq struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Company *string `json:"company"`
	Address *string `json:"address"`
	Notes   *string `json:"notes"`
}

// List handles GET /v1/customers. Soft-deleted rows are hidden unless
// ?include_inactive=true is passed.
func (h *CustomerHandler) List(c echo.Context) error {
	includeInactive := strings.EqualFold(c.QueryParam("include_inactive"), "true")
	ctx, cancel := reqCtx(c)
	defer cancel()

	items, err := h.Customers.List(ctx, !includeInactive)
	if err != nil {
		return recordError(c, err)
	}
	if items == nil {
		items = []*repository.Customer{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/customers/:id.
func (h *CustomerHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	cust, err := h.Customers.GetByID(ctx, id)
	if err != nil {
		return recordError(c, err)
	}
	return c.JSON(http.StatusOK, cust)
}

// Create handles POST /v1/customers. Name and email are required; the
// response carries the server-assigned id and timestamps.
func (h *CustomerHandler) Create(c echo.Context) error {
	var req customerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	name := strings.TrimSpace(deref(req.Name))
	email := strings.TrimSpace(deref(req.Email))
	if name == "" || email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and email are required"})
	}

	cust := &repository.Customer{
		Name:    name,
		Email:   email,
		Phone:   deref(req.Phone),
		Company: deref(req.Company),
		Address: deref(req.Address),
		Notes:   deref(req.Notes),
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Customers.Create(ctx, cust); err != nil {
		return recordError(c, err)
	}
	h.publish(c, queue.ActionCreated, cust.ID, fmt.Sprintf("created %q", cust.Name))
	return c.JSON(http.StatusCreated, cust)
}

// Update handles PUT /v1/customers/:id with a partial body.
func (h *CustomerHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req customerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name cannot be empty"})
	}
	if req.Email != nil && strings.TrimSpace(*req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email cannot be empty"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	cust, err := h.Customers.Update(ctx, id, repository.CustomerPatch{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Company: req.Company,
		Address: req.Address,
		Notes:   req.Notes,
	})
	if err != nil {
		return recordError(c, err)
	}
	h.publish(c, queue.ActionUpdated, cust.ID, fmt.Sprintf("updated %q", cust.Name))
	return c.JSON(http.StatusOK, cust)
}

// Delete handles DELETE /v1/customers/:id by flipping is_active off.
// Deleting an already deleted customer answers 204 again.
func (h *CustomerHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Customers.Deactivate(ctx, id); err != nil {
		return recordError(c, err)
	}
	h.publish(c, queue.ActionDeactivated, id, "soft-deleted")
	return c.NoContent(http.StatusNoContent)
}

// publish emits an audit event for a mutation. Broker failures are
// swallowed; the audit trail is advisory, the database row is the record.
func (h *CustomerHandler) publish(c echo.Context, action string, id uint64, summary string) {
	actor, _ := middleware.CurrentSession(c)
	_ = audit.PublishRecordChanged(c.Request().Context(), queue.RecordChangedEvent{
		Entity:     "customer",
		EntityID:   id,
		Action:     action,
		ActorID:    actor.UserID,
		ActorEmail: actor.Email,
		Summary:    summary,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
