package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/iot-device-console/internal/model"
	"github.com/iliyamo/iot-device-console/internal/service"
)

// AdminHandler exposes the admin-only user management and audit-log
// endpoints. Route-level role checks gate access; the handler itself
// only needs the acting admin for attribution.
type AdminHandler struct {
	users *service.UserService
	log   *service.SecurityLogger
}

func NewAdminHandler(users *service.UserService, log *service.SecurityLogger) *AdminHandler {
	return &AdminHandler{users: users, log: log}
}

type adminCreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type adminUpdateUserRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

type simulateEventRequest struct {
	ActorType string `json:"actor_type"`
	ActorID   string `json:"actor_id"`
	EventType string `json:"event_type"`
	Status    string `json:"status"`
	Detail    string `json:"detail"`
}

func pathUserID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	return id, nil
}

// ListUsers handles GET /v1/admin/users.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	users, err := h.users.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, viewUser(u))
	}
	return c.JSON(http.StatusOK, out)
}

// CreateUser handles POST /v1/admin/users.
func (h *AdminHandler) CreateUser(c echo.Context) error {
	admin, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	var req adminCreateUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Email == "" || len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and a password of at least 8 characters are required"})
	}
	user, err := h.users.Create(c.Request().Context(), req.Email, req.Password, model.Role(req.Role), admin)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, viewUser(user))
}

// GetUser handles GET /v1/admin/users/:id.
func (h *AdminHandler) GetUser(c echo.Context) error {
	id, err := pathUserID(c)
	if err != nil {
		return err
	}
	user, err := h.users.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, viewUser(user))
}

// UpdateUser handles PUT /v1/admin/users/:id.
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	admin, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	id, err := pathUserID(c)
	if err != nil {
		return err
	}
	user, err := h.users.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	var req adminUpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	upd := service.UserUpdate{Email: req.Email, Password: req.Password}
	if req.Role != nil {
		role := model.Role(*req.Role)
		upd.Role = &role
	}
	updated, err := h.users.Update(c.Request().Context(), user, admin, upd)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, viewUser(updated))
}

// DeleteUser handles DELETE /v1/admin/users/:id.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	admin, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	id, err := pathUserID(c)
	if err != nil {
		return err
	}
	user, err := h.users.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.users.Delete(c.Request().Context(), user, admin); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user deleted"})
}

// ListEvents handles GET /v1/admin/security-events, newest first.
func (h *AdminHandler) ListEvents(c echo.Context) error {
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be a positive integer"})
		}
		if n > 1000 {
			n = 1000
		}
		limit = n
	}
	events, err := h.log.Recent(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]eventView, 0, len(events))
	for _, ev := range events {
		out = append(out, viewEvent(ev))
	}
	return c.JSON(http.StatusOK, out)
}

// SimulateEvent handles POST /v1/admin/security-events/simulate:
// injects a synthetic audit entry to exercise downstream consumers.
func (h *AdminHandler) SimulateEvent(c echo.Context) error {
	var req simulateEventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.EventType == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_type is required"})
	}
	actorType := model.ActorType(req.ActorType)
	switch actorType {
	case model.ActorUser, model.ActorDevice, model.ActorAdmin, model.ActorSystem:
	case "":
		actorType = model.ActorSystem
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown actor_type"})
	}
	status := model.EventStatus(req.Status)
	switch status {
	case model.EventSuccess, model.EventDenied, model.EventError:
	case "":
		status = model.EventSuccess
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}

	ev := model.SecurityEvent{
		ActorType: actorType,
		EventType: req.EventType,
		Status:    status,
	}
	if req.ActorID != "" {
		ev.ActorID = &req.ActorID
	}
	if req.Detail != "" {
		ev.Detail = &req.Detail
	}
	if err := h.log.Append(c.Request().Context(), &ev); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, viewEvent(ev))
}
