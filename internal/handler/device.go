package handler

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/iot-device-console/internal/model"
	"github.com/iliyamo/iot-device-console/internal/profiles"
	"github.com/iliyamo/iot-device-console/internal/service"
)

// DeviceHandler exposes the owner-facing device management and
// telemetry query endpoints.
type DeviceHandler struct {
	devices  *service.DeviceService
	readings *service.ReadingService
}

func NewDeviceHandler(devices *service.DeviceService, readings *service.ReadingService) *DeviceHandler {
	return &DeviceHandler{devices: devices, readings: readings}
}

func currentUser(c echo.Context) (model.User, bool) {
	user, ok := c.Get("user").(model.User)
	return user, ok
}

type createDeviceRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

type updateDeviceRequest struct {
	Name     *string `json:"name"`
	Category *string `json:"category"`
	Status   *string `json:"status"`
}

// deviceCreatedResponse carries the one-time plaintext secret; it is
// never retrievable again, only replaceable through rotation.
type deviceCreatedResponse struct {
	Device       deviceView `json:"device"`
	DeviceSecret string     `json:"device_secret"`
}

// Categories handles GET /v1/devices/categories.
func (h *DeviceHandler) Categories(c echo.Context) error {
	type categoryView struct {
		Slug          string         `json:"slug"`
		Name          string         `json:"name"`
		Description   string         `json:"description"`
		SamplePayload map[string]any `json:"sample_payload"`
	}
	out := make([]categoryView, 0, len(profiles.Categories))
	for _, p := range profiles.Categories {
		out = append(out, categoryView{
			Slug:          p.Slug,
			Name:          p.Name,
			Description:   p.Description,
			SamplePayload: p.SamplePayload(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return c.JSON(http.StatusOK, out)
}

// List handles GET /v1/devices.
func (h *DeviceHandler) List(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	devices, err := h.devices.List(c.Request().Context(), user)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, viewDevices(devices))
}

// Create handles POST /v1/devices.
func (h *DeviceHandler) Create(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	var req createDeviceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Category == "" {
		req.Category = profiles.DefaultSlug
	}
	device, secret, err := h.devices.CreateDevice(c.Request().Context(), user, req.Name, req.Category)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, deviceCreatedResponse{
		Device:       viewDevice(device),
		DeviceSecret: secret,
	})
}

// load fetches the path device with owner-or-admin access control.
// When ok is false the response has already been written.
func (h *DeviceHandler) load(c echo.Context) (model.Device, model.User, bool) {
	user, authed := currentUser(c)
	if !authed {
		_ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
		return model.Device{}, model.User{}, false
	}
	device, err := h.devices.Get(c.Request().Context(), c.Param("id"), user)
	if err != nil {
		_ = writeError(c, err)
		return model.Device{}, model.User{}, false
	}
	return device, user, true
}

// Get handles GET /v1/devices/:id.
func (h *DeviceHandler) Get(c echo.Context) error {
	device, _, ok := h.load(c)
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, viewDevice(device))
}

// Update handles PATCH /v1/devices/:id.
func (h *DeviceHandler) Update(c echo.Context) error {
	device, user, ok := h.load(c)
	if !ok {
		return nil
	}
	var req updateDeviceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	upd := service.DeviceUpdate{Name: req.Name, Category: req.Category}
	if req.Status != nil {
		status := model.DeviceStatus(*req.Status)
		upd.Status = &status
	}
	updated, err := h.devices.Update(c.Request().Context(), device, user, upd)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, viewDevice(updated))
}

// Deactivate handles POST /v1/devices/:id/deactivate. Blocking a
// device bumps its token generation, so outstanding device tokens die
// with the block.
func (h *DeviceHandler) Deactivate(c echo.Context) error {
	device, user, ok := h.load(c)
	if !ok {
		return nil
	}
	updated, err := h.devices.Deactivate(c.Request().Context(), device, user)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, viewDevice(updated))
}

// Delete handles DELETE /v1/devices/:id.
func (h *DeviceHandler) Delete(c echo.Context) error {
	device, user, ok := h.load(c)
	if !ok {
		return nil
	}
	removedAt, err := h.devices.Delete(c.Request().Context(), device, user)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":         device.ID,
		"deleted_at": removedAt,
	})
}

// RotateSecret handles POST /v1/devices/:id/rotate-secret.
func (h *DeviceHandler) RotateSecret(c echo.Context) error {
	device, user, ok := h.load(c)
	if !ok {
		return nil
	}
	secret, err := h.devices.RotateSecret(c.Request().Context(), device, user)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"device_id":     device.ID,
		"device_secret": secret,
	})
}

// InvalidateTokens handles POST /v1/devices/:id/invalidate-tokens.
func (h *DeviceHandler) InvalidateTokens(c echo.Context) error {
	device, user, ok := h.load(c)
	if !ok {
		return nil
	}
	updated, err := h.devices.InvalidateTokens(c.Request().Context(), device, user)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, viewDevice(updated))
}

// readingQuery parses the shared query parameters of the reading
// endpoints. Timestamps are RFC 3339.
func readingQuery(c echo.Context) (limit int, since, until *time.Time, includeSimulated bool, err error) {
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			return 0, nil, nil, false, echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
		}
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"since", &since}, {"until", &until}} {
		if raw := c.QueryParam(p.name); raw != "" {
			ts, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return 0, nil, nil, false, echo.NewHTTPError(http.StatusBadRequest, p.name+" must be RFC 3339")
			}
			*p.dst = &ts
		}
	}
	includeSimulated = c.QueryParam("include_simulated") == "true"
	return limit, since, until, includeSimulated, nil
}

// Readings handles GET /v1/devices/:id/readings. Simulated entries
// are hidden unless include_simulated=true.
func (h *DeviceHandler) Readings(c echo.Context) error {
	device, user, ok := h.load(c)
	if !ok {
		return nil
	}
	limit, since, until, includeSimulated, err := readingQuery(c)
	if err != nil {
		return err
	}
	readings, err := h.readings.ListReadings(c.Request().Context(), device, user, limit, since, until, includeSimulated)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, viewReadings(readings))
}

// ReadingsMeta handles GET /v1/devices/:id/readings/meta.
func (h *DeviceHandler) ReadingsMeta(c echo.Context) error {
	device, user, ok := h.load(c)
	if !ok {
		return nil
	}
	_, since, until, includeSimulated, err := readingQuery(c)
	if err != nil {
		return err
	}
	meta, err := h.readings.Meta(c.Request().Context(), device, user, since, until, includeSimulated)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"device_id":          device.ID,
		"total_readings":     meta.TotalReadings,
		"latest_received_at": meta.LatestReceivedAt,
		"oldest_received_at": meta.OldestReceivedAt,
	})
}
