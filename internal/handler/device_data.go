package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/iot-device-console/internal/model"
	"github.com/iliyamo/iot-device-console/internal/service"
)

// DeviceDataHandler exposes the device-facing endpoints: token
// issuance against the device secret and telemetry ingestion with a
// device access token.
type DeviceDataHandler struct {
	devices  *service.DeviceService
	readings *service.ReadingService
}

func NewDeviceDataHandler(devices *service.DeviceService, readings *service.ReadingService) *DeviceDataHandler {
	return &DeviceDataHandler{devices: devices, readings: readings}
}

type deviceTokenRequest struct {
	DeviceID     string `json:"device_id"`
	DeviceSecret string `json:"device_secret"`
}

type deviceTokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

type ingestRequest struct {
	Payload         map[string]any `json:"payload"`
	DeviceTimestamp *time.Time     `json:"device_timestamp"`
}

// Token handles POST /v1/device/token. Devices authenticate with
// their id and secret, not with user credentials.
func (h *DeviceDataHandler) Token(c echo.Context) error {
	var req deviceTokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.DeviceID == "" || req.DeviceSecret == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "device_id and device_secret are required"})
	}
	token, ttlMinutes, err := h.devices.IssueDeviceToken(c.Request().Context(), req.DeviceID, req.DeviceSecret)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, deviceTokenResponse{
		AccessToken:      token,
		TokenType:        "bearer",
		ExpiresInMinutes: ttlMinutes,
	})
}

// Ingest handles POST /v1/device/readings. The device comes from the
// validated token, never from the body, so a device can only write its
// own stream.
func (h *DeviceDataHandler) Ingest(c echo.Context) error {
	device, ok := c.Get("device").(model.Device)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Payload == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payload is required"})
	}
	reading, err := h.readings.CreateReading(
		c.Request().Context(), device, req.Payload, req.DeviceTimestamp, time.Time{}, false, false)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, viewReading(reading))
}
