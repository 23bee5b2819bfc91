package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/iot-device-console/internal/service"
)

// DeviceAuth returns an Echo middleware that validates a device
// access token: signature, device_access audience, device existence,
// active status and a token_version matching the device's current
// generation counter. On success the request context holds "device"
// (model.Device).
func DeviceAuth(devices *service.DeviceService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing device token"})
			}
			device, err := devices.Authorize(c.Request().Context(), raw)
			if err != nil {
				if errors.Is(err, service.ErrForbidden) {
					return c.JSON(http.StatusForbidden, echo.Map{"error": "device is blocked"})
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid device token"})
			}
			c.Set("device", device)
			return next(c)
		}
	}
}
