package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/iot-device-console/internal/model"
)

// RequireRole enforces that the authenticated user holds one of the
// given roles. It assumes UserAuth ran earlier and stored the role in
// the context; a missing or unknown role is rejected with 403.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[string(r)] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get("role").(string)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// RequireAdmin is shorthand for the admin-only route groups.
func RequireAdmin() echo.MiddlewareFunc {
	return RequireRole(model.RoleAdmin)
}
