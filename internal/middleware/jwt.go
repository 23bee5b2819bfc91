package middleware // middleware provides shared request processing for handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/iot-device-console/internal/service"
	"github.com/iliyamo/iot-device-console/internal/utils"
)

// bearerToken extracts the raw token from an Authorization header.
func bearerToken(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(auth, "Bearer "), true
}

// UserAuth returns an Echo middleware that validates a user access
// token and loads the matching account. The token must decode with
// the user-access key and carry the user_access type tag, so neither
// refresh tokens nor device tokens pass here. On success the request
// context holds "user" (model.User) and "role" (string).
func UserAuth(codec *utils.Codec, users service.UserStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := codec.Decode(raw, utils.UserAccess)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			userID, err := strconv.ParseUint(claims.Subject, 10, 64)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token subject"})
			}
			// The account may have been deleted after the token was
			// minted; a dangling token is not authenticated.
			user, err := users.GetByID(c.Request().Context(), userID)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user no longer exists"})
			}
			c.Set("user", user)
			c.Set("role", string(user.Role))
			return next(c)
		}
	}
}
