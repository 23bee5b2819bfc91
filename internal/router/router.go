package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/iot-device-console/internal/config"
	"github.com/iliyamo/iot-device-console/internal/handler"
	"github.com/iliyamo/iot-device-console/internal/middleware"
	"github.com/iliyamo/iot-device-console/internal/service"
	"github.com/iliyamo/iot-device-console/internal/utils"
)

// Deps bundles everything route registration needs. The handlers hold
// the business logic; the router only decides which middleware guards
// which path.
type Deps struct {
	Auth       *handler.AuthHandler
	Devices    *handler.DeviceHandler
	DeviceData *handler.DeviceDataHandler
	Admin      *handler.AdminHandler
	Health     *handler.HealthHandler

	Codec     *utils.Codec
	Users     service.UserStore
	DeviceSvc *service.DeviceService

	RateLimit config.RateLimitConfig
	Redis     *redis.Client
}

// Register wires every route of the API onto the Echo instance.
//
// Three auth realms exist side by side: credential endpoints under
// /v1/auth (rate limited, no token), user endpoints under /v1
// (user access token), and device endpoints under /v1/device (device
// id+secret for token issuance, device access token for ingestion).
func Register(e *echo.Echo, d Deps) {
	// Liveness probe, outside every auth realm.
	e.GET("/healthz", d.Health.Check)

	// Credential endpoints sit behind the brute-force limiter. The
	// device token endpoint takes credentials too, so it shares the
	// shield.
	limited := middleware.AuthRateLimit(d.RateLimit, d.Redis)

	auth := e.Group("/v1/auth", limited)
	auth.POST("/register", d.Auth.Register)
	auth.POST("/login", d.Auth.Login)
	auth.POST("/refresh", d.Auth.Refresh)

	e.POST("/v1/device/token", d.DeviceData.Token, limited)

	// User realm: everything here requires a valid user access token
	// and a live account.
	userAuth := middleware.UserAuth(d.Codec, d.Users)

	e.POST("/v1/auth/logout", d.Auth.Logout, userAuth)
	e.GET("/v1/auth/me", d.Auth.Me, userAuth)

	devices := e.Group("/v1/devices", userAuth)
	devices.GET("/categories", d.Devices.Categories)
	devices.GET("", d.Devices.List)
	devices.POST("", d.Devices.Create)
	devices.GET("/:id", d.Devices.Get)
	devices.PATCH("/:id", d.Devices.Update)
	devices.DELETE("/:id", d.Devices.Delete)
	devices.POST("/:id/deactivate", d.Devices.Deactivate)
	devices.POST("/:id/rotate-secret", d.Devices.RotateSecret)
	devices.POST("/:id/invalidate-tokens", d.Devices.InvalidateTokens)
	devices.GET("/:id/readings", d.Devices.Readings)
	devices.GET("/:id/readings/meta", d.Devices.ReadingsMeta)

	// Device realm: ingestion authenticates with the short-lived
	// device access token minted by /v1/device/token.
	e.POST("/v1/device/readings", d.DeviceData.Ingest, middleware.DeviceAuth(d.DeviceSvc))

	// Admin realm.
	admin := e.Group("/v1/admin", userAuth, middleware.RequireAdmin())
	admin.GET("/users", d.Admin.ListUsers)
	admin.POST("/users", d.Admin.CreateUser)
	admin.GET("/users/:id", d.Admin.GetUser)
	admin.PUT("/users/:id", d.Admin.UpdateUser)
	admin.DELETE("/users/:id", d.Admin.DeleteUser)
	admin.GET("/security-events", d.Admin.ListEvents)
	admin.POST("/security-events/simulate", d.Admin.SimulateEvent)
}
