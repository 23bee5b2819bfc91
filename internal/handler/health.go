package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthHandler answers liveness probes. The database ping runs with a
// short deadline so a wedged pool cannot hang the probe.
type HealthHandler struct {
	db *sql.DB
}

func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check handles GET /healthz.
func (h *HealthHandler) Check(c echo.Context) error {
	status := "ok"
	dbStatus := "ok"
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			status = "degraded"
			dbStatus = "unreachable"
		}
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, echo.Map{
		"status":   status,
		"database": dbStatus,
		"time":     time.Now().UTC(),
	})
}
