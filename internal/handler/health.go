package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Health reports liveness — no dependency checks, matching the
// out-of-scope "readiness probes" boundary (spec §1).
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Metrics adapts promhttp's handler into an echo.HandlerFunc.
func Metrics() echo.HandlerFunc {
	h := promhttp.Handler()
	return echo.WrapHandler(h)
}
