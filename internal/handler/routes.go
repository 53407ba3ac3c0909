package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/arc-self/access-core/internal/platform/middleware"
)

// Register mounts the access-core HTTP surface (spec §6) onto e.
func Register(e *echo.Echo, attempts *AttemptHandler, callbacks *CallbackHandler) {
	e.GET("/healthz", Health)
	e.GET("/metrics", Metrics())

	orgs := e.Group("/organizations/:orgId", middleware.TenantScope())
	orgs.POST("/attempts", attempts.Register)
	orgs.POST("/commands/:commandId/outcome", callbacks.ApplyOutcome)
}
