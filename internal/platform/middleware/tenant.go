package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/arc-self/access-core/internal/apperror"
)

// TenantScope extracts the :orgId path parameter, validates it is a UUID,
// and stores it on the request context under OrgIDKey. Every attempt and
// command route in internal/handler is scoped by organization (spec §1) —
// this middleware must run on all of them so downstream code never has to
// re-validate the tenant boundary.
func TenantScope() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			orgID := c.Param("orgId")
			if orgID == "" {
				return apperror.WriteHTTP(c, apperror.Validation("orgId path parameter is required"))
			}
			if _, err := uuid.Parse(orgID); err != nil {
				return apperror.WriteHTTP(c, apperror.Validation("orgId must be a UUID"))
			}

			ctx := WithOrgID(c.Request().Context(), orgID)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
