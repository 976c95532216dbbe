package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that allows the request only when the
// authenticated role matches one of roles (case-insensitive).
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			has := RoleFromContext(c.Request().Context())
			for _, required := range roles {
				if strings.EqualFold(has, required) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// RequireSelfOrRole allows the request when the path parameter param equals
// the authenticated subject, or when the caller has one of roles.
func RequireSelfOrRole(param string, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if c.Param(param) != "" && c.Param(param) == UserIDFromContext(ctx) {
				return next(c)
			}
			has := RoleFromContext(ctx)
			for _, required := range roles {
				if strings.EqualFold(has, required) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "access denied")
		}
	}
}
