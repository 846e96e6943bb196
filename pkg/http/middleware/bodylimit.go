package middleware

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// BodyLimit rejects request bodies above limit ("8M", "512K"). An empty limit disables the check.
func BodyLimit(limit string) echo.MiddlewareFunc {
	if limit == "" {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return echomw.BodyLimit(limit)
}
