package ratelimit

import (
	"strings"

	"github.com/labstack/echo/v4"

	xhttp "FinChat/pkg/http"
)

type Config struct {
	Capacity float64
	Refill   float64
	// KeyFunc picks the bucket; defaults to the caller's IP.
	KeyFunc func(echo.Context) string
	Skipper func(echo.Context) bool
}

// APIOnly limits /api/* and lets everything else through.
func APIOnly(c echo.Context) bool {
	return !strings.HasPrefix(c.Request().URL.Path, "/api/")
}

// Middleware rejects requests with 429 once the caller's bucket is empty.
func Middleware(l *Limiter, cfg Config) echo.MiddlewareFunc {
	key := cfg.KeyFunc
	if key == nil {
		key = func(c echo.Context) string { return c.RealIP() }
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			if !l.Allow(key(c), cfg.Capacity, cfg.Refill) {
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many requests"))
			}
			return next(c)
		}
	}
}
