package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"FinChat/pkg/logger"
)

// RequestLogging writes one structured line per request. 5xx responses log at error level, 4xx at warn.
func RequestLogging(lgr *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Let echo render the error first so the status below is the one the client saw.
				c.Error(err)
			}

			req, res := c.Request(), c.Response()
			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("route", routeLabel(c)),
				logger.String("uri", req.RequestURI),
				logger.String("remote", c.RealIP()),
				logger.Int("status", res.Status),
				logger.Int64("bytes", res.Size),
				logger.Duration("latency_ms", time.Since(start)),
			}
			if err != nil {
				fields = append(fields, logger.Error(err))
			}

			switch {
			case res.Status >= 500:
				lgr.Error("http request", fields...)
			case res.Status >= 400:
				lgr.Warn("http request", fields...)
			default:
				lgr.Debug("http request", fields...)
			}
			return nil
		}
	}
}
