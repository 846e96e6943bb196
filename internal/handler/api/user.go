package api

import (
	"strings"

	"github.com/labstack/echo/v4"

	xhttp "FinChat/pkg/http"
)

// HeaderUserID carries the signed-in user, set by the session layer in front of this service.
const HeaderUserID = "X-User-ID"

const userKey = "user_id"

// RequireUser rejects requests without a user id with 401.
func RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := strings.TrimSpace(c.Request().Header.Get(HeaderUserID))
		if id == "" {
			return xhttp.AppErrorResponse(c, xhttp.UnauthorizedError("未登入"))
		}
		c.Set(userKey, id)
		return next(c)
	}
}

// userID returns the caller's id, or "" when the route does not require one.
func userID(c echo.Context) string {
	if id, ok := c.Get(userKey).(string); ok {
		return id
	}
	return strings.TrimSpace(c.Request().Header.Get(HeaderUserID))
}
