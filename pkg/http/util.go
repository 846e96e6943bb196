package http

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// QueryInt reads an integer query parameter, falling back to def when absent or invalid.
func QueryInt(c echo.Context, name string, def int) int {
	s := c.QueryParam(name)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// QueryList reads a comma separated query parameter. Empty items are dropped.
func QueryList(c echo.Context, name string) []string {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
