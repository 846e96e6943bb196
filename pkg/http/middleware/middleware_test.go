package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"FinChat/pkg/logger"
)

func newEcho() *echo.Echo {
	e := echo.New()
	lgr := logger.NewNop()
	e.Use(Recover(lgr), RequestLogging(lgr), Metrics())
	e.Use(CORS(CORSConfig{
		AllowOrigins: []string{"https://chat.example"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"X-User-ID"},
	}))
	e.GET("/ok", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/panic", func(c echo.Context) error { panic("boom") })
	return e
}

func TestRecover_ReturnsEnvelope(t *testing.T) {
	e := newEcho()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":500`)
}

func TestCORS(t *testing.T) {
	e := newEcho()

	req := httptest.NewRequest(http.MethodOptions, "/ok", nil)
	req.Header.Set("Origin", "https://chat.example")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "https://chat.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "X-User-ID", rec.Header().Get("Access-Control-Allow-Headers"))

	req = httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOriginAllowed(t *testing.T) {
	ok, wildcard := originAllowed(nil, "x")
	assert.True(t, ok)
	assert.True(t, wildcard)

	ok, _ = originAllowed([]string{"a"}, "b")
	assert.False(t, ok)
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "4xx", statusClass(429))
	assert.Equal(t, "5xx", statusClass(503))
}
