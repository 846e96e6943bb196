package api

import (
	"github.com/labstack/echo/v4"

	"FinChat/internal/service/realtime"
	"FinChat/pkg/logger"
)

// ResultsStreamHandler streams parsed tool results. ?chat_id= narrows the stream to one chat.
type ResultsStreamHandler struct {
	lgr *logger.Logger
	hub *realtime.Hub
}

func NewResultsStreamHandler(lgr *logger.Logger, hub *realtime.Hub) *ResultsStreamHandler {
	return &ResultsStreamHandler{lgr: lgr, hub: hub}
}

func (h *ResultsStreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/results", h.Stream)
}

func (h *ResultsStreamHandler) Stream(c echo.Context) error {
	if err := h.hub.Serve(c.Response(), c.Request(), c.QueryParam("chat_id")); err != nil {
		// the upgrader has already written the error response
		h.lgr.Warn("websocket upgrade", logger.Error(err))
	}
	return nil
}
