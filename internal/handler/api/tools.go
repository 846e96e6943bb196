package api

import (
	"errors"
	"io"

	"github.com/labstack/echo/v4"

	"FinChat/internal/domain/models"
	domsvc "FinChat/internal/domain/service"
	"FinChat/internal/services/backend"
	"FinChat/internal/usecase"
	xhttp "FinChat/pkg/http"
	"FinChat/pkg/logger"
)

// ToolsHandler runs assistant tools on demand, mainly for the chat UI's refresh buttons.
type ToolsHandler struct {
	lgr     *logger.Logger
	invoker *usecase.ToolInvoker
	backend domsvc.ToolBackend
}

func NewToolsHandler(lgr *logger.Logger, invoker *usecase.ToolInvoker, backend domsvc.ToolBackend) *ToolsHandler {
	return &ToolsHandler{lgr: lgr, invoker: invoker, backend: backend}
}

func (h *ToolsHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/tools/:name", h.Invoke)
	e.POST("/api/viet/macro/trendpoint", h.TrendPoint)
}

// Invoke takes the tool's arguments as the raw JSON body.
func (h *ToolsHandler) Invoke(c echo.Context) error {
	tool := c.Param("name")
	args, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("cannot read request body"))
	}

	res, err := h.invoker.Invoke(c.Request().Context(), userID(c), tool, args)
	if err != nil {
		switch {
		case errors.Is(err, backend.ErrUnknownTool):
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("unknown tool: %s", tool))
		case errors.Is(err, backend.ErrInvalidArgs), errors.Is(err, usecase.ErrBadToolArgs):
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		case errors.Is(err, usecase.ErrUserRequired):
			return xhttp.AppErrorResponse(c, xhttp.UnauthorizedError("未登入"))
		}
		h.lgr.Error("tool invoke", logger.String("tool", tool), logger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ToolsHandler) TrendPoint(c echo.Context) error {
	req := &models.TrendPointRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	trend, err := h.backend.TrendPoints(c.Request().Context(), *req)
	if err != nil {
		h.lgr.Warn("trendpoint",
			logger.String("indicator", req.Indicator),
			logger.String("range", req.Range),
			logger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadGatewayError("無法載入新資料，請稍後再試").WithError(err))
	}
	return xhttp.SuccessResponse(c, models.TrendPointResponse{Trend: trend})
}
