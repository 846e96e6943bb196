package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"FinChat/internal/domain/models"
	"FinChat/internal/usecase"
	xhttp "FinChat/pkg/http"
	"FinChat/pkg/logger"
)

// ParseHandler exposes the tool-result parsers over HTTP.
type ParseHandler struct {
	lgr     *logger.Logger
	results *usecase.ToolResultService
}

func NewParseHandler(lgr *logger.Logger, results *usecase.ToolResultService) *ParseHandler {
	return &ParseHandler{lgr: lgr, results: results}
}

func (h *ParseHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/parse")
	g.GET("/kinds", h.Kinds)
	g.POST("/:kind", h.Parse)
}

type kindInfo struct {
	Kind  models.ToolKind `json:"kind"`
	Tools []string        `json:"tools"`
}

func (h *ParseHandler) Kinds(c echo.Context) error {
	kinds := models.ParsedKinds()
	out := make([]kindInfo, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, kindInfo{Kind: k, Tools: models.ToolsForKind(k)})
	}
	return xhttp.SuccessResponse(c, out)
}

// Parse accepts either a kind ("news") or a tool name ("searchVietNews") in the path.
func (h *ParseHandler) Parse(c echo.Context) error {
	kind, ok := models.ResolveKind(c.Param("kind"))
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_UNKNOWN_KIND", "kind",
			"unknown tool result kind: "+c.Param("kind"), http.StatusBadRequest))
	}

	req := &models.ParseRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.results.Parse(c.Request().Context(), kind, req.Text)
	if err != nil {
		h.lgr.Error("parse tool result", logger.String("kind", string(kind)), logger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}
