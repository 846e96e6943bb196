package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"FinChat/internal/domain/models"
	domrepo "FinChat/internal/domain/repository"
	"FinChat/internal/usecase"
	xhttp "FinChat/pkg/http"
	"FinChat/pkg/logger"
)

// FilesHandler serves the files page and the file tools. Every route needs X-User-ID.
type FilesHandler struct {
	lgr   *logger.Logger
	files *usecase.FileService
}

func NewFilesHandler(lgr *logger.Logger, files *usecase.FileService) *FilesHandler {
	return &FilesHandler{lgr: lgr, files: files}
}

func (h *FilesHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/files", RequireUser)
	g.GET("", h.List)
	g.POST("/manual", h.ManualCreate)
	g.POST("/upload", h.Upload)
	g.POST("/parse", h.Parse)
	g.DELETE("/:name", h.Delete)
	g.GET("/tools/list", h.ListText)
	g.POST("/tools/read", h.ReadText)
}

func (h *FilesHandler) List(c echo.Context) error {
	files, err := h.files.List(c.Request().Context(), userID(c))
	if err != nil {
		return h.fail(c, "list files", err)
	}
	return xhttp.ListResponse(c, files, int64(len(files)))
}

func (h *FilesHandler) ManualCreate(c echo.Context) error {
	req := &models.ManualFileRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rec, err := h.files.ManualCreate(c.Request().Context(), userID(c), req.Filename, req.Content)
	if err != nil {
		return h.fail(c, "manual create", err)
	}
	return xhttp.CreatedResponse(c, rec)
}

// Upload expects a multipart form with the document in "file".
func (h *FilesHandler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("No file uploaded"))
	}
	f, err := fh.Open()
	if err != nil {
		return h.fail(c, "open upload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return h.fail(c, "read upload", err)
	}
	rec, err := h.files.Upload(c.Request().Context(), userID(c), fh.Filename, fh.Header.Get(echo.HeaderContentType), data)
	if err != nil {
		return h.fail(c, "upload", err)
	}
	return xhttp.CreatedResponse(c, rec)
}

func (h *FilesHandler) Parse(c echo.Context) error {
	req := &models.FileNameRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := h.files.RequestParse(c.Request().Context(), userID(c), req.Name); err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) {
			detail, ok := se.Detail()
			if !ok {
				detail = "解析失敗"
			}
			return xhttp.AppErrorResponse(c, xhttp.BadGatewayError(detail).WithError(err))
		}
		return h.fail(c, "parse file", err)
	}
	return xhttp.DataResponse(c, http.StatusAccepted, map[string]string{"name": req.Name})
}

func (h *FilesHandler) Delete(c echo.Context) error {
	if err := h.files.Delete(c.Request().Context(), userID(c), c.Param("name")); err != nil {
		return h.fail(c, "delete file", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *FilesHandler) ListText(c echo.Context) error {
	text, err := h.files.ListFilesText(c.Request().Context(), userID(c))
	if err != nil {
		return h.fail(c, "list files text", err)
	}
	return xhttp.SuccessResponse(c, models.ToolResult{Tool: models.ToolListUploadedFiles, Text: text})
}

func (h *FilesHandler) ReadText(c echo.Context) error {
	req := &models.ReadFilesArgs{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	text, err := h.files.ReadFilesText(c.Request().Context(), userID(c), req.Filenames)
	if err != nil {
		return h.fail(c, "read files text", err)
	}
	return xhttp.SuccessResponse(c, models.ToolResult{Tool: models.ToolReadUploadedFiles, Text: text})
}

// fail maps file errors onto HTTP statuses; anything unexpected is logged and becomes a 500.
func (h *FilesHandler) fail(c echo.Context, op string, err error) error {
	var fe *usecase.FileError
	if errors.As(err, &fe) {
		switch {
		case errors.Is(err, domrepo.ErrFileExists):
			return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_FILE_EXISTS", "filename", fe.Message, http.StatusBadRequest))
		case errors.Is(err, usecase.ErrFileTooLarge):
			return xhttp.AppErrorResponse(c, xhttp.PayloadTooLargeError(fe.Message))
		case errors.Is(err, usecase.ErrFileType):
			return xhttp.AppErrorResponse(c, xhttp.UnsupportedMediaTypeError(fe.Message))
		default:
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(fe.Message))
		}
	}
	if errors.Is(err, domrepo.ErrFileNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("找不到檔案"))
	}

	h.lgr.Error(fmt.Sprintf("%s failed", op), logger.String("user", userID(c)), logger.Error(err))
	return xhttp.AppErrorResponse(c, err)
}
