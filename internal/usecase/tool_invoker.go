package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"FinChat/internal/domain/models"
	domrepo "FinChat/internal/domain/repository"
	domsvc "FinChat/internal/domain/service"
	xhttp "FinChat/pkg/http"
)

var (
	ErrUserRequired = errors.New("user id required")
	ErrBadToolArgs  = errors.New("invalid tool arguments")
)

// ToolInvoker runs one assistant tool and returns its parsed result.
type ToolInvoker struct {
	backend domsvc.ToolBackend
	results *ToolResultService
	files   *FileService
	metrics domrepo.Metrics
}

func NewToolInvoker(backend domsvc.ToolBackend, results *ToolResultService, files *FileService, metrics domrepo.Metrics) *ToolInvoker {
	return &ToolInvoker{backend: backend, results: results, files: files, metrics: metrics}
}

// Invoke calls tool with JSON args. The file tools need userID; backend tools ignore it.
func (i *ToolInvoker) Invoke(ctx context.Context, userID, tool string, args json.RawMessage) (*models.ToolCallResponse, error) {
	start := time.Now()

	var (
		res models.ToolResult
		err error
	)
	switch tool {
	case models.ToolListUploadedFiles, models.ToolReadUploadedFiles:
		res, err = i.fileTool(ctx, userID, tool, args)
	default:
		res, err = i.backend.Call(ctx, tool, args)
	}
	if err != nil {
		i.metrics.RecordError("tool_call")
		return nil, err
	}
	i.metrics.RecordToolCall(tool, res.Failed, time.Since(start).Seconds())

	parsed := i.results.ParseTool(ctx, tool, res.Text)
	return &models.ToolCallResponse{
		Tool:   tool,
		Kind:   parsed.Kind(),
		Failed: res.Failed,
		Result: parsed,
	}, nil
}

func (i *ToolInvoker) fileTool(ctx context.Context, userID, tool string, args json.RawMessage) (models.ToolResult, error) {
	if userID == "" {
		return models.ToolResult{}, ErrUserRequired
	}

	var (
		text string
		err  error
	)
	if tool == models.ToolListUploadedFiles {
		text, err = i.files.ListFilesText(ctx, userID)
	} else {
		var a models.ReadFilesArgs
		if len(args) > 0 && string(args) != "null" {
			if err := json.Unmarshal(args, &a); err != nil {
				return models.ToolResult{}, fmt.Errorf("%w: %v", ErrBadToolArgs, err)
			}
		}
		if err := xhttp.ValidateStruct(&a); err != nil {
			return models.ToolResult{}, fmt.Errorf("%w: %v", ErrBadToolArgs, err)
		}
		text, err = i.files.ReadFilesText(ctx, userID, a.Filenames)
	}
	if err != nil {
		return models.ToolResult{}, fmt.Errorf("%s: %w", tool, err)
	}
	return models.ToolResult{Tool: tool, Text: text}, nil
}
