package service

import (
	"context"
	"encoding/json"

	"FinChat/internal/domain/models"
)

// ToolBackend executes the assistant's data tools against the analytics backend.
type ToolBackend interface {
	Call(ctx context.Context, tool string, args json.RawMessage) (models.ToolResult, error)
	TrendPoints(ctx context.Context, req models.TrendPointRequest) ([]models.MacroTrendValue, error)
	ParseDocument(ctx context.Context, path string) (string, error)
}

// DocumentExtractor turns a stored document into plain text.
type DocumentExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}
