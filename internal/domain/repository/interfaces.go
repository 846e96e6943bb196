package repository

import (
	"context"
	"errors"

	"FinChat/internal/domain/models"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrFileExists   = errors.New("file already exists")
)

// FileStore persists uploaded document records. Filenames are unique per user.
type FileStore interface {
	Insert(ctx context.Context, rec *models.FileRecord) error
	UpdateParseResult(ctx context.Context, userID, filename string, res models.ParseResult) error
	ListByUser(ctx context.Context, userID string) ([]*models.FileRecord, error) // newest first
	Get(ctx context.Context, userID, filename string) (*models.FileRecord, error)
	Delete(ctx context.Context, userID, filename string) error
	Close() error
}

// ParsedStore keeps the entity rows of parsed results for history queries.
type ParsedStore interface {
	Init(ctx context.Context) error
	StoreBatch(ctx context.Context, envs []*models.ParsedEnvelope) error
	Health(ctx context.Context) error
	Close() error
}

// Publisher forwards parsed envelopes downstream, keyed by chat.
type Publisher interface {
	Publish(ctx context.Context, env *models.ParsedEnvelope) error
	PublishBatch(ctx context.Context, envs []*models.ParsedEnvelope) error
	Close() error
}

// Broadcaster pushes envelopes to live subscribers. It must not block.
type Broadcaster interface {
	Broadcast(env *models.ParsedEnvelope)
}

type Metrics interface {
	RecordParse(kind string, structured bool, entities int)
	RecordToolCall(tool string, failed bool, seconds float64)
	RecordMessageSent(sink, kind string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
