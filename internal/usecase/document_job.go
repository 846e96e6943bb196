package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"FinChat/internal/domain/models"
	domrepo "FinChat/internal/domain/repository"
	domsvc "FinChat/internal/domain/service"
	"FinChat/internal/services/documents"
	"FinChat/pkg/logger"
	"FinChat/pkg/queue"
)

// DocumentParseJob extracts a stored file's text and saves it on the file record.
// Types the local extractor does not handle go to the backend parser.
type DocumentParseJob struct {
	lgr       *logger.Logger
	store     domrepo.FileStore
	extractor domsvc.DocumentExtractor
	backend   domsvc.ToolBackend
	metrics   domrepo.Metrics
	dir       string
}

func NewDocumentParseJob(
	lgr *logger.Logger,
	store domrepo.FileStore,
	extractor domsvc.DocumentExtractor,
	backend domsvc.ToolBackend,
	metrics domrepo.Metrics,
	dir string,
) *DocumentParseJob {
	return &DocumentParseJob{
		lgr:       lgr.With(logger.String("job", models.JobParseDocument)),
		store:     store,
		extractor: extractor,
		backend:   backend,
		metrics:   metrics,
		dir:       dir,
	}
}

func (j *DocumentParseJob) Type() string { return models.JobParseDocument }

func (j *DocumentParseJob) Handle(ctx context.Context, payload json.RawMessage) error {
	msg, err := queue.Decode[models.ParseDocumentJob](payload)
	if err != nil {
		j.metrics.RecordError("document_job_decode")
		return err
	}
	return j.Parse(ctx, msg.UserID, msg.Filename)
}

// Parse runs extraction for one file and stores the trimmed text.
func (j *DocumentParseJob) Parse(ctx context.Context, userID, filename string) error {
	start := time.Now()
	path, err := uploadPath(j.dir, userID, filename)
	if err != nil {
		return err
	}
	if _, err := j.store.Get(ctx, userID, filename); err != nil {
		return err
	}

	text, err := j.extractor.Extract(ctx, path)
	if errors.Is(err, documents.ErrUnsupportedType) {
		text, err = j.remote(ctx, path)
	}
	if err != nil {
		j.metrics.RecordError("document_parse")
		return fmt.Errorf("parse %s: %w", filename, err)
	}

	if err := j.store.UpdateParseResult(ctx, userID, filename, models.ParseResult{Text: strings.TrimSpace(text)}); err != nil {
		return fmt.Errorf("store parse result: %w", err)
	}
	j.metrics.RecordLatency("document_parse", time.Since(start).Seconds())
	j.lgr.Info("document parsed",
		logger.String("user", userID),
		logger.String("file", filename),
		logger.Int("chars", len([]rune(text))))
	return nil
}

// remote hands the backend an absolute path; it shares the upload volume.
func (j *DocumentParseJob) remote(ctx context.Context, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	j.lgr.Debug("falling back to backend parser", logger.String("path", abs))
	return j.backend.ParseDocument(ctx, abs)
}

var _ queue.Job = (*DocumentParseJob)(nil)
