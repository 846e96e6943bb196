package usecase

import (
	"context"
	"errors"
	"time"

	"FinChat/internal/domain/models"
	domrepo "FinChat/internal/domain/repository"
	"FinChat/internal/services/extract"
	"FinChat/pkg/cache"
	"FinChat/pkg/logger"
)

// ToolResultService parses tool text, memoising results by content hash.
type ToolResultService struct {
	lgr     *logger.Logger
	cache   cache.Service
	ttl     time.Duration
	metrics domrepo.Metrics
}

// NewToolResultService builds the service. c may be nil to disable caching.
func NewToolResultService(lgr *logger.Logger, c cache.Service, ttl time.Duration, metrics domrepo.Metrics) *ToolResultService {
	return &ToolResultService{
		lgr:     lgr.With(logger.String("component", "tool_results")),
		cache:   c,
		ttl:     ttl,
		metrics: metrics,
	}
}

// Parse sanitizes text and runs the parser for kind. The only error is an unknown kind;
// cache failures are logged and parsing proceeds.
func (s *ToolResultService) Parse(ctx context.Context, kind models.ToolKind, text string) (models.ParsedResult, error) {
	text = extract.Sanitize(text)
	key := cacheKey(kind, text)

	if res, ok := s.cached(ctx, kind, key); ok {
		s.metrics.RecordParse(string(kind), res.Structured(), res.EntityCount())
		return res, nil
	}

	start := time.Now()
	res, err := extract.Parse(kind, text)
	if err != nil {
		s.metrics.RecordError("parse_unknown_kind")
		return nil, err
	}
	s.metrics.RecordLatency("parse", time.Since(start).Seconds())
	s.metrics.RecordParse(string(kind), res.Structured(), res.EntityCount())

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, res, s.ttl); err != nil {
			s.lgr.Warn("parsed cache set", logger.String("key", key), logger.Error(err))
		}
	}
	return res, nil
}

// ParseTool parses a named tool's output. Tools without a parser give a RawResult.
func (s *ToolResultService) ParseTool(ctx context.Context, tool, text string) models.ParsedResult {
	kind, ok := models.KindForTool(tool)
	if !ok {
		return extract.ParseTool(tool, text)
	}
	res, err := s.Parse(ctx, kind, text)
	if err != nil {
		// unreachable for a mapped tool
		return extract.ParseTool(tool, text)
	}
	return res
}

func (s *ToolResultService) cached(ctx context.Context, kind models.ToolKind, key string) (models.ParsedResult, bool) {
	if s.cache == nil {
		return nil, false
	}
	var data []byte
	if err := s.cache.Get(ctx, key, &data); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.lgr.Warn("parsed cache get", logger.String("key", key), logger.Error(err))
		}
		return nil, false
	}
	res, err := extract.Decode(kind, data)
	if err != nil {
		s.lgr.Warn("parsed cache entry unreadable", logger.String("key", key), logger.Error(err))
		return nil, false
	}
	return res, true
}

func cacheKey(kind models.ToolKind, text string) string {
	return cache.GenerateKey("parsed", kind, cache.HashKey(text))
}
