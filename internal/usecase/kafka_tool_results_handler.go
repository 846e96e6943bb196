package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"FinChat/internal/domain/models"
	domrepo "FinChat/internal/domain/repository"
	"FinChat/internal/middleware"
	pkgkafka "FinChat/pkg/kafka"
)

// KafkaToolResultsHandler consumes finished tool calls, parses them and hands the
// envelope to the delivery pipeline.
type KafkaToolResultsHandler struct {
	topic    string
	results  *ToolResultService
	pipeline middleware.Proc
	metrics  domrepo.Metrics
	now      func() time.Time
}

func NewKafkaToolResultsHandler(topic string, results *ToolResultService, pipeline middleware.Proc, metrics domrepo.Metrics) *KafkaToolResultsHandler {
	return &KafkaToolResultsHandler{
		topic:    topic,
		results:  results,
		pipeline: pipeline,
		metrics:  metrics,
		now:      time.Now,
	}
}

func (h *KafkaToolResultsHandler) Topic() string { return h.topic }

// incoming message schema: {id, chat_id, tool, result, ts}
func (h *KafkaToolResultsHandler) Handle(ctx context.Context, b []byte) error {
	var m models.ToolResultMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.ChatID == "" || m.Tool == "" {
		h.metrics.RecordError("consumer_invalid")
		return errors.New("tool result message needs chat_id and tool")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if !m.TS.IsZero() {
		h.metrics.RecordLatency("tool_result_e2e", h.now().Sub(m.TS).Seconds())
	}

	env, err := h.Envelope(ctx, m)
	if err != nil {
		h.metrics.RecordError("consumer_encode")
		return err
	}
	return h.pipeline.Process(ctx, env)
}

// Envelope parses one tool result into its delivery form.
func (h *KafkaToolResultsHandler) Envelope(ctx context.Context, m models.ToolResultMessage) (*models.ParsedEnvelope, error) {
	res := h.results.ParseTool(ctx, m.Tool, m.Result)
	payload, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode parsed result: %w", err)
	}
	return &models.ParsedEnvelope{
		ID:         m.ID,
		ChatID:     m.ChatID,
		Tool:       m.Tool,
		Kind:       res.Kind(),
		Structured: res.Structured(),
		Result:     res,
		Payload:    payload,
		ParsedAt:   h.now().UTC(),
	}, nil
}

var _ pkgkafka.MessageHandler = (*KafkaToolResultsHandler)(nil)
