package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"FinChat/internal/domain/models"
	drepo "FinChat/internal/domain/repository"
	"FinChat/internal/middleware"
)

const (
	SinkKafka      = "kafka"
	SinkClickHouse = "clickhouse"
)

// ResultSink writes parsed envelopes to the configured backends, then pushes them to live
// subscribers. sink.type may name one backend or both ("kafka,clickhouse").
type ResultSink struct {
	pub     drepo.Publisher
	store   drepo.ParsedStore
	hub     drepo.Broadcaster
	metrics drepo.Metrics
	sinks   []string
	timeout time.Duration
}

func NewResultSink(
	sinkType string,
	pub drepo.Publisher,
	store drepo.ParsedStore,
	hub drepo.Broadcaster,
	metrics drepo.Metrics,
) (*ResultSink, error) {
	sinks, err := ParseSinks(sinkType)
	if err != nil {
		return nil, err
	}
	for _, s := range sinks {
		if s == SinkKafka && pub == nil {
			return nil, fmt.Errorf("sink %q needs a publisher", s)
		}
		if s == SinkClickHouse && store == nil {
			return nil, fmt.Errorf("sink %q needs a parsed store", s)
		}
	}
	return &ResultSink{pub: pub, store: store, hub: hub, metrics: metrics, sinks: sinks}, nil
}

// WithTimeout bounds each batch write; zero leaves it to the caller's context.
func (p *ResultSink) WithTimeout(d time.Duration) *ResultSink {
	p.timeout = d
	return p
}

// ParseSinks splits a sink.type value into known backend names.
func ParseSinks(sinkType string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, s := range strings.Split(sinkType, ",") {
		s = strings.ToLower(strings.TrimSpace(s))
		switch s {
		case "":
			continue
		case SinkKafka, SinkClickHouse:
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		default:
			return nil, fmt.Errorf("unknown sink: %s", s)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no sink configured")
	}
	return out, nil
}

// Process writes one envelope to every backend. The hub only sees envelopes that were stored,
// so a retried envelope is broadcast once.
func (p *ResultSink) Process(ctx context.Context, env *models.ParsedEnvelope) error {
	if env == nil {
		return fmt.Errorf("envelope is nil")
	}
	return p.ProcessBatch(ctx, []*models.ParsedEnvelope{env})
}

func (p *ResultSink) ProcessBatch(ctx context.Context, envs []*models.ParsedEnvelope) error {
	if len(envs) == 0 {
		return nil
	}

	start := time.Now()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range p.sinks {
		sink := sink
		g.Go(func() error {
			switch sink {
			case SinkKafka:
				return p.pub.PublishBatch(gctx, envs)
			case SinkClickHouse:
				return p.store.StoreBatch(gctx, envs)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process parsed results: %w", err)
	}

	for _, env := range envs {
		for _, sink := range p.sinks {
			p.metrics.RecordMessageSent(sink, string(env.Kind))
		}
		if p.hub != nil {
			p.hub.Broadcast(env)
			p.metrics.RecordMessageSent("websocket", string(env.Kind))
		}
	}
	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	return nil
}

var _ middleware.Proc = (*ResultSink)(nil)
