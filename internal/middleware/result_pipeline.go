package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FinChat/internal/domain/models"
	domrepo "FinChat/internal/domain/repository"
	"FinChat/pkg/logger"
)

var ErrBufferFull = errors.New("pipeline buffer full")

// Proc is the downstream the pipeline delivers to.
type Proc interface {
	Process(ctx context.Context, env *models.ParsedEnvelope) error
}

// ResultPipeline sits between the tool-result consumer and the sinks. It validates envelopes,
// throttles each chat, and buffers what the sink could not take so a background flusher can retry.
type ResultPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	lgr      *logger.Logger
	maxRPS   int
	bufSize  int
	retryMin time.Duration
	retryMax time.Duration
	now      func() time.Time

	bufCh  chan *models.ParsedEnvelope
	stopCh chan struct{}
	doneCh chan struct{}

	pruneEvery time.Duration
	idleAfter  time.Duration

	mu       sync.Mutex
	started  bool
	lastSeen map[string]time.Time // per-chat last (or reserved) delivery slot
}

type PipelineOption func(*ResultPipeline)

// WithMaxRPS caps deliveries per second per chat. Bursts above it are deferred, not dropped.
func WithMaxRPS(n int) PipelineOption {
	return func(p *ResultPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

func WithBufferSize(n int) PipelineOption {
	return func(p *ResultPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithRetryBackoff bounds the flusher's wait after a failed delivery.
func WithRetryBackoff(min, max time.Duration) PipelineOption {
	return func(p *ResultPipeline) {
		if min > 0 && max >= min {
			p.retryMin, p.retryMax = min, max
		}
	}
}

func NewResultPipeline(lgr *logger.Logger, proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *ResultPipeline {
	p := &ResultPipeline{
		proc:     proc,
		metrics:  metrics,
		lgr:      lgr.With(logger.String("component", "result_pipeline")),
		maxRPS:   20,
		bufSize:  1000,
		retryMin: 50 * time.Millisecond,
		retryMax: 2 * time.Second,
		now:      time.Now,
		lastSeen: make(map[string]time.Time),

		pruneEvery: time.Minute,
		idleAfter:  time.Minute,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.ParsedEnvelope, p.bufSize)
	return p
}

// Start launches the flusher. ctx bounds deliveries made by the flusher. A stopped pipeline may be
// started again.
func (p *ResultPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stop, done := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.flush(ctx, stop, done)
}

// Stop ends the flusher after one last delivery attempt for anything still buffered.
// Throttling does not apply to that last attempt.
func (p *ResultPipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	stop, done := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stop)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pipeline stop: %w", ctx.Err())
	}
}

// Process delivers env now, or buffers it when the chat is over its rate or the sink fails.
// It returns an error only for invalid envelopes or a full buffer.
func (p *ResultPipeline) Process(ctx context.Context, env *models.ParsedEnvelope) error {
	start := p.now()
	if err := validateEnvelope(env); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}

	if !p.allow(env.ChatID, start) {
		p.metrics.RecordError("pipeline_throttle")
		return p.buffer(env)
	}

	if err := p.proc.Process(ctx, env); err != nil {
		p.metrics.RecordError("pipeline_process")
		p.lgr.Warn("sink failed, buffering",
			logger.String("id", env.ID),
			logger.String("chat_id", env.ChatID),
			logger.Error(err))
		return p.buffer(env)
	}
	p.metrics.RecordLatency("pipeline_process", p.now().Sub(start).Seconds())
	return nil
}

// Buffered reports how many envelopes wait for the flusher.
func (p *ResultPipeline) Buffered() int {
	return len(p.bufCh)
}

func (p *ResultPipeline) buffer(env *models.ParsedEnvelope) error {
	select {
	case p.bufCh <- env:
		return nil
	default:
		p.metrics.RecordError("pipeline_buffer_full")
		return fmt.Errorf("%w: %s", ErrBufferFull, env.ID)
	}
}

func (p *ResultPipeline) flush(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	prune := time.NewTicker(p.pruneEvery)
	defer prune.Stop()

	backoff := p.retryMin
	for {
		select {
		case <-stop:
			p.drain(ctx)
			return
		case <-prune.C:
			p.Prune(p.idleAfter)
		case env := <-p.bufCh:
			// the chat's next free slot is reserved before waiting, so later
			// envelopes of the same chat queue up behind it
			if delay := p.reserve(env.ChatID, p.now()); delay > 0 && !p.wait(stop, delay) {
				p.requeue(env)
				p.drain(ctx)
				return
			}
			if err := p.proc.Process(ctx, env); err != nil {
				p.metrics.RecordError("pipeline_flush")
				if !p.wait(stop, backoff) {
					p.requeue(env)
					p.drain(ctx)
					return
				}
				if backoff *= 2; backoff > p.retryMax {
					backoff = p.retryMax
				}
				p.requeue(env)
				continue
			}
			backoff = p.retryMin
		}
	}
}

// wait sleeps for d; false means Stop was called meanwhile.
func (p *ResultPipeline) wait(stop <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-stop:
		return false
	case <-t.C:
		return true
	}
}

func (p *ResultPipeline) requeue(env *models.ParsedEnvelope) {
	select {
	case p.bufCh <- env:
	default:
		p.metrics.RecordError("pipeline_buffer_drop")
		p.lgr.Error("dropping parsed result", logger.String("id", env.ID), logger.String("chat_id", env.ChatID))
	}
}

func (p *ResultPipeline) drain(ctx context.Context) {
	for {
		select {
		case env := <-p.bufCh:
			if err := p.proc.Process(ctx, env); err != nil {
				p.metrics.RecordError("pipeline_buffer_drop")
				p.lgr.Error("dropping parsed result on shutdown", logger.String("id", env.ID), logger.Error(err))
			}
		default:
			return
		}
	}
}

func (p *ResultPipeline) interval() time.Duration {
	return time.Second / time.Duration(p.maxRPS)
}

// allow takes the chat's slot when it is free. It never waits.
func (p *ResultPipeline) allow(chatID string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	last, ok := p.lastSeen[chatID]
	if ok && now.Sub(last) < p.interval() {
		return false
	}
	p.lastSeen[chatID] = now
	return true
}

// reserve takes the chat's next slot and returns how long until it opens.
func (p *ResultPipeline) reserve(chatID string, now time.Time) time.Duration {
	if p.maxRPS <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	slot := now
	if last, ok := p.lastSeen[chatID]; ok {
		if next := last.Add(p.interval()); next.After(now) {
			slot = next
		}
	}
	p.lastSeen[chatID] = slot
	return slot.Sub(now)
}

// Prune forgets chats whose last delivery is older than idle and returns how many were removed.
// idle below the throttle interval is raised to it.
func (p *ResultPipeline) Prune(idle time.Duration) int {
	if p.maxRPS > 0 && idle < p.interval() {
		idle = p.interval()
	}
	cutoff := p.now().Add(-idle)

	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for chat, last := range p.lastSeen {
		if last.Before(cutoff) {
			delete(p.lastSeen, chat)
			n++
		}
	}
	return n
}

// Tracked reports how many chats the throttle currently remembers.
func (p *ResultPipeline) Tracked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.lastSeen)
}

func validateEnvelope(env *models.ParsedEnvelope) error {
	if env == nil {
		return errors.New("envelope nil")
	}
	if env.ID == "" {
		return errors.New("envelope id empty")
	}
	if env.ChatID == "" {
		return errors.New("chat id empty")
	}
	if env.Kind == "" {
		return errors.New("kind empty")
	}
	if len(env.Payload) == 0 {
		return errors.New("payload empty")
	}
	return nil
}
