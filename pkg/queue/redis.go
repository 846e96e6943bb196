package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"FinChat/pkg/logger"
)

// RedisQueue is a list-backed work queue with a delayed-retry sorted set and a
// dead-letter list. Keys live under finchat:queue:<name>.
type RedisQueue struct {
	lgr    *logger.Logger
	cfg    Config
	client *redis.Client
	prefix string

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewRedisQueue(lgr *logger.Logger, client *redis.Client, cfg Config) *RedisQueue {
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	return &RedisQueue{
		lgr:    lgr.With(logger.String("queue", cfg.Name)),
		cfg:    cfg,
		client: client,
		prefix: "finchat:queue:" + cfg.Name,
		jobs:   make(map[string]Job),
	}
}

func (q *RedisQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.jobs[job.Type()]; ok {
		q.lgr.Warn("job already registered", logger.String("type", job.Type()))
		return
	}
	q.jobs[job.Type()] = job
}

// Start pings Redis and launches the workers and the retry promoter.
func (q *RedisQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return errors.New("queue: already running")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := q.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("queue: redis ping: %w", err)
	}

	runCtx, stop := context.WithCancel(context.Background())
	q.cancel = stop
	q.running = true

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(runCtx)
	}
	q.wg.Add(1)
	go q.promoteRetries(runCtx)

	q.lgr.Info("redis queue started", logger.Int("workers", q.cfg.Workers), logger.Int("jobs", len(q.jobs)))
	return nil
}

func (q *RedisQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("queue: stop: %w", ctx.Err())
	case <-done:
		q.lgr.Info("redis queue stopped")
		return nil
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	_, ok := q.jobs[msgType]
	q.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoJob, msgType)
	}

	raw, err := encodePayload(payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(Message{
		ID:         uuid.NewString(),
		Type:       msgType,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("queue: marshal message: %w", err)
	}
	if err := q.client.LPush(ctx, q.key("messages"), data).Err(); err != nil {
		return fmt.Errorf("queue: lpush: %w", err)
	}
	return nil
}

func (q *RedisQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for ctx.Err() == nil {
		res, err := q.client.BRPop(ctx, q.cfg.PollTimeout, q.key("messages")).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			q.lgr.Error("brpop", logger.Error(err))
			sleep(ctx, time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			q.lgr.Error("drop undecodable message", logger.Error(err))
			continue
		}
		q.process(ctx, msg)
	}
}

func (q *RedisQueue) process(ctx context.Context, msg Message) {
	q.mu.RLock()
	job, ok := q.jobs[msg.Type]
	q.mu.RUnlock()
	if !ok {
		q.lgr.Error("no job for message", logger.String("type", msg.Type), logger.String("id", msg.ID))
		q.park(msg)
		return
	}

	start := time.Now()
	err := job.Handle(ctx, msg.Payload)
	if err == nil {
		q.lgr.Debug("job done",
			logger.String("type", msg.Type),
			logger.String("id", msg.ID),
			logger.Duration("elapsed", time.Since(start)))
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}

	msg.Attempts++
	msg.LastError = err.Error()
	q.lgr.Error("job failed",
		logger.String("type", msg.Type),
		logger.String("id", msg.ID),
		logger.Int("attempt", msg.Attempts),
		logger.Error(err))

	if !ShouldRetry(msg, q.cfg.RetryLimit) {
		q.park(msg)
		return
	}
	q.scheduleRetry(msg, time.Now().Add(q.cfg.RetryDelay))
}

// ShouldRetry reports whether a message that has failed msg.Attempts times gets another try.
func ShouldRetry(msg Message, limit int) bool {
	return msg.Attempts <= limit
}

func (q *RedisQueue) scheduleRetry(msg Message, at time.Time) {
	data, err := json.Marshal(msg)
	if err != nil {
		q.lgr.Error("marshal retry", logger.Error(err))
		return
	}
	if err := q.client.ZAdd(context.Background(), q.key("retry"), redis.Z{
		Score:  float64(at.Unix()),
		Member: data,
	}).Err(); err != nil {
		q.lgr.Error("zadd retry", logger.Error(err))
	}
}

func (q *RedisQueue) park(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		q.lgr.Error("marshal dlq", logger.Error(err))
		return
	}
	if err := q.client.LPush(context.Background(), q.key("dlq"), data).Err(); err != nil {
		q.lgr.Error("lpush dlq", logger.Error(err))
	}
}

func (q *RedisQueue) promoteRetries(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		due, err := q.client.ZRangeByScore(ctx, q.key("retry"), &redis.ZRangeBy{
			Min: "0",
			Max: strconv.FormatInt(time.Now().Unix(), 10),
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				q.lgr.Error("fetch retries", logger.Error(err))
			}
			continue
		}

		for _, member := range due {
			pipe := q.client.TxPipeline()
			pipe.ZRem(ctx, q.key("retry"), member)
			pipe.LPush(ctx, q.key("messages"), member)
			if _, err := pipe.Exec(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				q.lgr.Error("promote retry", logger.Error(err))
			}
		}
	}
}

func (q *RedisQueue) key(suffix string) string {
	return q.prefix + ":" + suffix
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
