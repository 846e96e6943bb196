package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"FinChat/pkg/logger"
)

// MessageHandler handles the payloads of a single topic.
type MessageHandler interface {
	Topic() string
	Handle(ctx context.Context, data []byte) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer fans messages from one reader per topic out to a worker pool. At most
// one message per (topic, partition) is in flight so per-chat ordering holds.
type Consumer struct {
	cfg      *ConsumerConfig
	lgr      *logger.Logger
	readers  map[string]messageReader
	handlers map[string]MessageHandler
	hook     ConsumerHook
	dlq      messageWriter

	msgChan  chan *message
	stopChan chan struct{}
	stopOnce sync.Once
	readWg   sync.WaitGroup
	workWg   sync.WaitGroup

	lockMu    sync.Mutex
	partLocks map[string]map[int]*sync.Mutex
}

type message struct {
	topic string
	km    kafka.Message
}

func NewConsumer(lgr *logger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "finchat-extract",
		WorkerCount: 4,
		BufferSize:  64,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer: brokers are required")
	}

	c := &Consumer{
		cfg:       cfg,
		lgr:       lgr.With(logger.String("component", "kafka_consumer")),
		readers:   make(map[string]messageReader),
		handlers:  make(map[string]MessageHandler),
		hook:      NoopHook{},
		msgChan:   make(chan *message, cfg.BufferSize),
		stopChan:  make(chan struct{}),
		partLocks: make(map[string]map[int]*sync.Mutex),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		}
	}

	initConsumerMetrics()
	return c, nil
}

// RegisterHandler must be called before Start. A second handler for the same topic is ignored.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	topic := h.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.lgr.Warn("handler already registered", logger.String("topic", topic))
		return
	}
	c.handlers[topic] = h
}

// WithConsumerHook replaces the lifecycle hook. Nil is ignored.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}

	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
	}

	c.startWorkers()
	for topic, reader := range c.readers {
		c.readWg.Add(1)
		go c.consume(topic, reader)
	}

	c.lgr.Info("kafka consumer started",
		logger.String("group", c.cfg.GroupID),
		logger.Int("topics", len(c.readers)),
		logger.Int("workers", c.cfg.WorkerCount),
	)
	return nil
}

func (c *Consumer) startWorkers() {
	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.workWg.Add(1)
		go c.worker()
	}
}

// Stop halts the readers, drains queued messages and closes connections.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		close(c.stopChan)
		c.readWg.Wait()
		close(c.msgChan)
		stopErr = waitGroup(ctx, &c.workWg)

		for topic, r := range c.readers {
			if err := r.Close(); err != nil {
				c.lgr.Warn("close reader", logger.String("topic", topic), logger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.lgr.Warn("close dlq writer", logger.Error(err))
			}
		}
		c.lgr.Info("kafka consumer stopped")
	})
	return stopErr
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("kafka consumer: wait for workers: %w", ctx.Err())
	case <-done:
		return nil
	}
}

func (c *Consumer) consume(topic string, reader messageReader) {
	defer c.readWg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.stopChan
		cancel()
	}()

	for {
		km, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.lgr.Warn("fetch message", logger.String("topic", topic), logger.Error(err))
			select {
			case <-time.After(Backoff(c.cfg.BackoffMin, c.cfg.BackoffMax, 1)):
				continue
			case <-c.stopChan:
				return
			}
		}

		select {
		case c.msgChan <- &message{topic: topic, km: km}:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.msgChan)))
		case <-c.stopChan:
			return
		}
	}
}

func (c *Consumer) worker() {
	defer c.workWg.Done()
	for msg := range c.msgChan {
		c.process(msg)
	}
}

func (c *Consumer) process(msg *message) {
	handler, ok := c.handlers[msg.topic]
	if !ok {
		return
	}

	pl := c.partitionLock(msg.topic, msg.km.Partition)
	pl.Lock()
	defer pl.Unlock()

	start := time.Now()
	attempts, err := c.handle(handler, msg)
	consumerHandleLatency.WithLabelValues(msg.topic).Observe(time.Since(start).Seconds())

	if err != nil && c.stopping() {
		// Left uncommitted; the group redelivers it after restart.
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
		c.lgr.Error("message handling failed",
			logger.String("topic", msg.topic),
			logger.Int("partition", msg.km.Partition),
			logger.Int64("offset", msg.km.Offset),
			logger.Int("attempts", attempts),
			logger.Error(err),
		)
		if c.dlq != nil {
			result = "dlq"
			c.toDLQ(msg, err)
		}
	}
	consumerMsgsTotal.WithLabelValues(msg.topic, result).Inc()

	// Failed messages are committed once parked in the DLQ so they are not redelivered forever.
	if err == nil || c.dlq != nil {
		if r := c.readers[msg.topic]; r != nil {
			_ = c.commit(r, msg.km)
		}
	}
}

// handle runs the hook chain and handler with up to RetryMax retries.
func (c *Consumer) handle(handler MessageHandler, msg *message) (attempts int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	for {
		attempts++
		ctx, km, data, berr := c.hook.BeforeHandle(context.Background(), msg.topic, msg.km, msg.km.Value)
		if berr != nil {
			return attempts, berr
		}

		err = handler.Handle(ctx, data)
		c.hook.AfterHandle(ctx, msg.topic, km, data, err)
		if err == nil || attempts > c.cfg.RetryMax {
			return attempts, err
		}
		c.hook.OnError(ctx, msg.topic, km, data, err)

		select {
		case <-time.After(Backoff(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)):
		case <-c.stopChan:
			return attempts, err
		}
	}
}

func (c *Consumer) toDLQ(msg *message, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Topic: c.cfg.DLQTopic,
		Key:   msg.km.Key,
		Value: msg.km.Value,
		Time:  time.Now().UTC(),
		Headers: append(msg.km.Headers,
			kafka.Header{Key: "source_topic", Value: []byte(msg.topic)},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
		),
	})
	if err != nil {
		c.lgr.Error("write dlq", logger.String("topic", c.cfg.DLQTopic), logger.Error(err))
	}
}

func (c *Consumer) commit(r messageReader, km kafka.Message) error {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(Backoff(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.lgr.Error("commit offset", logger.String("topic", km.Topic), logger.Int64("offset", km.Offset), logger.Error(err))
	return err
}

func (c *Consumer) stopping() bool {
	select {
	case <-c.stopChan:
		return true
	default:
		return false
	}
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()

	byPart, ok := c.partLocks[topic]
	if !ok {
		byPart = make(map[int]*sync.Mutex)
		c.partLocks[topic] = byPart
	}
	l, ok := byPart[partition]
	if !ok {
		l = &sync.Mutex{}
		byPart[partition] = l
	}
	return l
}

var (
	consumerMetricsOnce   sync.Once
	consumerQueueDepth    *prometheus.GaugeVec
	consumerMsgsTotal     *prometheus.CounterVec
	consumerHandleLatency *prometheus.HistogramVec
)

func initConsumerMetrics() {
	consumerMetricsOnce.Do(func() {
		consumerQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "finchat_kafka_consumer_queue_depth",
			Help: "Messages waiting for a consumer worker",
		}, []string{"topic"})
		consumerMsgsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "finchat_kafka_consumer_messages_total",
			Help: "Consumed messages by topic and outcome",
		}, []string{"topic", "result"})
		consumerHandleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "finchat_kafka_consumer_handle_seconds",
			Help:    "Handling time per message including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})
	})
}
