package di

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	domrepo "FinChat/internal/domain/repository"
	domsvc "FinChat/internal/domain/service"
	"FinChat/internal/handler/api"
	mid "FinChat/internal/middleware"
	internalrepo "FinChat/internal/repository"
	"FinChat/internal/service/ratelimit"
	"FinChat/internal/service/realtime"
	"FinChat/internal/services/backend"
	"FinChat/internal/services/documents"
	"FinChat/internal/usecase"
	"FinChat/pkg/cache"
	pkgch "FinChat/pkg/clickhouse"
	"FinChat/pkg/config"
	xhttp "FinChat/pkg/http"
	pkgkafka "FinChat/pkg/kafka"
	"FinChat/pkg/logger"
	"FinChat/pkg/metrics"
	"FinChat/pkg/queue"
	"FinChat/pkg/server"
)

const initTimeout = 10 * time.Second

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	lgr, err := logger.New(&logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: "finchat",
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return lgr, nil
}

// ProvideMetrics creates the Prometheus recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideRedisClient connects to Redis, or returns nil when redis.addr is empty.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// ProvideCache layers an in-process cache over Redis, or uses memory alone without Redis.
func ProvideCache(cfg *config.Config, rc *redis.Client) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MaxEntries),
			cache.WithMemoryDefaultTTL(cfg.Cache.ParsedTTL),
		)
	}
	return cache.NewLayeredCache(
		cache.NewRedisCacheWithClient(rc, "finchat:"),
		cache.WithLayeredMemorySize(cfg.Cache.MaxEntries),
		cache.WithLayeredMemoryTTL(cfg.Cache.MemoryTTL),
	)
}

// ProvideToolBackend creates the analytics backend client.
func ProvideToolBackend(cfg *config.Config) domsvc.ToolBackend {
	return backend.NewClient(cfg)
}

// ProvideDocumentExtractor creates the local document extractor.
func ProvideDocumentExtractor() domsvc.DocumentExtractor {
	return documents.NewExtractor()
}

// ProvideFileStore uses Postgres when postgres.dsn is set, memory otherwise.
func ProvideFileStore(cfg *config.Config) (domrepo.FileStore, error) {
	if cfg.Postgres.DSN == "" {
		return internalrepo.NewMemoryFileStore(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	store, err := internalrepo.NewPostgresFileStore(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("postgres file store: %w", err)
	}
	return store, nil
}

// ProvideToolResultService creates the cached parsing service.
func ProvideToolResultService(cfg *config.Config, lgr *logger.Logger, c cache.Service, m domrepo.Metrics) *usecase.ToolResultService {
	return usecase.NewToolResultService(lgr, c, cfg.Cache.ParsedTTL, m)
}

// ProvideDocumentParseJob creates the document parsing job.
func ProvideDocumentParseJob(
	cfg *config.Config,
	lgr *logger.Logger,
	store domrepo.FileStore,
	extractor domsvc.DocumentExtractor,
	be domsvc.ToolBackend,
	m domrepo.Metrics,
) *usecase.DocumentParseJob {
	return usecase.NewDocumentParseJob(lgr, store, extractor, be, m, cfg.Uploads.Dir)
}

// ProvideRedisQueue creates the document queue, or nil when the queue is disabled.
func ProvideRedisQueue(cfg *config.Config, lgr *logger.Logger, rc *redis.Client, job *usecase.DocumentParseJob) *queue.RedisQueue {
	if !cfg.QueueEnabled() || rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(lgr, rc, queue.Config{
		Name:        cfg.Queue.Name,
		Workers:     cfg.Queue.Workers,
		RetryLimit:  cfg.Queue.MaxRetries,
		RetryDelay:  cfg.Queue.RetryDelay,
		PollTimeout: cfg.Queue.PollInterval,
	})
	q.RegisterJob(job)
	return q
}

// ProvideEnqueuer runs parse jobs on the Redis queue, or inline without one.
func ProvideEnqueuer(rq *queue.RedisQueue, job *usecase.DocumentParseJob) queue.Enqueuer {
	if rq == nil {
		return queue.NewInline(job)
	}
	return rq
}

// ProvideFileService creates the uploaded-files service.
func ProvideFileService(cfg *config.Config, lgr *logger.Logger, store domrepo.FileStore, jobs queue.Enqueuer) *usecase.FileService {
	return usecase.NewFileService(lgr, store, jobs, cfg.Uploads)
}

// ProvideToolInvoker creates the tool invoker.
func ProvideToolInvoker(
	be domsvc.ToolBackend,
	results *usecase.ToolResultService,
	files *usecase.FileService,
	m domrepo.Metrics,
) *usecase.ToolInvoker {
	return usecase.NewToolInvoker(be, results, files, m)
}

// ProvideHub creates the websocket hub.
func ProvideHub(lgr *logger.Logger) *realtime.Hub {
	return realtime.NewHub(lgr)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.KafkaEnabled() {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher publishes parsed results to kafka.parsed_topic.
func ProvidePublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.ParsedTopic)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when clickhouse.host is empty.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.ClickHouse.Host == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideParsedStore creates the ClickHouse result tables, or returns nil without a client.
func ProvideParsedStore(cfg *config.Config, ch *pkgch.Client) (domrepo.ParsedStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseParsedStore(ch, cfg.ClickHouse.Database)

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideResultSink writes parsed results to the configured sinks.
func ProvideResultSink(
	cfg *config.Config,
	pub domrepo.Publisher,
	store domrepo.ParsedStore,
	hub *realtime.Hub,
	m domrepo.Metrics,
) (*usecase.ResultSink, error) {
	sink, err := usecase.NewResultSink(cfg.Sink.Type, pub, store, hub, m)
	if err != nil {
		return nil, fmt.Errorf("result sink: %w", err)
	}
	return sink.WithTimeout(cfg.Sink.BatchTimeout), nil
}

// ProvideResultPipeline throttles and buffers deliveries to the sink.
func ProvideResultPipeline(cfg *config.Config, lgr *logger.Logger, sink *usecase.ResultSink, m domrepo.Metrics) *mid.ResultPipeline {
	return mid.NewResultPipeline(lgr, sink, m,
		mid.WithMaxRPS(cfg.Sink.MaxRPS),
		mid.WithBufferSize(cfg.Sink.BufferSize),
	)
}

// ProvideKafkaConsumer creates a Kafka consumer, or nil when no brokers are configured.
func ProvideKafkaConsumer(cfg *config.Config, lgr *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.KafkaEnabled() {
		return nil, nil
	}
	cc := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(lgr,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cc.GroupID),
		pkgkafka.WithConsumerWorkers(cc.Workers),
		pkgkafka.WithConsumerBufferSize(cc.BufferSize),
		pkgkafka.WithConsumerRetry(cc.RetryMax, cc.BackoffMin, cc.BackoffMax),
		pkgkafka.WithConsumerDLQ(cc.DLQTopic),
		pkgkafka.WithConsumerFetch(cc.MinBytes, cc.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideToolResultsHandler consumes raw tool results from kafka.tool_results_topic.
func ProvideToolResultsHandler(
	cfg *config.Config,
	results *usecase.ToolResultService,
	pipeline *mid.ResultPipeline,
	m domrepo.Metrics,
) *usecase.KafkaToolResultsHandler {
	return usecase.NewKafkaToolResultsHandler(cfg.Kafka.ToolResultsTopic, results, pipeline, m)
}

// ProvideHandlers lists every HTTP handler.
func ProvideHandlers(
	lgr *logger.Logger,
	results *usecase.ToolResultService,
	invoker *usecase.ToolInvoker,
	be domsvc.ToolBackend,
	files *usecase.FileService,
	hub *realtime.Hub,
) []xhttp.Handler {
	return []xhttp.Handler{
		api.NewParseHandler(lgr, results),
		api.NewToolsHandler(lgr, invoker, be),
		api.NewFilesHandler(lgr, files),
		api.NewResultsStreamHandler(lgr, hub),
	}
}

// ProvideRateLimiter creates the per-IP token bucket limiter.
func ProvideRateLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, lgr *logger.Logger, handlers []xhttp.Handler, limiter *ratelimit.Limiter) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	var mw []echo.MiddlewareFunc
	if cfg.RateLimit.Enabled {
		mw = append(mw, ratelimit.Middleware(limiter, ratelimit.Config{
			Capacity: cfg.RateLimit.Capacity,
			Refill:   cfg.RateLimit.Refill,
			Skipper:  ratelimit.APIOnly,
		}))
	}

	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithMiddleware(mw...),
	}
	if len(cfg.Server.AllowOrigins) > 0 {
		opts = append(opts, xhttp.WithAllowOrigins(cfg.Server.AllowOrigins))
	}
	return xhttp.NewServer(lgr, handlers, opts...)
}

// ProvideApp assembles the application lifecycle.
func ProvideApp(
	cfg *config.Config,
	lgr *logger.Logger,
	srv *xhttp.Server,
	rc *redis.Client,
	c cache.Service,
	fileStore domrepo.FileStore,
	rq *queue.RedisQueue,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
	hub *realtime.Hub,
	pipeline *mid.ResultPipeline,
	consumer *pkgkafka.Consumer,
	handler *usecase.KafkaToolResultsHandler,
	limiter *ratelimit.Limiter,
) *server.App {
	app := server.New(lgr, srv, cfg.Server.ShutdownTimeout)

	if cfg.Log.Collect && producer != nil {
		app.AddComponent(server.Component{
			Name: "log collector",
			Start: func(context.Context) error {
				lgr.AddCollector(&logger.CollectionConfig{
					TimeInterval: cfg.Log.CollectInterval,
					Topic:        cfg.Kafka.LogTopic,
					Publisher:    producer,
				})
				return nil
			},
			Stop: func(context.Context) error {
				lgr.RemoveCollector()
				return nil
			},
		})
	}

	if rq != nil {
		app.AddComponent(server.Component{Name: "document queue", Start: rq.Start, Stop: rq.Stop})
	}

	app.AddComponent(server.Component{
		Name: "result pipeline",
		Start: func(ctx context.Context) error {
			pipeline.Start(ctx)
			return nil
		},
		Stop: pipeline.Stop,
	})

	if consumer != nil {
		consumer.RegisterHandler(handler)
		consumer.WithConsumerHook(pkgkafka.TracingHook())
		app.AddComponent(server.Component{
			Name:  "kafka consumer",
			Start: func(context.Context) error { return consumer.Start() },
			Stop:  consumer.Stop,
		})
	}

	if cfg.RateLimit.Enabled {
		app.AddComponent(rateLimitPruner(limiter))
	}

	app.AddComponent(server.Component{
		Name: "websocket hub",
		Stop: func(context.Context) error {
			hub.Close()
			return nil
		},
	})

	// closed in reverse: redis goes after the cache and queue that share it
	if rc != nil {
		app.AddCloser("redis", rc)
	}
	app.AddCloser("cache", c)
	app.AddCloser("file store", fileStore)
	if ch != nil {
		app.AddCloser("clickhouse", ch)
	}
	if producer != nil {
		app.AddCloser("kafka producer", producer)
	}
	return app
}

// rateLimitPruner drops idle buckets so the limiter does not grow with every caller seen.
func rateLimitPruner(l *ratelimit.Limiter) server.Component {
	done := make(chan struct{})
	stopped := make(chan struct{})
	return server.Component{
		Name: "rate limit pruner",
		Start: func(context.Context) error {
			go func() {
				defer close(stopped)
				t := time.NewTicker(time.Minute)
				defer t.Stop()
				for {
					select {
					case <-done:
						return
					case <-t.C:
						l.Prune(10 * time.Minute)
					}
				}
			}()
			return nil
		},
		Stop: func(ctx context.Context) error {
			close(done)
			select {
			case <-stopped:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}
