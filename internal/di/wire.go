//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"FinChat/pkg/config"
	"FinChat/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideClickHouseClient,

		// Repositories
		ProvideFileStore,
		ProvidePublisher,
		ProvideParsedStore,

		// Services
		ProvideToolBackend,
		ProvideDocumentExtractor,
		ProvideHub,
		ProvideRateLimiter,

		// Use cases
		ProvideToolResultService,
		ProvideDocumentParseJob,
		ProvideRedisQueue,
		ProvideEnqueuer,
		ProvideFileService,
		ProvideToolInvoker,
		ProvideResultSink,
		ProvideResultPipeline,
		ProvideToolResultsHandler,

		// Application server
		ProvideHandlers,
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
