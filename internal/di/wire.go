//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"LabPulse/pkg/config"
	"LabPulse/pkg/server"
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
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideHub,

		// Repositories
		ProvideMemoryStore,
		ProvideStorage,
		ProvideReadingStore,
		ProvideReadingPublisher,

		// Ingest
		ProvideIngestFanout,
		ProvideReadingProcessor,
		ProvideIngestPipeline,
		ProvideKafkaReadingsHandler,
		ProvideReadingCollector,
		ProvideIngestQueue,

		// Analytics
		ProvideBiomarkerAnalytics,
		ProvideInsightsUseCase,
		ProvideBiomarkersHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
