//go:build wireinject
// +build wireinject

package di

import (
	"LoadCast/pkg/config"
	"LoadCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisClient,

		// Model storage
		ProvideBlobStore,
		ProvideModelStore,

		// Forecasting core
		ProvideBackend,
		ProvideGrid,
		ProvideTuner,
		ProvideTrainer,
		ProvideSeriesSource,
		ProvidePredictionsSink,
		ProvideForecaster,
		ProvideCompletenessAnalyzer,
		ProvideLatestTracker,
		ProvideAnomalyDetector,

		// Ingestion
		ProvideAlertPublisher,
		ProvideSampleProcessor,
		ProvideSampleStream,
		ProvideSampleCollector,
		ProvideKafkaSamplesHandler,

		// Retraining
		ProvideRetrainQueue,
		ProvideRetrainScheduler,

		// HTTP
		ProvideKeyStatusUseCase,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
