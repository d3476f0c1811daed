// Code generated by Wire. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package di

import (
	"LoadCast/pkg/config"
	"LoadCast/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	sampleStream := ProvideSampleStream(cfg)
	producer, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, err
	}
	client, err := ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, err
	}
	chSeriesSource := ProvideSeriesSource(client, logger)
	metrics := ProvideMetrics()
	sampleProcessor := ProvideSampleProcessor(producer, chSeriesSource, metrics, cfg)
	sampleCollector := ProvideSampleCollector(sampleStream, sampleProcessor, metrics, cfg)
	consumer, err := ProvideKafkaConsumer(cfg)
	if err != nil {
		return nil, err
	}
	anomalyScorer := ProvideAnomalyDetector(cfg)
	latestTracker := ProvideLatestTracker()
	alertPublisher := ProvideAlertPublisher(producer, cfg)
	kafkaSamplesHandler := ProvideKafkaSamplesHandler(chSeriesSource, anomalyScorer, latestTracker, alertPublisher, metrics, cfg)
	redisClient := ProvideRedisClient(cfg)
	blobStore, err := ProvideBlobStore(cfg, redisClient)
	if err != nil {
		return nil, err
	}
	modelStore, err := ProvideModelStore(blobStore, cfg)
	if err != nil {
		return nil, err
	}
	predictionsSink := ProvidePredictionsSink(client)
	modelBackend := ProvideBackend()
	tuner := ProvideTuner(modelBackend, cfg)
	trainer := ProvideTrainer(modelBackend, cfg)
	grid := ProvideGrid(cfg)
	forecaster := ProvideForecaster(chSeriesSource, modelStore, predictionsSink, tuner, trainer, modelBackend, grid, metrics, logger, cfg)
	redisQueue := ProvideRetrainQueue(logger, redisClient, forecaster, latestTracker, anomalyScorer, cfg)
	retrainScheduler := ProvideRetrainScheduler(redisQueue, latestTracker, modelStore, logger, cfg)
	completenessAnalyzer := ProvideCompletenessAnalyzer(chSeriesSource)
	keyStatusUseCase := ProvideKeyStatusUseCase(modelStore, completenessAnalyzer, latestTracker, cfg)
	handler := ProvideHTTPHandler(logger, forecaster, completenessAnalyzer, keyStatusUseCase, latestTracker, redisQueue)
	app := ProvideApp(cfg, logger, sampleCollector, consumer, kafkaSamplesHandler, client, producer, redisQueue, retrainScheduler, handler)
	return app, nil
}
