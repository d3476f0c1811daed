package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"LoadCast/internal/domain/models"
	domrepo "LoadCast/internal/domain/repository"
	domsvc "LoadCast/internal/domain/service"
	"LoadCast/internal/handler/api"
	mid "LoadCast/internal/middleware"
	internalrepo "LoadCast/internal/repository"
	"LoadCast/internal/service/collector"
	"LoadCast/internal/services/analytics"
	"LoadCast/internal/services/seasonal"
	"LoadCast/internal/usecase"
	pkgch "LoadCast/pkg/clickhouse"
	"LoadCast/pkg/config"
	xhttp "LoadCast/pkg/http"
	pkgkafka "LoadCast/pkg/kafka"
	"LoadCast/pkg/logger"
	"LoadCast/pkg/metrics"
	"LoadCast/pkg/queue"
	"LoadCast/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return logger.New(&logger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and applies the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.Schema()); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideRedisClient creates the shared Redis client, or nil when no
// address is configured. The blob store and the retrain queue both hang
// off this client.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if cfg.Store.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Store.Redis.Addr,
		Password: cfg.Store.Redis.Password,
		DB:       cfg.Store.Redis.DB,
	})
}

// ProvideBlobStore selects the model blob backend.
func ProvideBlobStore(cfg *config.Config, rdb *redis.Client) (domrepo.BlobStore, error) {
	switch cfg.Store.Backend {
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("store.backend is redis but store.redis.addr is empty")
		}
		return internalrepo.NewRedisBlobStore(rdb, cfg.Store.Redis.Prefix), nil
	default:
		path := cfg.Store.BadgerPath
		if path == "" {
			path = "data/models"
		}
		return internalrepo.NewBadgerBlobStore(path)
	}
}

// ProvideModelStore wraps the blob backend with compression, the version
// guard and the in-process decoded cache.
func ProvideModelStore(blobs domrepo.BlobStore, cfg *config.Config) (domrepo.ModelStore, error) {
	return internalrepo.NewCompressedModelStore(blobs, cfg.Store.CacheSize)
}

// ProvideBackend creates the regression model backend.
func ProvideBackend() domsvc.ModelBackend {
	return seasonal.NewBackend()
}

// ProvideSeriesSource creates the ClickHouse series reader.
func ProvideSeriesSource(chClient *pkgch.Client, l *logger.Logger) *internalrepo.CHSeriesSource {
	src := internalrepo.NewCHSeriesSource(chClient)
	src.SetLogger(l)
	return src
}

// ProvidePredictionsSink creates the ClickHouse predictions writer.
func ProvidePredictionsSink(chClient *pkgch.Client) domrepo.PredictionsSink {
	return internalrepo.NewCHPredictionsSink(chClient)
}

// ProvideGrid expands the configured hyperparameter axes.
func ProvideGrid(cfg *config.Config) models.Grid {
	return cfg.Forecast.Grid.Expand()
}

// ProvideTuner creates the grid-search tuner.
func ProvideTuner(backend domsvc.ModelBackend, cfg *config.Config) *usecase.Tuner {
	return usecase.NewTuner(backend, usecase.TunerConfig{
		MinPointsForCV:  cfg.Forecast.Tuner.MinPointsForCV,
		CVFolds:         cfg.Forecast.Tuner.CVFolds,
		CVHorizon:       cfg.Forecast.Tuner.CVHorizon,
		HoldoutFraction: cfg.Forecast.Tuner.HoldoutFraction,
		Workers:         cfg.Forecast.Tuner.Workers,
	})
}

// ProvideTrainer creates the model trainer.
func ProvideTrainer(backend domsvc.ModelBackend, cfg *config.Config) *usecase.Trainer {
	return usecase.NewTrainer(backend, usecase.TrainerConfig{MinPoints: cfg.Forecast.MinPoints})
}

// ProvideForecaster assembles the training and prediction orchestrator.
func ProvideForecaster(
	source *internalrepo.CHSeriesSource,
	store domrepo.ModelStore,
	sink domrepo.PredictionsSink,
	tuner *usecase.Tuner,
	trainer *usecase.Trainer,
	backend domsvc.ModelBackend,
	grid models.Grid,
	m domrepo.Metrics,
	l *logger.Logger,
	cfg *config.Config,
) *usecase.Forecaster {
	return usecase.NewForecaster(source, store, sink, tuner, trainer, backend, grid, m, l, usecase.ForecasterConfig{
		Lookback:        cfg.Forecast.Lookback,
		TrainingTimeout: cfg.Forecast.TrainingTimeout,
		Confidence:      cfg.Forecast.Confidence,
	})
}

// ProvideCompletenessAnalyzer creates the gap analyzer.
func ProvideCompletenessAnalyzer(source *internalrepo.CHSeriesSource) *usecase.CompletenessAnalyzer {
	return usecase.NewCompletenessAnalyzer(source, 0)
}

// ProvideLatestTracker creates the per-key freshness tracker.
func ProvideLatestTracker() *usecase.LatestTracker {
	return usecase.NewLatestTracker()
}

// ProvideAnomalyDetector creates the rolling z-score detector.
func ProvideAnomalyDetector(cfg *config.Config) domsvc.AnomalyScorer {
	return analytics.NewRollingDetector(analytics.DetectorConfig{
		Window:        cfg.Anomaly.Window,
		Threshold:     cfg.Anomaly.Threshold,
		CriticalLevel: cfg.Anomaly.CriticalLevel,
		RateOfChange:  cfg.Anomaly.RateOfChange,
	})
}

// ProvideAlertPublisher creates the Kafka alert publisher, or nil when no
// alerts topic is configured.
func ProvideAlertPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.AlertPublisher {
	if cfg.Kafka.AlertsTopic == "" {
		return nil
	}
	return internalrepo.NewKafkaAlertPublisher(producer, cfg.Kafka.AlertsTopic)
}

// ProvideSampleProcessor creates the ingest router.
func ProvideSampleProcessor(
	producer *pkgkafka.Producer,
	source *internalrepo.CHSeriesSource,
	m domrepo.Metrics,
	cfg *config.Config,
) *usecase.SampleProcessor {
	pub := internalrepo.NewKafkaSamplePublisher(producer, cfg.Kafka.Topic)
	return usecase.NewSampleProcessor(pub, source, m, cfg.Ingest.Backend, cfg.Ingest.BatchSize, cfg.Ingest.BatchTimeout)
}

// ProvideSampleStream creates the collector agent feed: the WebSocket
// stream by default, or the HTTP puller for agents that cannot hold a
// socket open.
func ProvideSampleStream(cfg *config.Config) domrepo.SampleStream {
	if cfg.Collector.Mode == "pull" {
		return collector.NewPuller(
			cfg.Collector.AuthToken,
			cfg.Collector.HTTPURL,
			cfg.Collector.Subscriptions,
			cfg.Collector.PollInterval,
		)
	}
	return collector.New(
		cfg.Collector.AuthToken,
		cfg.Collector.WebSocketURL,
		cfg.Collector.Subscriptions,
		cfg.Collector.ReconnectDelay,
		cfg.Collector.PingInterval,
	)
}

// ProvideSampleCollector creates the collector use case with the throttle
// and buffer pipeline in front of the processor.
func ProvideSampleCollector(
	stream domrepo.SampleStream,
	processor *usecase.SampleProcessor,
	m domrepo.Metrics,
	cfg *config.Config,
) *usecase.SampleCollector {
	var opts []mid.PipelineOption
	if cfg.Ingest.MaxRPS > 0 {
		opts = append(opts, mid.WithMaxRPS(cfg.Ingest.MaxRPS))
	}
	if cfg.Ingest.BufferSize > 0 {
		opts = append(opts, mid.WithBufferSize(cfg.Ingest.BufferSize))
	}
	pipe := mid.NewIngestPipeline(processor, m, opts...)
	return usecase.NewSampleCollector(stream, processor, m, pipe)
}

// ProvideKafkaSamplesHandler registers the handler for the samples topic.
func ProvideKafkaSamplesHandler(
	source *internalrepo.CHSeriesSource,
	detector domsvc.AnomalyScorer,
	tracker *usecase.LatestTracker,
	alerts domrepo.AlertPublisher,
	m domrepo.Metrics,
	cfg *config.Config,
) *usecase.KafkaSamplesHandler {
	return usecase.NewKafkaSamplesHandler(cfg.Kafka.Topic, source, detector, tracker, alerts, m)
}

// ProvideRetrainQueue creates the Redis-backed retrain queue with the
// retrain job registered, or nil when Redis is not configured.
func ProvideRetrainQueue(
	l *logger.Logger,
	rdb *redis.Client,
	fc *usecase.Forecaster,
	tracker *usecase.LatestTracker,
	detector domsvc.AnomalyScorer,
	cfg *config.Config,
) *queue.RedisQueue {
	if rdb == nil || !cfg.Retrain.Enabled {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{Workers: cfg.Retrain.Workers}, rdb, queue.ModeProducerConsumer)
	job := usecase.NewRetrainJob(fc, tracker, cfg.Forecast.Horizon, cfg.Forecast.Frequency, l).WithDetector(detector)
	q.RegisterJob(job)
	return q
}

// ProvideRetrainScheduler creates the periodic retrain enqueuer, or nil
// when the queue is absent.
func ProvideRetrainScheduler(
	q *queue.RedisQueue,
	tracker *usecase.LatestTracker,
	store domrepo.ModelStore,
	l *logger.Logger,
	cfg *config.Config,
) *usecase.RetrainScheduler {
	if q == nil {
		return nil
	}
	s := usecase.NewRetrainScheduler(q, tracker, cfg.Retrain.Interval, l)
	if cfg.Retrain.ModelRetention > 0 {
		s = s.WithPruning(store, cfg.Retrain.ModelRetention)
	}
	return s
}

// ProvideKeyStatusUseCase creates the consolidated status view.
func ProvideKeyStatusUseCase(
	store domrepo.ModelStore,
	completeness *usecase.CompletenessAnalyzer,
	tracker *usecase.LatestTracker,
	cfg *config.Config,
) *usecase.KeyStatusUseCase {
	return usecase.NewKeyStatusUseCase(store, completeness, tracker, cfg.Status.CompletenessWindow, cfg.Status.CompletenessInterval)
}

// ProvideHTTPHandler creates the diagnostic API handler.
func ProvideHTTPHandler(
	l *logger.Logger,
	fc *usecase.Forecaster,
	completeness *usecase.CompletenessAnalyzer,
	status *usecase.KeyStatusUseCase,
	tracker *usecase.LatestTracker,
	q *queue.RedisQueue,
) xhttp.Handler {
	return api.NewForecastEchoHandler(l, fc, completeness, status, tracker, q)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	col *usecase.SampleCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSamplesHandler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	q *queue.RedisQueue,
	scheduler *usecase.RetrainScheduler,
	handler xhttp.Handler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	return server.New(cfg, l, col, consumer, kh, chClient, producer, q, scheduler, handler)
}
