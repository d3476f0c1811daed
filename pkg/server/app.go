package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"LoadCast/internal/usecase"
	pkgch "LoadCast/pkg/clickhouse"
	"LoadCast/pkg/config"
	xhttp "LoadCast/pkg/http"
	pkgkafka "LoadCast/pkg/kafka"
	applogger "LoadCast/pkg/logger"
	"LoadCast/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	l           *applogger.Logger
	collector   *usecase.SampleCollector
	consumer    *pkgkafka.Consumer
	kh          *usecase.KafkaSamplesHandler
	chClient    *pkgch.Client
	producer    *pkgkafka.Producer
	queue       *queue.RedisQueue
	scheduler   *usecase.RetrainScheduler
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.SampleCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSamplesHandler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	q *queue.RedisQueue,
	scheduler *usecase.RetrainScheduler,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:         cfg,
		l:           l,
		collector:   collector,
		consumer:    consumer,
		kh:          kh,
		chClient:    chClient,
		producer:    producer,
		queue:       q,
		scheduler:   scheduler,
		httpHandler: handler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.l

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Start collector
	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("collector started", applogger.Strings("subscriptions", a.cfg.Collector.Subscriptions))
	}

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start retrain queue and scheduler
	if a.queue != nil {
		// Aggregate repeated error logs and ship them through the queue.
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          "error_logs",
			Publisher:      a.queue,
		})
		if err := a.queue.Start(); err != nil {
			l.Error("retrain queue start error", applogger.Error(err))
		} else {
			a.queue.StartRetryProcessor()
			l.Info("retrain queue started", applogger.Int("workers", a.cfg.Retrain.Workers))
		}
		if a.scheduler != nil {
			a.scheduler.Start(ctx)
			l.Info("retrain scheduler started", applogger.Duration("interval", a.cfg.Retrain.Interval))
		}
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}
	l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.l

	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	l.RemoveCollector()

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			l.Warn("retrain queue stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
