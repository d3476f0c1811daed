package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	trainingRuns     *prometheus.CounterVec
	trainingDuration *prometheus.HistogramVec
	forecastPoints   *prometheus.CounterVec
	anomaliesTotal   *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	modelStoreOps    *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		trainingRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadcast_training_runs_total",
				Help: "Total number of model training runs by outcome",
			},
			[]string{"entity", "metric", "outcome"},
		),
		trainingDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loadcast_training_duration_seconds",
				Help:    "Wall-clock duration of training runs in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"entity", "metric"},
		),
		forecastPoints: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadcast_forecast_points_total",
				Help: "Total number of forecast points generated",
			},
			[]string{"entity", "metric"},
		),
		anomaliesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadcast_anomalies_total",
				Help: "Total number of observations flagged anomalous",
			},
			[]string{"entity", "metric"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadcast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		modelStoreOps: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadcast_model_store_ops_total",
				Help: "Model store operations by outcome",
			},
			[]string{"op", "outcome"},
		),
	}
}

// RecordTraining records one finished training run.
func (r *Recorder) RecordTraining(entity, metric, outcome string, seconds float64) {
	r.trainingRuns.WithLabelValues(entity, metric, outcome).Inc()
	r.trainingDuration.WithLabelValues(entity, metric).Observe(seconds)
}

// RecordForecast records generated forecast points.
func (r *Recorder) RecordForecast(entity, metric string, points int) {
	r.forecastPoints.WithLabelValues(entity, metric).Add(float64(points))
}

// RecordAnomaly records a flagged observation.
func (r *Recorder) RecordAnomaly(entity, metric string) {
	r.anomaliesTotal.WithLabelValues(entity, metric).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordModelStoreOp records one model store operation.
func (r *Recorder) RecordModelStoreOp(op, outcome string) {
	r.modelStoreOps.WithLabelValues(op, outcome).Inc()
}
