package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"LoadCast/internal/domain/models"
	pkgch "LoadCast/pkg/clickhouse"
	applogger "LoadCast/pkg/logger"
)

const (
	factTable = "loadcast.metrics_fact"
	predTable = "loadcast.metrics_pred"
)

// Schema returns idempotent DDL for the fact and prediction tables.
// ReplacingMergeTree deduplicates re-ingested samples on merge; reads
// still apply last-write-wins via series normalization.
func Schema() []string {
	return []string{
		`CREATE DATABASE IF NOT EXISTS loadcast`,
		`CREATE TABLE IF NOT EXISTS ` + factTable + ` (
            entity   LowCardinality(String),
            metric   LowCardinality(String),
            ts       DateTime64(3, 'UTC'),
            value    Float64,
            ingested DateTime DEFAULT now()
        ) ENGINE = ReplacingMergeTree(ingested)
        PARTITION BY toYYYYMM(ts)
        ORDER BY (entity, metric, ts)`,
		`CREATE TABLE IF NOT EXISTS ` + predTable + ` (
            entity       LowCardinality(String),
            metric       LowCardinality(String),
            ts           DateTime64(3, 'UTC'),
            yhat         Float64,
            yhat_lower   Float64,
            yhat_upper   Float64,
            confidence   Float64,
            generated_at DateTime64(3, 'UTC')
        ) ENGINE = ReplacingMergeTree(generated_at)
        PARTITION BY toYYYYMM(ts)
        ORDER BY (entity, metric, ts)`,
	}
}

// CHSeriesSource implements SeriesSource over the ClickHouse fact table.
type CHSeriesSource struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHSeriesSource(ch *pkgch.Client) *CHSeriesSource {
	return &CHSeriesSource{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHSeriesSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHSeriesSource) GetHistoricalSeries(ctx context.Context, key models.Key, start, end time.Time) (models.MetricSeries, error) {
	began := time.Now()
	const q = `
        SELECT ts, value
        FROM ` + factTable + ` FINAL
        WHERE entity = ? AND metric = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
    `
	rows, err := s.db.QueryContext(ctx, q, key.Entity, key.Metric, start, end)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_series query error",
				applogger.String("key", key.String()),
				applogger.Error(err),
			)
		}
		return models.MetricSeries{}, fmt.Errorf("get series: %w", err)
	}
	defer rows.Close()

	series := models.MetricSeries{Key: key, Samples: make([]models.Sample, 0, 1024)}
	for rows.Next() {
		var ts time.Time
		var v float64
		if err := rows.Scan(&ts, &v); err != nil {
			return models.MetricSeries{}, fmt.Errorf("scan sample: %w", err)
		}
		series.Samples = append(series.Samples, models.Sample{Timestamp: ts.UTC(), Value: v})
	}
	if err := rows.Err(); err != nil {
		return models.MetricSeries{}, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse get_series ok",
			applogger.String("key", key.String()),
			applogger.Int("rows", series.Len()),
			applogger.Duration("duration_ms", time.Since(began)),
		)
	}
	return series, nil
}

func (s *CHSeriesSource) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertSamples writes ingested observations in chunks. Used by the
// batch path of the sample consumer.
func (s *CHSeriesSource) InsertSamples(ctx context.Context, obs []*models.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(obs); start += chunkSize {
		end := start + chunkSize
		if end > len(obs) {
			end = len(obs)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*4)
		for _, o := range obs[start:end] {
			if o == nil || o.Key.Entity == "" || o.Key.Metric == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?)")
			args = append(args, o.Key.Entity, o.Key.Metric, o.Timestamp, o.Value)
		}
		if len(values) == 0 {
			continue
		}
		q := "INSERT INTO " + factTable + " (entity, metric, ts, value) VALUES " + strings.Join(values, ",")
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert samples: %w", err)
		}
	}
	return nil
}

// CHPredictionsSink implements PredictionsSink over the prediction table.
type CHPredictionsSink struct {
	db *sql.DB
}

func NewCHPredictionsSink(ch *pkgch.Client) *CHPredictionsSink {
	return &CHPredictionsSink{db: ch.DB()}
}

func (s *CHPredictionsSink) UpsertPredictions(ctx context.Context, key models.Key, result *models.ForecastResult) (int, error) {
	if result == nil || len(result.Points) == 0 {
		return 0, nil
	}
	values := make([]string, 0, len(result.Points))
	args := make([]interface{}, 0, len(result.Points)*8)
	for _, p := range result.Points {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			key.Entity,
			key.Metric,
			p.Timestamp,
			p.Value,
			p.LowerBound,
			p.UpperBound,
			result.ConfidenceLevel,
			result.GeneratedAt,
		)
	}
	q := "INSERT INTO " + predTable + " (entity, metric, ts, yhat, yhat_lower, yhat_upper, confidence, generated_at) VALUES " + strings.Join(values, ",")
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return 0, fmt.Errorf("upsert predictions: %w", err)
	}
	return len(result.Points), nil
}
