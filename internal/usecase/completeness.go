package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"LoadCast/internal/domain/models"
	domrepo "LoadCast/internal/domain/repository"
)

// DefaultGapTolerance absorbs minor sampling jitter: a gap only counts
// as missing data when it exceeds expected_interval * tolerance.
const DefaultGapTolerance = 1.5

// CompletenessAnalyzer reports how much of an expected sampling schedule
// actually materialized over a time window. Reports are derived values,
// recomputed per query and never cached.
type CompletenessAnalyzer struct {
	source    domrepo.SeriesSource
	tolerance float64
}

func NewCompletenessAnalyzer(source domrepo.SeriesSource, tolerance float64) *CompletenessAnalyzer {
	if tolerance <= 0 {
		tolerance = DefaultGapTolerance
	}
	return &CompletenessAnalyzer{source: source, tolerance: tolerance}
}

// Report fetches the series for key over [start, end] and analyzes it.
func (a *CompletenessAnalyzer) Report(ctx context.Context, key models.Key, start, end time.Time, expectedInterval time.Duration) (models.CompletenessReport, error) {
	series, err := a.source.GetHistoricalSeries(ctx, key, start, end)
	if err != nil {
		return models.CompletenessReport{}, fmt.Errorf("fetch series %s: %w", key, err)
	}
	report, err := a.Analyze(series.Timestamps(), start, end, expectedInterval)
	if err != nil {
		return models.CompletenessReport{}, err
	}
	report.Key = key
	return report, nil
}

// Analyze detects missing sampling intervals in a set of timestamps.
// Input need not be sorted or unique; points outside [start, end] are
// discarded.
func (a *CompletenessAnalyzer) Analyze(timestamps []time.Time, start, end time.Time, expectedInterval time.Duration) (models.CompletenessReport, error) {
	if !end.After(start) {
		return models.CompletenessReport{}, &models.ValidationError{
			Reason: fmt.Sprintf("range end %s not after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339)),
		}
	}
	if expectedInterval <= 0 {
		return models.CompletenessReport{}, &models.ValidationError{Reason: "expected interval must be positive"}
	}

	ts := normalizeTimestamps(timestamps, start, end)

	expected := int(end.Sub(start)/expectedInterval) + 1
	report := models.CompletenessReport{
		ExpectedPoints: expected,
		ActualPoints:   len(ts),
	}

	if len(ts) == 0 {
		report.MissingIntervals = []models.MissingInterval{{Start: start, End: end}}
		return report, nil
	}

	tolerated := time.Duration(float64(expectedInterval) * a.tolerance)

	// Head gap: schedule start to first observed point.
	if ts[0].Sub(start) > tolerated {
		report.MissingIntervals = append(report.MissingIntervals, models.MissingInterval{
			Start: start,
			End:   ts[0].Add(-expectedInterval),
		})
	}
	// Interior gaps between consecutive points.
	for i := 1; i < len(ts); i++ {
		if ts[i].Sub(ts[i-1]) > tolerated {
			report.MissingIntervals = append(report.MissingIntervals, models.MissingInterval{
				Start: ts[i-1].Add(expectedInterval),
				End:   ts[i].Add(-expectedInterval),
			})
		}
	}
	// Tail gap: last observed point to schedule end.
	if end.Sub(ts[len(ts)-1]) > tolerated {
		report.MissingIntervals = append(report.MissingIntervals, models.MissingInterval{
			Start: ts[len(ts)-1].Add(expectedInterval),
			End:   end,
		})
	}

	pct := float64(report.ActualPoints) / float64(report.ExpectedPoints) * 100
	report.Completeness = clamp(pct, 0, 100)
	return report, nil
}

// normalizeTimestamps sorts, deduplicates and window-filters.
func normalizeTimestamps(in []time.Time, start, end time.Time) []time.Time {
	out := make([]time.Time, 0, len(in))
	for _, t := range in {
		if t.Before(start) || t.After(end) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })

	dedup := out[:0]
	for _, t := range out {
		if n := len(dedup); n > 0 && dedup[n-1].Equal(t) {
			continue
		}
		dedup = append(dedup, t)
	}
	return dedup
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
