package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Key identifies one tracked time series: an entity (e.g. a VM) and a
// metric measured on it (e.g. cpu.usage.average).
type Key struct {
	Entity string `json:"entity"`
	Metric string `json:"metric"`
}

func (k Key) String() string {
	return k.Entity + "|" + k.Metric
}

// Sample is a single observation.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Observation is one sample tagged with its key, as delivered by the
// ingestion paths.
type Observation struct {
	Key       Key       `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// MetricSeries is an ordered sequence of samples for one key.
// After Normalize the timestamps are strictly increasing and unique.
type MetricSeries struct {
	Key     Key      `json:"key"`
	Samples []Sample `json:"samples"`
}

// Normalize returns a new series sorted ascending by timestamp with
// duplicate timestamps collapsed last-write-wins. The receiver is not
// modified.
func (s MetricSeries) Normalize() MetricSeries {
	if len(s.Samples) == 0 {
		return MetricSeries{Key: s.Key}
	}

	sorted := make([]Sample, len(s.Samples))
	copy(sorted, s.Samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := make([]Sample, 0, len(sorted))
	for _, sm := range sorted {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(sm.Timestamp) {
			out[n-1] = sm // last write wins
			continue
		}
		out = append(out, sm)
	}
	return MetricSeries{Key: s.Key, Samples: out}
}

// Len returns the number of samples.
func (s MetricSeries) Len() int { return len(s.Samples) }

// Values returns the sample values in order.
func (s MetricSeries) Values() []float64 {
	out := make([]float64, len(s.Samples))
	for i, sm := range s.Samples {
		out[i] = sm.Value
	}
	return out
}

// Timestamps returns the sample timestamps in order.
func (s MetricSeries) Timestamps() []time.Time {
	out := make([]time.Time, len(s.Samples))
	for i, sm := range s.Samples {
		out[i] = sm.Timestamp
	}
	return out
}

// Validate checks every value is finite.
func (s MetricSeries) Validate() error {
	for i, sm := range s.Samples {
		if math.IsNaN(sm.Value) || math.IsInf(sm.Value, 0) {
			return &ValidationError{Reason: fmt.Sprintf("non-finite value at index %d (%s)", i, sm.Timestamp.Format(time.RFC3339))}
		}
	}
	return nil
}

// CalendarFeatures are deterministic regressors derived from one timestamp.
type CalendarFeatures struct {
	HourOfDay      int  `json:"hour_of_day"`
	DayOfWeek      int  `json:"day_of_week"` // 0=Monday .. 6=Sunday
	DayOfMonth     int  `json:"day_of_month"`
	WeekOfYear     int  `json:"week_of_year"`
	Month          int  `json:"month"`
	Quarter        int  `json:"quarter"`
	IsWeekend      bool `json:"is_weekend"`
	IsMonthStart   bool `json:"is_month_start"`
	IsMonthEnd     bool `json:"is_month_end"`
	IsQuarterStart bool `json:"is_quarter_start"`
	IsQuarterEnd   bool `json:"is_quarter_end"`
	IsYearStart    bool `json:"is_year_start"`
	IsYearEnd      bool `json:"is_year_end"`
}

// AugmentedSeries is a MetricSeries with one CalendarFeatures row per
// sample. Features are recomputable from timestamps and never persisted
// on their own.
type AugmentedSeries struct {
	MetricSeries
	Features []CalendarFeatures `json:"features"`
}
