package models

import "time"

// MissingInterval is a sub-range of a query window with no qualifying
// samples beyond tolerance.
type MissingInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CompletenessReport is a derived value, recomputed per query.
type CompletenessReport struct {
	Key              Key               `json:"key"`
	ExpectedPoints   int               `json:"expected_points"`
	ActualPoints     int               `json:"actual_points"`
	Completeness     float64           `json:"completeness_percentage"`
	MissingIntervals []MissingInterval `json:"missing_intervals"`
}

// Severity levels attached to flagged anomalies, mildest first.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Anomaly kinds name the check that fired.
const (
	AnomalyCriticalLevel  = "critical_level"
	AnomalyStatistical    = "statistical"
	AnomalyForecastBounds = "forecast_bounds"
	AnomalyRateOfChange   = "rate_of_change"
)

// AnomalyScore is the outcome of scoring one observation against the
// rolling baseline for its key. Severity and Kind are set only when the
// observation is flagged.
type AnomalyScore struct {
	Key           Key       `json:"key"`
	Timestamp     time.Time `json:"timestamp"`
	Value         float64   `json:"value"`
	Baseline      float64   `json:"baseline"`
	Deviation     float64   `json:"deviation"`
	IsAnomaly     bool      `json:"is_anomaly"`
	LowConfidence bool      `json:"low_confidence"`
	Severity      string    `json:"severity,omitempty"`
	Kind          string    `json:"kind,omitempty"`
}
