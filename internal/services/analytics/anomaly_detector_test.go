package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"LoadCast/internal/domain/models"
)

var testKey = models.Key{Entity: "vm-01", Metric: "cpu.usage.average"}

// feed pushes a stable baseline with small alternating jitter so the
// window has non-zero variance.
func feed(d *RollingDetector, n int, base float64) time.Time {
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		jitter := 1.0
		if i%2 == 0 {
			jitter = -1.0
		}
		d.Observe(testKey, ts, base+jitter)
		ts = ts.Add(30 * time.Minute)
	}
	return ts
}

func TestSpikeTenSigmaFlags(t *testing.T) {
	d := NewRollingDetector(DetectorConfig{Window: 24, Threshold: 3})
	ts := feed(d, 24, 50)

	// window: mean 50, stddev ~1. Ten sigma above.
	score := d.Observe(testKey, ts, 60)
	assert.True(t, score.IsAnomaly)
	assert.False(t, score.LowConfidence)
	assert.Greater(t, score.Deviation, 3.0)
	assert.InDelta(t, 50, score.Baseline, 0.1)
}

func TestWithinOneSigmaNeverFlags(t *testing.T) {
	d := NewRollingDetector(DetectorConfig{Window: 24, Threshold: 3})
	ts := feed(d, 24, 50)

	for i := 0; i < 10; i++ {
		score := d.Observe(testKey, ts, 50.5)
		assert.False(t, score.IsAnomaly, "observation %d", i)
		ts = ts.Add(30 * time.Minute)
	}
}

func TestColdStartLowConfidence(t *testing.T) {
	d := NewRollingDetector(DetectorConfig{Window: 10, Threshold: 3})
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		score := d.Observe(testKey, ts, float64(50+i%2))
		assert.True(t, score.LowConfidence, "observation %d", i)
		ts = ts.Add(time.Minute)
	}
	score := d.Observe(testKey, ts, 50)
	assert.False(t, score.LowConfidence)
}

func TestZeroVarianceGuard(t *testing.T) {
	d := NewRollingDetector(DetectorConfig{Window: 8, Threshold: 3})
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		d.Observe(testKey, ts, 42)
		ts = ts.Add(time.Minute)
	}

	same := d.Observe(testKey, ts, 42)
	assert.False(t, same.IsAnomaly)
	assert.Equal(t, 0.0, same.Deviation)

	diff := d.Observe(testKey, ts.Add(time.Minute), 43)
	assert.True(t, diff.IsAnomaly)
	assert.False(t, math.IsInf(diff.Deviation, 0))
	assert.Greater(t, diff.Deviation, 3.0)
}

func TestForecastBoundsCrossCheck(t *testing.T) {
	d := NewRollingDetector(DetectorConfig{Window: 24, Threshold: 3})
	ts := feed(d, 24, 50)

	d.SetForecast(testKey, &models.ForecastResult{
		Key: testKey,
		Points: []models.ForecastPoint{
			{Timestamp: ts, Value: 50, LowerBound: 49, UpperBound: 51},
		},
	})

	// Statistically unremarkable but outside the forecast interval.
	score := d.Observe(testKey, ts, 51.5)
	assert.True(t, score.IsAnomaly)
	assert.Less(t, math.Abs(score.Deviation), 3.0)
}

func TestCriticalLevelFlagsRegardlessOfBaseline(t *testing.T) {
	d := NewRollingDetector(DetectorConfig{Window: 24, Threshold: 3, CriticalLevel: 80})
	ts := feed(d, 24, 78)

	// Statistically close to the window yet past the hard ceiling.
	score := d.Observe(testKey, ts, 80.5)
	assert.True(t, score.IsAnomaly)
	assert.Equal(t, models.AnomalyCriticalLevel, score.Kind)
	assert.Equal(t, models.SeverityCritical, score.Severity)
	assert.Less(t, math.Abs(score.Deviation), 3.0)
}

func TestStatisticalSeverityLadder(t *testing.T) {
	// Window of alternating 49/51: mean 50, sample stddev ~1.02.
	cases := []struct {
		value    float64
		severity string
	}{
		{51.8, models.SeverityLow},
		{52.5, models.SeverityMedium},
		{53.5, models.SeverityHigh},
		{55.0, models.SeverityCritical},
	}
	for _, tc := range cases {
		d := NewRollingDetector(DetectorConfig{Window: 24, Threshold: 1.5})
		ts := feed(d, 24, 50)
		score := d.Observe(testKey, ts, tc.value)
		assert.True(t, score.IsAnomaly, "value %v", tc.value)
		assert.Equal(t, models.AnomalyStatistical, score.Kind, "value %v", tc.value)
		assert.Equal(t, tc.severity, score.Severity, "value %v", tc.value)
	}
}

func TestRateOfChangeFlagsJump(t *testing.T) {
	d := NewRollingDetector(DetectorConfig{Window: 24, Threshold: 50, RateOfChange: 20})
	ts := feed(d, 24, 50)

	// Unremarkable against the loose statistical threshold but a steep
	// jump from the previous sample.
	score := d.Observe(testKey, ts, 75)
	assert.True(t, score.IsAnomaly)
	assert.Equal(t, models.AnomalyRateOfChange, score.Kind)
	assert.Equal(t, models.SeverityMedium, score.Severity)

	score = d.Observe(testKey, ts.Add(30*time.Minute), 110)
	assert.True(t, score.IsAnomaly)
	assert.Equal(t, models.AnomalyRateOfChange, score.Kind)
	assert.Equal(t, models.SeverityHigh, score.Severity)
}

func TestForecastBoundsMatchesJitteredTimestamp(t *testing.T) {
	d := NewRollingDetector(DetectorConfig{Window: 24, Threshold: 3})
	ts := feed(d, 24, 50)

	step := 30 * time.Minute
	d.SetForecast(testKey, &models.ForecastResult{
		Key: testKey,
		Points: []models.ForecastPoint{
			{Timestamp: ts, Value: 50, LowerBound: 49, UpperBound: 51},
			{Timestamp: ts.Add(step), Value: 50, LowerBound: 49, UpperBound: 51},
		},
	})

	// Observations land a few minutes off the forecast steps; the
	// nearest step still cross-checks them.
	score := d.Observe(testKey, ts.Add(4*time.Minute), 51.5)
	assert.True(t, score.IsAnomaly)
	assert.Equal(t, models.AnomalyForecastBounds, score.Kind)
	assert.Equal(t, models.SeverityMedium, score.Severity)

	// Past half a step from every point there is nothing to check.
	score = d.Observe(testKey, ts.Add(step+16*time.Minute), 51.5)
	assert.False(t, score.IsAnomaly)
}

func TestForgetResetsState(t *testing.T) {
	d := NewRollingDetector(DetectorConfig{Window: 24, Threshold: 3})
	ts := feed(d, 24, 50)
	assert.Equal(t, 1, d.TrackedKeys())

	d.Forget(testKey)
	assert.Equal(t, 0, d.TrackedKeys())

	score := d.Observe(testKey, ts, 1000)
	assert.True(t, score.LowConfidence)
	assert.False(t, score.IsAnomaly) // no baseline after teardown
}

func TestWindowEviction(t *testing.T) {
	d := NewRollingDetector(DetectorConfig{Window: 4, Threshold: 3})
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	// Old regime far from new one; once the window rolls past it the
	// baseline must follow.
	for i := 0; i < 4; i++ {
		d.Observe(testKey, ts, 10)
		ts = ts.Add(time.Minute)
	}
	for i := 0; i < 8; i++ {
		jitter := 1.0
		if i%2 == 0 {
			jitter = -1.0
		}
		d.Observe(testKey, ts, 100+jitter)
		ts = ts.Add(time.Minute)
	}
	score := d.Observe(testKey, ts, 100)
	assert.InDelta(t, 100, score.Baseline, 1.0)
	assert.False(t, score.IsAnomaly)
}
