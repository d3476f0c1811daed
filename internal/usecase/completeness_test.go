package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LoadCast/internal/domain/models"
)

const interval = 30 * time.Minute

func evenTimestamps(start time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * interval)
	}
	return out
}

func TestCompletenessTwoGapBlocks(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	full := evenTimestamps(start, 100)
	end := full[99]

	// Delete 5 points in two contiguous blocks: indices 20-22 and 60-61.
	var ts []time.Time
	for i, v := range full {
		if (i >= 20 && i <= 22) || i == 60 || i == 61 {
			continue
		}
		ts = append(ts, v)
	}

	a := NewCompletenessAnalyzer(nil, DefaultGapTolerance)
	report, err := a.Analyze(ts, start, end, interval)
	require.NoError(t, err)

	assert.Equal(t, 100, report.ExpectedPoints)
	assert.Equal(t, 95, report.ActualPoints)
	assert.Equal(t, 95.0, report.Completeness)
	require.Len(t, report.MissingIntervals, 2)

	assert.Equal(t, full[20], report.MissingIntervals[0].Start)
	assert.Equal(t, full[22], report.MissingIntervals[0].End)
	assert.Equal(t, full[60], report.MissingIntervals[1].Start)
	assert.Equal(t, full[61], report.MissingIntervals[1].End)
}

func TestCompletenessEmptySeries(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	a := NewCompletenessAnalyzer(nil, DefaultGapTolerance)
	report, err := a.Analyze(nil, start, end, interval)
	require.NoError(t, err)

	assert.Equal(t, 0.0, report.Completeness)
	assert.Equal(t, 0, report.ActualPoints)
	require.Len(t, report.MissingIntervals, 1)
	assert.Equal(t, start, report.MissingIntervals[0].Start)
	assert.Equal(t, end, report.MissingIntervals[0].End)
}

func TestCompletenessHeadAndTailGaps(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(10 * interval)

	// Points only in the middle of the window.
	ts := []time.Time{
		start.Add(4 * interval),
		start.Add(5 * interval),
		start.Add(6 * interval),
	}

	a := NewCompletenessAnalyzer(nil, DefaultGapTolerance)
	report, err := a.Analyze(ts, start, end, interval)
	require.NoError(t, err)

	require.Len(t, report.MissingIntervals, 2)
	assert.Equal(t, start, report.MissingIntervals[0].Start)
	assert.Equal(t, start.Add(3*interval), report.MissingIntervals[0].End)
	assert.Equal(t, start.Add(7*interval), report.MissingIntervals[1].Start)
	assert.Equal(t, end, report.MissingIntervals[1].End)
}

func TestCompletenessJitterWithinTolerance(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	n := 20
	ts := make([]time.Time, n)
	for i := range ts {
		jitter := time.Duration(i%3) * time.Minute
		ts[i] = start.Add(time.Duration(i)*interval + jitter)
	}
	end := start.Add(time.Duration(n-1) * interval)

	a := NewCompletenessAnalyzer(nil, DefaultGapTolerance)
	report, err := a.Analyze(ts, start, end.Add(2*time.Minute), interval)
	require.NoError(t, err)
	assert.Empty(t, report.MissingIntervals)
	assert.Equal(t, 100.0, report.Completeness)
}

func TestCompletenessDropsOutOfRangeAndDuplicates(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(4 * interval)

	ts := []time.Time{
		start.Add(-interval), // before window
		start,
		start, // duplicate
		start.Add(interval),
		start.Add(2 * interval),
		start.Add(3 * interval),
		start.Add(4 * interval),
		end.Add(interval), // after window
	}

	a := NewCompletenessAnalyzer(nil, DefaultGapTolerance)
	report, err := a.Analyze(ts, start, end, interval)
	require.NoError(t, err)
	assert.Equal(t, 5, report.ActualPoints)
	assert.Equal(t, 100.0, report.Completeness)
}

func TestCompletenessInvertedRange(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	a := NewCompletenessAnalyzer(nil, DefaultGapTolerance)

	_, err := a.Analyze(nil, start, start, interval)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = a.Analyze(nil, start, start.Add(-time.Hour), interval)
	require.ErrorAs(t, err, &verr)
}

func TestCompletenessClampsOverfullWindows(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(4 * interval)

	// Samples arriving twice as often as expected.
	var ts []time.Time
	for i := 0; i <= 8; i++ {
		ts = append(ts, start.Add(time.Duration(i)*interval/2))
	}

	a := NewCompletenessAnalyzer(nil, DefaultGapTolerance)
	report, err := a.Analyze(ts, start, end, interval)
	require.NoError(t, err)
	assert.Equal(t, 100.0, report.Completeness)
}
