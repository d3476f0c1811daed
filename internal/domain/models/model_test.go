package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func halfHourForecast(n int) *ForecastResult {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	points := make([]ForecastPoint, n)
	for i := range points {
		points[i] = ForecastPoint{
			Timestamp:  start.Add(time.Duration(i) * 30 * time.Minute),
			Value:      float64(50 + i),
			LowerBound: float64(45 + i),
			UpperBound: float64(55 + i),
		}
	}
	return &ForecastResult{Points: points}
}

func TestPointAtSnapsToNearestStep(t *testing.T) {
	f := halfHourForecast(4)
	base := f.Points[1].Timestamp

	p, ok := f.PointAt(base.Add(9 * time.Minute))
	assert.True(t, ok)
	assert.Equal(t, f.Points[1], p)

	p, ok = f.PointAt(base.Add(-14 * time.Minute))
	assert.True(t, ok)
	assert.Equal(t, f.Points[1], p)

	// past half a step from the horizon edge
	_, ok = f.PointAt(f.Points[3].Timestamp.Add(16 * time.Minute))
	assert.False(t, ok)
}

func TestBoundsAtSinglePointMatchesExactly(t *testing.T) {
	f := halfHourForecast(1)

	lo, hi, ok := f.BoundsAt(f.Points[0].Timestamp)
	assert.True(t, ok)
	assert.Equal(t, 45.0, lo)
	assert.Equal(t, 55.0, hi)

	_, _, ok = f.BoundsAt(f.Points[0].Timestamp.Add(time.Minute))
	assert.False(t, ok)

	var empty *ForecastResult
	_, _, ok = empty.BoundsAt(f.Points[0].Timestamp)
	assert.False(t, ok)
}
