package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"LoadCast/internal/domain/models"
)

func TestLatestTrackerMonotonic(t *testing.T) {
	tr := NewLatestTracker()
	key := models.Key{Entity: "web-1", Metric: "cpu"}

	now := time.Now()
	tr.Track(key, now)
	assert.Equal(t, now, tr.Latest(key))

	// older samples never move the high-water mark back
	tr.Track(key, now.Add(-time.Hour))
	assert.Equal(t, now, tr.Latest(key))

	later := now.Add(time.Minute)
	tr.Track(key, later)
	assert.Equal(t, later, tr.Latest(key))
}

func TestLatestTrackerUnknownKeyIsZero(t *testing.T) {
	tr := NewLatestTracker()
	assert.True(t, tr.Latest(models.Key{Entity: "nope", Metric: "cpu"}).IsZero())
}

func TestLatestTrackerKeysAndForget(t *testing.T) {
	tr := NewLatestTracker()
	a := models.Key{Entity: "web-1", Metric: "cpu"}
	b := models.Key{Entity: "web-2", Metric: "mem"}
	tr.Track(a, time.Now())
	tr.Track(b, time.Now())

	assert.ElementsMatch(t, []models.Key{a, b}, tr.Keys())

	tr.Forget(a)
	assert.ElementsMatch(t, []models.Key{b}, tr.Keys())
	assert.True(t, tr.Latest(a).IsZero())
}
