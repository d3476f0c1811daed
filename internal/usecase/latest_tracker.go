package usecase

import (
	"sync"
	"time"

	"LoadCast/internal/domain/models"
)

// LatestTracker remembers the newest ingested timestamp per key. The
// forecaster compares against it to decide whether a stored model is
// still current.
type LatestTracker struct {
	mu     sync.RWMutex
	latest map[models.Key]time.Time
}

func NewLatestTracker() *LatestTracker {
	return &LatestTracker{latest: make(map[models.Key]time.Time)}
}

// Track records ts if it is newer than the current high-water mark.
func (t *LatestTracker) Track(key models.Key, ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ts.After(t.latest[key]) {
		t.latest[key] = ts
	}
}

// Latest returns the newest known timestamp for key, zero when the key
// has never been seen.
func (t *LatestTracker) Latest(key models.Key) time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest[key]
}

// Keys returns every tracked key.
func (t *LatestTracker) Keys() []models.Key {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]models.Key, 0, len(t.latest))
	for k := range t.latest {
		keys = append(keys, k)
	}
	return keys
}

// Forget drops the key's high-water mark.
func (t *LatestTracker) Forget(key models.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.latest, key)
}
