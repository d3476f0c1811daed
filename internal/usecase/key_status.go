package usecase

import (
	"context"
	"sync"
	"time"

	"LoadCast/internal/domain/models"
	domrepo "LoadCast/internal/domain/repository"
)

// KeyStatusUseCase assembles one key's health view: stored model,
// completeness over the recent window and ingest freshness. Sections are
// gathered concurrently and fail independently.
type KeyStatusUseCase struct {
	store        domrepo.ModelStore
	completeness *CompletenessAnalyzer
	tracker      *LatestTracker
	window       time.Duration
	interval     time.Duration
	timeout      time.Duration
}

func NewKeyStatusUseCase(store domrepo.ModelStore, completeness *CompletenessAnalyzer, tracker *LatestTracker, window, interval time.Duration) *KeyStatusUseCase {
	if window <= 0 {
		window = 24 * time.Hour
	}
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &KeyStatusUseCase{
		store:        store,
		completeness: completeness,
		tracker:      tracker,
		window:       window,
		interval:     interval,
		timeout:      10 * time.Second,
	}
}

func (uc *KeyStatusUseCase) GetStatus(ctx context.Context, key models.Key) (*models.KeyStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	status := &models.KeyStatus{
		Key:          key,
		Timestamp:    time.Now().UTC(),
		LatestSample: uc.tracker.Latest(key),
		Errors:       map[string]string{},
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	wg.Add(1)
	go func() {
		defer wg.Done()
		model, ok, err := uc.store.Load(ctx, key)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			status.Errors["model"] = err.Error()
			return
		}
		if ok {
			// metadata only; the fit blob has no place in a health view
			trimmed := *model
			trimmed.Blob = nil
			status.Model = &trimmed
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		end := time.Now().UTC()
		report, err := uc.completeness.Report(ctx, key, end.Add(-uc.window), end, uc.interval)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			status.Errors["completeness"] = err.Error()
			return
		}
		status.Completeness = &report
	}()

	wg.Wait()
	if len(status.Errors) == 0 {
		status.Errors = nil
	}
	return status, nil
}
