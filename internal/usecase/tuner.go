package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"

	"LoadCast/internal/domain/models"
	"LoadCast/internal/domain/service"
	"LoadCast/internal/services/evaluation"
)

// TunerConfig drives the validation split and the candidate pool.
type TunerConfig struct {
	// MinPointsForCV: series at least this long use expanding-window
	// cross-validation, shorter ones fall back to holdout.
	MinPointsForCV int
	// CVFolds is the number of sequential folds k.
	CVFolds int
	// CVHorizon is the validation segment length h per fold, in points.
	CVHorizon int
	// HoldoutFraction is the trailing fraction validated in holdout
	// mode.
	HoldoutFraction float64
	// Workers caps concurrent candidate fits.
	Workers int
}

func (c TunerConfig) withDefaults() TunerConfig {
	if c.MinPointsForCV <= 0 {
		c.MinPointsForCV = 100
	}
	if c.CVFolds <= 0 {
		c.CVFolds = 3
	}
	if c.CVHorizon <= 0 {
		c.CVHorizon = 12
	}
	if c.HoldoutFraction <= 0 || c.HoldoutFraction >= 1 {
		c.HoldoutFraction = 0.2
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	return c
}

// TuneResult is the selected configuration.
type TuneResult struct {
	Params models.HyperparameterSet
	// Score is the mean validation MAPE; NaN when tuning was skipped or
	// the winner's score was not computable.
	Score float64
	// Skipped marks the short-series fallback to the grid default.
	Skipped bool
	// CandidateIndex is the winner's position in grid order, -1 when
	// skipped.
	CandidateIndex int
}

// Tuner selects a hyperparameter configuration from an ordered grid.
// Candidates are fitted concurrently on a worker pool but selection is
// deterministic: results are ranked by validation score with ties broken
// by grid index, never by completion order.
type Tuner struct {
	backend service.ModelBackend
	cfg     TunerConfig
}

func NewTuner(backend service.ModelBackend, cfg TunerConfig) *Tuner {
	return &Tuner{backend: backend, cfg: cfg.withDefaults()}
}

// fold is one train-prefix/validation-segment split. Expanding window:
// every fold trains on all data before its validation segment, so time
// order is preserved and nothing leaks backwards.
type fold struct {
	trainEnd int // exclusive
	valEnd   int // exclusive
}

// Tune evaluates every grid candidate and returns the winner.
func (t *Tuner) Tune(ctx context.Context, series models.AugmentedSeries, grid models.Grid) (TuneResult, error) {
	if len(grid.Candidates) == 0 {
		return TuneResult{}, fmt.Errorf("empty hyperparameter grid")
	}

	folds, skipped := t.splits(series.Len())
	if skipped {
		return TuneResult{
			Params:         grid.Default(),
			Score:          math.NaN(),
			Skipped:        true,
			CandidateIndex: -1,
		}, nil
	}

	type outcome struct {
		score float64
		err   error
	}
	results := make([]outcome, len(grid.Candidates))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < t.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				score, err := t.scoreCandidate(series, grid.Candidates[idx], folds)
				results[idx] = outcome{score: score, err: err}
			}
		}()
	}

dispatch:
	for idx := range grid.Candidates {
		select {
		case jobs <- idx:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return TuneResult{}, err
	}

	// Deterministic selection: scan in grid order so an equal or
	// not-computable score never displaces an earlier candidate.
	best := -1
	for idx, r := range results {
		if r.err != nil {
			continue
		}
		if best == -1 || lessScore(r.score, results[best].score) {
			best = idx
		}
	}
	if best == -1 {
		return TuneResult{}, &models.TrainingFailedError{
			Key:    series.Key,
			Reason: fmt.Sprintf("all %d grid candidates failed to train", len(grid.Candidates)),
		}
	}

	return TuneResult{
		Params:         grid.Candidates[best],
		Score:          results[best].score,
		CandidateIndex: best,
	}, nil
}

// splits decides the validation scheme for a series of length n.
func (t *Tuner) splits(n int) (folds []fold, skipped bool) {
	if n >= t.cfg.MinPointsForCV {
		k, h := t.cfg.CVFolds, t.cfg.CVHorizon
		// shrink folds rather than starve the first training prefix
		for k > 1 && n-k*h < h {
			k--
		}
		if n-k*h >= 2 {
			for j := 0; j < k; j++ {
				trainEnd := n - (k-j)*h
				folds = append(folds, fold{trainEnd: trainEnd, valEnd: trainEnd + h})
			}
			return folds, false
		}
	}

	// Holdout: train on the leading (1-p), validate on the trailing p.
	valLen := int(float64(n) * t.cfg.HoldoutFraction)
	if valLen < 2 || n-valLen < 2 {
		return nil, true
	}
	return []fold{{trainEnd: n - valLen, valEnd: n}}, false
}

// scoreCandidate fits the candidate once per fold and averages the
// validation MAPE over folds where it is computable.
func (t *Tuner) scoreCandidate(series models.AugmentedSeries, params models.HyperparameterSet, folds []fold) (float64, error) {
	var sum float64
	computable := 0
	for _, f := range folds {
		train := subSeries(series, 0, f.trainEnd)
		blob, err := t.backend.Fit(train, params)
		if err != nil {
			return 0, fmt.Errorf("fold fit [0:%d): %w", f.trainEnd, err)
		}

		val := subSeries(series, f.trainEnd, f.valEnd)
		points, err := t.backend.PredictAt(blob, val.Timestamps(), 0.8)
		if err != nil {
			return 0, fmt.Errorf("fold predict [%d:%d): %w", f.trainEnd, f.valEnd, err)
		}
		predicted := make([]float64, len(points))
		for i, p := range points {
			predicted[i] = p.Value
		}

		mape, err := evaluation.MAPE(val.Values(), predicted)
		if err != nil {
			return 0, err
		}
		if !evaluation.NotComputable(mape) {
			sum += mape
			computable++
		}
	}
	if computable == 0 {
		return math.NaN(), nil
	}
	return sum / float64(computable), nil
}

// lessScore orders candidate scores: any computable score beats NaN,
// and strict inequality is required so grid order wins ties.
func lessScore(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a < b
}

func subSeries(s models.AugmentedSeries, start, end int) models.AugmentedSeries {
	return models.AugmentedSeries{
		MetricSeries: models.MetricSeries{Key: s.Key, Samples: s.Samples[start:end]},
		Features:     s.Features[start:end],
	}
}
