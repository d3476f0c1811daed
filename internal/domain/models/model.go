package models

import "time"

// QualityMetrics summarizes fit quality. MAPE is NaN when not computable
// (all actual values zero).
type QualityMetrics struct {
	MAPE float64 `json:"mape"`
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
}

// TrainedModel is an opaque fitted-model handle plus training metadata.
// Once saved it is owned by the model store; callers hold a borrowed
// reference while predicting.
type TrainedModel struct {
	Key             Key               `json:"key"`
	Hyperparameters HyperparameterSet `json:"hyperparameters"`
	TrainedAt       time.Time         `json:"trained_at"`
	WindowStart     time.Time         `json:"window_start"`
	WindowEnd       time.Time         `json:"window_end"`
	Quality         QualityMetrics    `json:"quality"`
	TuningSkipped   bool              `json:"tuning_skipped"`
	DataPoints      int               `json:"data_points"`

	// Blob is the backend-specific serialized fit. The forecasting
	// backend is the only component that interprets it.
	Blob []byte `json:"blob"`
}

// ForecastPoint is one predicted step with interval bounds.
type ForecastPoint struct {
	Timestamp  time.Time `json:"timestamp"`
	Value      float64   `json:"value"`
	LowerBound float64   `json:"lower_bound"`
	UpperBound float64   `json:"upper_bound"`
}

// ForecastResult is a horizon of predictions at one confidence level.
// Regenerable from the TrainedModel; not persisted by this core.
type ForecastResult struct {
	Key             Key             `json:"key"`
	ConfidenceLevel float64         `json:"confidence_level"`
	GeneratedAt     time.Time       `json:"generated_at"`
	Points          []ForecastPoint `json:"points"`
}

// PointAt returns the forecast point nearest ts. Observed timestamps
// rarely land exactly on a forecast step, so any ts within half the step
// spacing of a point matches it; a single-point forecast matches exactly.
func (f *ForecastResult) PointAt(ts time.Time) (ForecastPoint, bool) {
	if f == nil || len(f.Points) == 0 {
		return ForecastPoint{}, false
	}
	best := 0
	bestDist := absDuration(f.Points[0].Timestamp.Sub(ts))
	for i := 1; i < len(f.Points); i++ {
		if d := absDuration(f.Points[i].Timestamp.Sub(ts)); d < bestDist {
			best, bestDist = i, d
		}
	}
	if len(f.Points) == 1 {
		if bestDist == 0 {
			return f.Points[0], true
		}
		return ForecastPoint{}, false
	}
	step := f.Points[1].Timestamp.Sub(f.Points[0].Timestamp)
	if step > 0 && bestDist <= step/2 {
		return f.Points[best], true
	}
	return ForecastPoint{}, false
}

// BoundsAt returns the interval bounds of the point nearest ts.
func (f *ForecastResult) BoundsAt(ts time.Time) (lower, upper float64, ok bool) {
	p, ok := f.PointAt(ts)
	if !ok {
		return 0, 0, false
	}
	return p.LowerBound, p.UpperBound, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
