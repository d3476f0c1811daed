package service

import (
	"time"

	"LoadCast/internal/domain/models"
)

// ModelBackend is the opaque forecasting capability. Any seasonal
// regression implementation can sit behind it; the trained fit travels as
// serialized bytes so the on-disk format is not bound to one library.
type ModelBackend interface {
	// Fit trains on the augmented series per the hyperparameters and
	// returns the serialized fit.
	Fit(series models.AugmentedSeries, params models.HyperparameterSet) ([]byte, error)

	// Predict extends the time axis past the training window by horizon
	// steps at the given frequency and applies the fit.
	Predict(blob []byte, horizon int, frequency time.Duration, confidence float64) ([]models.ForecastPoint, error)

	// PredictAt applies the fit at explicit timestamps. Used for
	// in-sample evaluation and validation scoring.
	PredictAt(blob []byte, timestamps []time.Time, confidence float64) ([]models.ForecastPoint, error)
}

// AnomalyScorer scores observations against a rolling baseline and,
// when one is attached, the current forecast bounds.
type AnomalyScorer interface {
	Observe(key models.Key, ts time.Time, value float64) models.AnomalyScore
	SetForecast(key models.Key, f *models.ForecastResult)
	Forget(key models.Key)
}
