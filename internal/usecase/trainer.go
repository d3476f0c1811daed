package usecase

import (
	"time"

	"LoadCast/internal/domain/models"
	"LoadCast/internal/domain/service"
	"LoadCast/internal/services/evaluation"
)

// TrainerConfig bounds what the trainer accepts.
type TrainerConfig struct {
	// MinPoints is the minimum series length; two full seasonal cycles
	// of 30-minute samples by default.
	MinPoints int
}

// Trainer fits one model over an augmented series with a chosen
// hyperparameter set and attaches in-sample quality metrics. Training is
// a blocking, potentially long-running call; orchestration owns pooling
// and timeouts.
type Trainer struct {
	backend service.ModelBackend
	cfg     TrainerConfig
}

func NewTrainer(backend service.ModelBackend, cfg TrainerConfig) *Trainer {
	if cfg.MinPoints < 2 {
		cfg.MinPoints = 96
	}
	return &Trainer{backend: backend, cfg: cfg}
}

// MinPoints exposes the configured floor for orchestration-level checks.
func (t *Trainer) MinPoints() int { return t.cfg.MinPoints }

// Train fits and evaluates. Degenerate input (too short, constant)
// surfaces as typed errors rather than a bad fit.
func (t *Trainer) Train(series models.AugmentedSeries, params models.HyperparameterSet) (*models.TrainedModel, error) {
	n := series.Len()
	if n < t.cfg.MinPoints {
		return nil, &models.DataInsufficientError{Key: series.Key, Points: n, Min: t.cfg.MinPoints, Op: "train"}
	}
	if isConstant(series.Values()) {
		return nil, &models.TrainingFailedError{Key: series.Key, Reason: "constant series has no signal to fit"}
	}

	blob, err := t.backend.Fit(series, params)
	if err != nil {
		return nil, &models.TrainingFailedError{Key: series.Key, Reason: "backend fit", Err: err}
	}

	quality, err := t.evaluateInSample(series, blob)
	if err != nil {
		return nil, &models.TrainingFailedError{Key: series.Key, Reason: "in-sample evaluation", Err: err}
	}

	return &models.TrainedModel{
		Key:             series.Key,
		Hyperparameters: params,
		TrainedAt:       time.Now().UTC(),
		WindowStart:     series.Samples[0].Timestamp,
		WindowEnd:       series.Samples[n-1].Timestamp,
		Quality:         quality,
		DataPoints:      n,
		Blob:            blob,
	}, nil
}

// evaluateInSample replays the training timestamps through the fitted
// model and scores the fit against the data it was trained on.
func (t *Trainer) evaluateInSample(series models.AugmentedSeries, blob []byte) (models.QualityMetrics, error) {
	points, err := t.backend.PredictAt(blob, series.Timestamps(), 0.8)
	if err != nil {
		return models.QualityMetrics{}, err
	}
	fitted := make([]float64, len(points))
	for i, p := range points {
		fitted[i] = p.Value
	}

	actual := series.Values()
	mape, err := evaluation.MAPE(actual, fitted)
	if err != nil {
		return models.QualityMetrics{}, err
	}
	mae, err := evaluation.MAE(actual, fitted)
	if err != nil {
		return models.QualityMetrics{}, err
	}
	rmse, err := evaluation.RMSE(actual, fitted)
	if err != nil {
		return models.QualityMetrics{}, err
	}
	return models.QualityMetrics{MAPE: mape, MAE: mae, RMSE: rmse}, nil
}

func isConstant(values []float64) bool {
	for i := 1; i < len(values); i++ {
		if values[i] != values[0] {
			return false
		}
	}
	return true
}

