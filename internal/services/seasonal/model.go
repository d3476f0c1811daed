package seasonal

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"LoadCast/internal/domain/models"
	"LoadCast/internal/domain/service"
	"LoadCast/internal/services/features"
)

const (
	dailyPeriod  = 24 * time.Hour
	weeklyPeriod = 7 * 24 * time.Hour

	dailyFourierOrder  = 3
	weeklyFourierOrder = 3
)

// Backend fits a ridge-regularized seasonal regression: a piecewise
// linear trend with changepoints, daily and weekly Fourier seasonality
// and the calendar regressors as exogenous features. It satisfies
// service.ModelBackend; the on-wire fit is a JSON coefficient blob so no
// caller depends on the internals.
type Backend struct{}

func NewBackend() *Backend { return &Backend{} }

var _ service.ModelBackend = (*Backend)(nil)

// fit is the serialized form of a trained model.
type fit struct {
	Params     models.HyperparameterSet `json:"params"`
	Origin     int64                    `json:"origin"`      // unix seconds of first training sample
	SpanSec    float64                  `json:"span_sec"`    // training window length in seconds
	WindowEnd  int64                    `json:"window_end"`  // unix seconds of last training sample
	Coef       []float64                `json:"coef"`        // column order fixed by buildRow
	Sigma      float64                  `json:"sigma"`       // residual std in fit space
	LogSpace   bool                     `json:"log_space"`   // multiplicative mode fits log1p(y)
	Changes    []float64                `json:"changepoints"`
}

// Fit trains on the augmented series. The series must be normalized;
// degenerate input surfaces as an error for the trainer to wrap.
func (b *Backend) Fit(series models.AugmentedSeries, params models.HyperparameterSet) ([]byte, error) {
	n := series.Len()
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 points, got %d", n)
	}
	if len(series.Features) != n {
		return nil, fmt.Errorf("feature rows (%d) do not match samples (%d)", len(series.Features), n)
	}

	origin := series.Samples[0].Timestamp
	end := series.Samples[n-1].Timestamp
	span := end.Sub(origin).Seconds()
	if span <= 0 {
		return nil, fmt.Errorf("zero-length training window")
	}

	logSpace := params.SeasonalityMode == models.SeasonalityMultiplicative

	y := make([]float64, n)
	for i, sm := range series.Samples {
		v := sm.Value
		if logSpace {
			if v < 0 {
				return nil, fmt.Errorf("multiplicative mode requires non-negative values, got %g", v)
			}
			v = math.Log1p(v)
		}
		y[i] = v
	}

	changes := changepointGrid(params.ChangepointCount, params.ChangepointRange)

	f := fit{
		Params:    params,
		Origin:    origin.Unix(),
		SpanSec:   span,
		WindowEnd: end.Unix(),
		LogSpace:  logSpace,
		Changes:   changes,
	}

	x := make([][]float64, n)
	for i, sm := range series.Samples {
		x[i] = f.buildRow(sm.Timestamp, series.Features[i])
	}

	coef, err := solveRidge(x, y, f.penalties(len(x[0])))
	if err != nil {
		return nil, fmt.Errorf("seasonal fit: %w", err)
	}
	f.Coef = coef

	// Residual std drives the interval width.
	var ss float64
	for i := range x {
		r := y[i] - dot(x[i], coef)
		ss += r * r
	}
	denom := float64(n - len(coef))
	if denom < 1 {
		denom = 1
	}
	f.Sigma = math.Sqrt(ss / denom)

	return json.Marshal(f)
}

// Predict extends the time axis past the training window and applies the
// fit, returning interval bounds at the requested confidence level.
func (b *Backend) Predict(blob []byte, horizon int, frequency time.Duration, confidence float64) ([]models.ForecastPoint, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	if frequency <= 0 {
		return nil, fmt.Errorf("frequency must be positive, got %v", frequency)
	}
	f, err := decodeFit(blob)
	if err != nil {
		return nil, err
	}

	end := time.Unix(f.WindowEnd, 0).UTC()
	ts := make([]time.Time, horizon)
	for k := 1; k <= horizon; k++ {
		ts[k-1] = end.Add(time.Duration(k) * frequency)
	}
	return f.apply(ts, confidence), nil
}

// PredictAt applies the fit at explicit timestamps, inside or outside the
// training window.
func (b *Backend) PredictAt(blob []byte, timestamps []time.Time, confidence float64) ([]models.ForecastPoint, error) {
	if len(timestamps) == 0 {
		return nil, fmt.Errorf("no timestamps given")
	}
	f, err := decodeFit(blob)
	if err != nil {
		return nil, err
	}
	return f.apply(timestamps, confidence), nil
}

func decodeFit(blob []byte) (*fit, error) {
	var f fit
	if err := json.Unmarshal(blob, &f); err != nil {
		return nil, fmt.Errorf("decode fit: %w", err)
	}
	if len(f.Coef) == 0 || f.SpanSec <= 0 {
		return nil, fmt.Errorf("fit blob is incomplete")
	}
	return &f, nil
}

func (f *fit) apply(timestamps []time.Time, confidence float64) []models.ForecastPoint {
	z := gaussianQuantile(confidence)
	out := make([]models.ForecastPoint, 0, len(timestamps))
	for _, ts := range timestamps {
		row := f.buildRow(ts, features.Calendar(ts))
		yhat := dot(row, f.Coef)
		lo, hi := yhat-z*f.Sigma, yhat+z*f.Sigma
		if f.LogSpace {
			yhat = math.Expm1(yhat)
			lo = math.Expm1(lo)
			hi = math.Expm1(hi)
		}
		// Server-load metrics are non-negative.
		out = append(out, models.ForecastPoint{
			Timestamp:  ts,
			Value:      clampZero(yhat),
			LowerBound: clampZero(lo),
			UpperBound: clampZero(hi),
		})
	}
	return out
}

// buildRow assembles one design-matrix row. Column order: intercept,
// scaled time, changepoint hinges, daily Fourier pairs, weekly Fourier
// pairs, calendar regressors.
func (f *fit) buildRow(ts time.Time, cal models.CalendarFeatures) []float64 {
	x := ts.Sub(time.Unix(f.Origin, 0)).Seconds() / f.SpanSec

	row := make([]float64, 0, f.width())
	row = append(row, 1, x)
	for _, s := range f.Changes {
		row = append(row, hinge(x-s))
	}
	if f.Params.DailySeasonality {
		row = appendFourier(row, secondsIntoPeriod(ts, dailyPeriod), dailyPeriod.Seconds(), dailyFourierOrder)
	}
	if f.Params.WeeklySeasonality {
		row = appendFourier(row, secondsIntoWeek(ts), weeklyPeriod.Seconds(), weeklyFourierOrder)
	}
	row = append(row, features.Regressors(cal)...)
	return row
}

func (f *fit) width() int {
	w := 2 + len(f.Changes) + features.RegressorCount
	if f.Params.DailySeasonality {
		w += 2 * dailyFourierOrder
	}
	if f.Params.WeeklySeasonality {
		w += 2 * weeklyFourierOrder
	}
	return w
}

// penalties maps the prior scales to per-column ridge weights. A larger
// prior scale means a weaker penalty, mirroring the usual Bayesian
// reading of the hyperparameters.
func (f *fit) penalties(width int) []float64 {
	pen := make([]float64, 0, width)
	pen = append(pen, 1e-8, 1e-8) // keep the system SPD without biasing the trend
	for range f.Changes {
		pen = append(pen, invScale(f.Params.ChangepointPriorScale))
	}
	if f.Params.DailySeasonality {
		for i := 0; i < 2*dailyFourierOrder; i++ {
			pen = append(pen, invScale(f.Params.SeasonalityPriorScale))
		}
	}
	if f.Params.WeeklySeasonality {
		for i := 0; i < 2*weeklyFourierOrder; i++ {
			pen = append(pen, invScale(f.Params.SeasonalityPriorScale))
		}
	}
	for i := 0; i < features.RegressorCount; i++ {
		pen = append(pen, invScale(f.Params.HolidayPriorScale))
	}
	return pen
}

// changepointGrid places count hinge knots uniformly over [0, rng].
func changepointGrid(count int, rng float64) []float64 {
	if count <= 0 || rng <= 0 {
		return nil
	}
	out := make([]float64, count)
	for j := 1; j <= count; j++ {
		out[j-1] = rng * float64(j) / float64(count+1)
	}
	return out
}

func appendFourier(row []float64, phase, period float64, order int) []float64 {
	for k := 1; k <= order; k++ {
		arg := 2 * math.Pi * float64(k) * phase / period
		row = append(row, math.Sin(arg), math.Cos(arg))
	}
	return row
}

func secondsIntoPeriod(ts time.Time, period time.Duration) float64 {
	t := ts.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return t.Sub(midnight).Seconds()
}

// secondsIntoWeek measures from Monday 00:00 UTC.
func secondsIntoWeek(ts time.Time) float64 {
	t := ts.UTC()
	dow := int(t.Weekday()+6) % 7
	return float64(dow)*dailyPeriod.Seconds() + secondsIntoPeriod(ts, dailyPeriod)
}

// gaussianQuantile returns z such that a central interval at the given
// confidence level spans ±z standard deviations.
func gaussianQuantile(confidence float64) float64 {
	if confidence <= 0 || confidence >= 1 {
		confidence = 0.8
	}
	return math.Sqrt2 * math.Erfinv(confidence)
}

func invScale(scale float64) float64 {
	if scale <= 0 {
		return 1
	}
	return 1 / scale
}

func hinge(v float64) float64 {
	if v > 0 {
		return v
	}
	return 0
}

func clampZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
