package analytics

import (
	"math"
	"sync"
	"time"

	"LoadCast/internal/domain/models"
	"LoadCast/internal/domain/service"
)

// zeroVarianceDeviation is the deviation reported when the rolling window
// has no spread and a non-equal value arrives. Finite so scores stay
// JSON-serializable on the alert path.
const zeroVarianceDeviation = 1e12

const stddevEpsilon = 1e-9

// DetectorConfig tunes the rolling baseline.
type DetectorConfig struct {
	// Window is the trailing observation count W.
	Window int
	// Threshold is k: |deviation| > k flags an anomaly.
	Threshold float64
	// CriticalLevel flags any value at or above it outright, whatever
	// the window statistics say. Zero disables the check.
	CriticalLevel float64
	// RateOfChange flags a jump from the previous sample larger than
	// this. Zero disables the check.
	RateOfChange float64
}

// RollingDetector keeps one incrementally updated rolling mean/variance
// per key. Statistics are maintained as a fixed-capacity ring buffer plus
// running sum and sum-of-squares, so each observation is O(1); full
// history is never rescanned. A current forecast can be attached per key
// to cross-check observations against its interval bounds.
type RollingDetector struct {
	cfg DetectorConfig

	mu        sync.Mutex
	states    map[models.Key]*rollingState
	forecasts map[models.Key]*models.ForecastResult
}

type rollingState struct {
	buf   []float64
	head  int
	count int
	sum   float64
	sumsq float64
}

func NewRollingDetector(cfg DetectorConfig) *RollingDetector {
	if cfg.Window <= 1 {
		cfg.Window = 24
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	return &RollingDetector{
		cfg:       cfg,
		states:    make(map[models.Key]*rollingState),
		forecasts: make(map[models.Key]*models.ForecastResult),
	}
}

var _ service.AnomalyScorer = (*RollingDetector)(nil)

// Observe scores the value against the trailing baseline for its key and
// then folds it into the window.
func (d *RollingDetector) Observe(key models.Key, ts time.Time, value float64) models.AnomalyScore {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := d.states[key]
	if st == nil {
		st = &rollingState{buf: make([]float64, d.cfg.Window)}
		d.states[key] = st
	}

	score := models.AnomalyScore{
		Key:           key,
		Timestamp:     ts,
		Value:         value,
		LowConfidence: st.count < d.cfg.Window,
	}

	var prev float64
	hasPrev := st.count > 0
	if hasPrev {
		prev = st.buf[(st.head-1+len(st.buf))%len(st.buf)]
	}

	if st.count > 0 {
		mean := st.sum / float64(st.count)
		score.Baseline = mean
		std := st.stddev()
		switch {
		case std > stddevEpsilon:
			score.Deviation = (value - mean) / std
		case value != mean:
			score.Deviation = math.Copysign(zeroVarianceDeviation, value-mean)
		}
	} else {
		score.Baseline = value
	}

	// Checks fire in priority order; the first hit names the anomaly.
	switch {
	case d.cfg.CriticalLevel > 0 && value >= d.cfg.CriticalLevel:
		flag(&score, models.AnomalyCriticalLevel, models.SeverityCritical)
	case math.Abs(score.Deviation) > d.cfg.Threshold:
		flag(&score, models.AnomalyStatistical, deviationSeverity(math.Abs(score.Deviation)))
	default:
		// A live forecast widens the check: outside its interval flags.
		if f := d.forecasts[key]; f != nil {
			if p, ok := f.PointAt(ts); ok && (value < p.LowerBound || value > p.UpperBound) {
				flag(&score, models.AnomalyForecastBounds, predictionSeverity(p.Value, value))
			}
		}
		if !score.IsAnomaly && d.cfg.RateOfChange > 0 && hasPrev {
			if rate := math.Abs(value - prev); rate > d.cfg.RateOfChange {
				sev := models.SeverityMedium
				if rate > 1.5*d.cfg.RateOfChange {
					sev = models.SeverityHigh
				}
				flag(&score, models.AnomalyRateOfChange, sev)
			}
		}
	}

	st.push(value)
	return score
}

func flag(s *models.AnomalyScore, kind, severity string) {
	s.IsAnomaly = true
	s.Kind = kind
	s.Severity = severity
}

// deviationSeverity maps |z| onto the alert ladder.
func deviationSeverity(z float64) string {
	switch {
	case z >= 4:
		return models.SeverityCritical
	case z >= 3:
		return models.SeverityHigh
	case z >= 2:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// predictionSeverity grades a bounds violation by relative error against
// the predicted value.
func predictionSeverity(predicted, actual float64) string {
	if predicted == 0 {
		return models.SeverityMedium
	}
	if math.Abs(actual-predicted)/math.Abs(predicted) > 0.5 {
		return models.SeverityHigh
	}
	return models.SeverityMedium
}

// SetForecast attaches the current forecast for a key; pass nil to clear.
func (d *RollingDetector) SetForecast(key models.Key, f *models.ForecastResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f == nil {
		delete(d.forecasts, key)
		return
	}
	d.forecasts[key] = f
}

// Forget tears down all rolling state for a key.
func (d *RollingDetector) Forget(key models.Key) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.states, key)
	delete(d.forecasts, key)
}

// TrackedKeys returns the number of keys with live state.
func (d *RollingDetector) TrackedKeys() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.states)
}

func (s *rollingState) push(v float64) {
	if s.count == len(s.buf) {
		old := s.buf[s.head]
		s.sum -= old
		s.sumsq -= old * old
	} else {
		s.count++
	}
	s.buf[s.head] = v
	s.head = (s.head + 1) % len(s.buf)
	s.sum += v
	s.sumsq += v * v
}

// stddev is the sample standard deviation over the current window.
func (s *rollingState) stddev() float64 {
	if s.count < 2 {
		return 0
	}
	n := float64(s.count)
	mean := s.sum / n
	variance := (s.sumsq - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}
