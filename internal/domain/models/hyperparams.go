package models

import "fmt"

// Seasonality modes for the regression backend.
const (
	SeasonalityAdditive       = "additive"
	SeasonalityMultiplicative = "multiplicative"
)

// HyperparameterSet names one value for each tunable option. Immutable
// once built; compared by value.
type HyperparameterSet struct {
	SeasonalityMode       string  `json:"seasonality_mode"`
	ChangepointPriorScale float64 `json:"changepoint_prior_scale"`
	SeasonalityPriorScale float64 `json:"seasonality_prior_scale"`
	HolidayPriorScale     float64 `json:"holiday_prior_scale"`
	ChangepointRange      float64 `json:"changepoint_range"`
	ChangepointCount      int     `json:"changepoint_count"`
	DailySeasonality      bool    `json:"daily_seasonality"`
	WeeklySeasonality     bool    `json:"weekly_seasonality"`
}

func (h HyperparameterSet) String() string {
	return fmt.Sprintf("mode=%s cps=%g sps=%g hps=%g range=%g n_cp=%d daily=%t weekly=%t",
		h.SeasonalityMode, h.ChangepointPriorScale, h.SeasonalityPriorScale,
		h.HolidayPriorScale, h.ChangepointRange, h.ChangepointCount,
		h.DailySeasonality, h.WeeklySeasonality)
}

// Grid is an explicit ordered list of candidates. Iteration order is the
// slice order, which makes tie-breaks reproducible; there is no reliance
// on map iteration anywhere in the tuning path.
type Grid struct {
	Candidates []HyperparameterSet
	// DefaultIndex points at the candidate returned when tuning is
	// skipped for short series.
	DefaultIndex int
}

// Default returns the grid's designated fallback configuration.
func (g Grid) Default() HyperparameterSet {
	if len(g.Candidates) == 0 {
		return DefaultHyperparameters()
	}
	idx := g.DefaultIndex
	if idx < 0 || idx >= len(g.Candidates) {
		idx = 0
	}
	return g.Candidates[idx]
}

// DefaultHyperparameters mirrors the defaults used when no grid is
// configured at all.
func DefaultHyperparameters() HyperparameterSet {
	return HyperparameterSet{
		SeasonalityMode:       SeasonalityMultiplicative,
		ChangepointPriorScale: 0.05,
		SeasonalityPriorScale: 10.0,
		HolidayPriorScale:     10.0,
		ChangepointRange:      0.8,
		ChangepointCount:      25,
		DailySeasonality:      true,
		WeeklySeasonality:     true,
	}
}

// GridAxes expands a per-option value list into the full ordered candidate
// grid. Axis order is fixed (mode, changepoint prior, seasonality prior,
// holiday prior, range, count, daily, weekly) so the resulting iteration
// order is a documented total order.
type GridAxes struct {
	SeasonalityModes       []string  `yaml:"seasonality_modes"`
	ChangepointPriorScales []float64 `yaml:"changepoint_prior_scales"`
	SeasonalityPriorScales []float64 `yaml:"seasonality_prior_scales"`
	HolidayPriorScales     []float64 `yaml:"holiday_prior_scales"`
	ChangepointRanges      []float64 `yaml:"changepoint_ranges"`
	ChangepointCounts      []int     `yaml:"changepoint_counts"`
	DailySeasonality       []bool    `yaml:"daily_seasonality"`
	WeeklySeasonality      []bool    `yaml:"weekly_seasonality"`
}

// Expand builds the cartesian product in axis-major order.
func (a GridAxes) Expand() Grid {
	modes := orDefault(a.SeasonalityModes, []string{SeasonalityMultiplicative, SeasonalityAdditive})
	cps := orDefault(a.ChangepointPriorScales, []float64{0.01, 0.05, 0.1})
	sps := orDefault(a.SeasonalityPriorScales, []float64{2.0, 10.0, 24.0})
	hps := orDefault(a.HolidayPriorScales, []float64{10.0})
	ranges := orDefault(a.ChangepointRanges, []float64{0.8, 0.9})
	counts := orDefault(a.ChangepointCounts, []int{25})
	daily := orDefault(a.DailySeasonality, []bool{true})
	weekly := orDefault(a.WeeklySeasonality, []bool{true, false})

	var out []HyperparameterSet
	for _, m := range modes {
		for _, c := range cps {
			for _, s := range sps {
				for _, h := range hps {
					for _, r := range ranges {
						for _, n := range counts {
							for _, d := range daily {
								for _, w := range weekly {
									out = append(out, HyperparameterSet{
										SeasonalityMode:       m,
										ChangepointPriorScale: c,
										SeasonalityPriorScale: s,
										HolidayPriorScale:     h,
										ChangepointRange:      r,
										ChangepointCount:      n,
										DailySeasonality:      d,
										WeeklySeasonality:     w,
									})
								}
							}
						}
					}
				}
			}
		}
	}
	return Grid{Candidates: out}
}

func orDefault[T any](xs, def []T) []T {
	if len(xs) == 0 {
		return def
	}
	return xs
}
