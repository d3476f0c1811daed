package features

import (
	"time"

	"LoadCast/internal/domain/models"
)

// Augment derives calendar regressors for every sample. Pure: the input
// series is not modified and features are a function of timestamps only.
// The only error path is a series containing non-finite values.
func Augment(series models.MetricSeries) (models.AugmentedSeries, error) {
	if err := series.Validate(); err != nil {
		return models.AugmentedSeries{}, err
	}
	feats := make([]models.CalendarFeatures, len(series.Samples))
	for i, sm := range series.Samples {
		feats[i] = Calendar(sm.Timestamp)
	}
	return models.AugmentedSeries{MetricSeries: series, Features: feats}, nil
}

// Calendar computes the regressor row for one timestamp.
func Calendar(ts time.Time) models.CalendarFeatures {
	_, week := ts.ISOWeek()
	month := int(ts.Month())
	quarter := (month-1)/3 + 1
	dow := mondayIndexed(ts.Weekday())

	lastDay := daysInMonth(ts.Year(), ts.Month())
	day := ts.Day()

	return models.CalendarFeatures{
		HourOfDay:      ts.Hour(),
		DayOfWeek:      dow,
		DayOfMonth:     day,
		WeekOfYear:     week,
		Month:          month,
		Quarter:        quarter,
		IsWeekend:      dow >= 5,
		IsMonthStart:   day == 1,
		IsMonthEnd:     day == lastDay,
		IsQuarterStart: day == 1 && month%3 == 1,
		IsQuarterEnd:   day == lastDay && month%3 == 0,
		IsYearStart:    day == 1 && month == 1,
		IsYearEnd:      day == 31 && month == 12,
	}
}

// mondayIndexed maps Go's Sunday-first weekday to 0=Monday .. 6=Sunday.
func mondayIndexed(d time.Weekday) int {
	if d == time.Sunday {
		return 6
	}
	return int(d) - 1
}

func daysInMonth(year int, m time.Month) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Regressors flattens a feature row into the numeric vector consumed by
// the regression backend. Order is fixed; the fit blob records it
// implicitly through coefficient positions.
func Regressors(f models.CalendarFeatures) []float64 {
	return []float64{
		boolToF(f.IsWeekend),
		boolToF(f.IsMonthStart),
		boolToF(f.IsMonthEnd),
		boolToF(f.IsQuarterStart),
		boolToF(f.IsQuarterEnd),
		boolToF(f.IsYearStart),
		boolToF(f.IsYearEnd),
	}
}

// RegressorCount is the width of the vector returned by Regressors.
const RegressorCount = 7

func boolToF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
