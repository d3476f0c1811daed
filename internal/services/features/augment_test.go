package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LoadCast/internal/domain/models"
)

func TestAugmentRowPerSample(t *testing.T) {
	series := models.MetricSeries{
		Key: models.Key{Entity: "vm-01", Metric: "cpu.usage.average"},
	}
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		series.Samples = append(series.Samples, models.Sample{
			Timestamp: base.Add(time.Duration(i) * 30 * time.Minute),
			Value:     float64(i),
		})
	}

	aug, err := Augment(series)
	require.NoError(t, err)
	assert.Len(t, aug.Features, len(series.Samples))
}

func TestAugmentRejectsNonFinite(t *testing.T) {
	series := models.MetricSeries{Samples: []models.Sample{
		{Timestamp: time.Unix(0, 0), Value: math.NaN()},
	}}
	_, err := Augment(series)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestCalendarBoundaryDates(t *testing.T) {
	cases := []struct {
		name string
		ts   time.Time
		want models.CalendarFeatures
	}{
		{
			name: "new year",
			ts:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), // Monday
			want: models.CalendarFeatures{
				HourOfDay: 0, DayOfWeek: 0, DayOfMonth: 1, WeekOfYear: 1,
				Month: 1, Quarter: 1,
				IsMonthStart: true, IsQuarterStart: true, IsYearStart: true,
			},
		},
		{
			name: "year end",
			ts:   time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC), // Tuesday
			want: models.CalendarFeatures{
				HourOfDay: 23, DayOfWeek: 1, DayOfMonth: 31, WeekOfYear: 1,
				Month: 12, Quarter: 4,
				IsMonthEnd: true, IsQuarterEnd: true, IsYearEnd: true,
			},
		},
		{
			name: "leap february end",
			ts:   time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC), // Thursday
			want: models.CalendarFeatures{
				HourOfDay: 12, DayOfWeek: 3, DayOfMonth: 29, WeekOfYear: 9,
				Month: 2, Quarter: 1, IsMonthEnd: true,
			},
		},
		{
			name: "q2 start",
			ts:   time.Date(2023, 4, 1, 6, 0, 0, 0, time.UTC), // Saturday
			want: models.CalendarFeatures{
				HourOfDay: 6, DayOfWeek: 5, DayOfMonth: 1, WeekOfYear: 13,
				Month: 4, Quarter: 2,
				IsWeekend: true, IsMonthStart: true, IsQuarterStart: true,
			},
		},
		{
			name: "q3 end sunday",
			ts:   time.Date(2023, 9, 30, 18, 30, 0, 0, time.UTC), // Saturday
			want: models.CalendarFeatures{
				HourOfDay: 18, DayOfWeek: 5, DayOfMonth: 30, WeekOfYear: 39,
				Month: 9, Quarter: 3,
				IsWeekend: true, IsMonthEnd: true, IsQuarterEnd: true,
			},
		},
		{
			name: "mid month weekday",
			ts:   time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC), // Wednesday
			want: models.CalendarFeatures{
				HourOfDay: 9, DayOfWeek: 2, DayOfMonth: 12, WeekOfYear: 24,
				Month: 6, Quarter: 2,
			},
		},
		{
			name: "sunday",
			ts:   time.Date(2024, 7, 7, 3, 0, 0, 0, time.UTC),
			want: models.CalendarFeatures{
				HourOfDay: 3, DayOfWeek: 6, DayOfMonth: 7, WeekOfYear: 27,
				Month: 7, Quarter: 3, IsWeekend: true,
			},
		},
		{
			name: "q4 start",
			ts:   time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), // Tuesday
			want: models.CalendarFeatures{
				HourOfDay: 0, DayOfWeek: 1, DayOfMonth: 1, WeekOfYear: 40,
				Month: 10, Quarter: 4, IsMonthStart: true, IsQuarterStart: true,
			},
		},
		{
			name: "non leap february end",
			ts:   time.Date(2023, 2, 28, 23, 59, 0, 0, time.UTC), // Tuesday
			want: models.CalendarFeatures{
				HourOfDay: 23, DayOfWeek: 1, DayOfMonth: 28, WeekOfYear: 9,
				Month: 2, Quarter: 1, IsMonthEnd: true,
			},
		},
		{
			name: "january 53rd iso week",
			ts:   time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), // Friday, ISO week 53 of 2020
			want: models.CalendarFeatures{
				HourOfDay: 0, DayOfWeek: 4, DayOfMonth: 1, WeekOfYear: 53,
				Month: 1, Quarter: 1,
				IsMonthStart: true, IsQuarterStart: true, IsYearStart: true,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Calendar(tc.ts))
		})
	}
}

func TestRegressorsWidth(t *testing.T) {
	row := Regressors(Calendar(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Len(t, row, RegressorCount)
}
