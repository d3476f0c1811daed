package evaluation

import (
	"fmt"
	"math"
)

// Error metrics over aligned actual/predicted slices. All three reject
// empty or mismatched input; beyond that they are pure and total.

// MAPE is the mean of |a-p|/|a| over points where a != 0, as a
// percentage. When every actual value is zero the metric is undefined and
// NaN is returned instead of dividing by zero; NotComputable recognizes
// that sentinel.
func MAPE(actual, predicted []float64) (float64, error) {
	if err := checkInput(actual, predicted); err != nil {
		return 0, err
	}
	var sum float64
	count := 0
	for i := range actual {
		if actual[i] == 0 {
			continue
		}
		sum += math.Abs((actual[i] - predicted[i]) / actual[i])
		count++
	}
	if count == 0 {
		return math.NaN(), nil
	}
	return sum / float64(count) * 100, nil
}

// MAE is the mean absolute error over all points.
func MAE(actual, predicted []float64) (float64, error) {
	if err := checkInput(actual, predicted); err != nil {
		return 0, err
	}
	var sum float64
	for i := range actual {
		sum += math.Abs(actual[i] - predicted[i])
	}
	return sum / float64(len(actual)), nil
}

// RMSE is the root mean squared error over all points.
func RMSE(actual, predicted []float64) (float64, error) {
	if err := checkInput(actual, predicted); err != nil {
		return 0, err
	}
	var sum float64
	for i := range actual {
		d := actual[i] - predicted[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(actual))), nil
}

// NotComputable reports whether a score is the undefined-MAPE sentinel.
func NotComputable(score float64) bool {
	return math.IsNaN(score)
}

func checkInput(actual, predicted []float64) error {
	if len(actual) == 0 {
		return fmt.Errorf("empty input")
	}
	if len(actual) != len(predicted) {
		return fmt.Errorf("length mismatch: %d actual vs %d predicted", len(actual), len(predicted))
	}
	return nil
}
