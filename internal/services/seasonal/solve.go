package seasonal

import (
	"fmt"
	"math"
)

// solveRidge solves (XᵀX + diag(penalties)) β = Xᵀy by Cholesky
// decomposition. penalties has one entry per column; a zero penalty
// leaves that coefficient unregularized.
func solveRidge(x [][]float64, y []float64, penalties []float64) ([]float64, error) {
	n := len(x)
	if n == 0 || n != len(y) {
		return nil, fmt.Errorf("design matrix/target size mismatch")
	}
	p := len(x[0])
	if p == 0 || p != len(penalties) {
		return nil, fmt.Errorf("penalty vector size mismatch")
	}

	// Normal equations.
	a := make([][]float64, p)
	for i := range a {
		a[i] = make([]float64, p)
	}
	b := make([]float64, p)
	for r := 0; r < n; r++ {
		row := x[r]
		for i := 0; i < p; i++ {
			b[i] += row[i] * y[r]
			for j := i; j < p; j++ {
				a[i][j] += row[i] * row[j]
			}
		}
	}
	for i := 0; i < p; i++ {
		a[i][i] += penalties[i]
		for j := 0; j < i; j++ {
			a[i][j] = a[j][i]
		}
	}

	l, err := cholesky(a)
	if err != nil {
		return nil, err
	}
	return choleskySolve(l, b), nil
}

// cholesky returns the lower-triangular factor of a symmetric
// positive-definite matrix, or an error when the matrix is numerically
// degenerate.
func cholesky(a [][]float64) ([][]float64, error) {
	p := len(a)
	l := make([][]float64, p)
	for i := range l {
		l[i] = make([]float64, p)
	}
	for i := 0; i < p; i++ {
		for j := 0; j <= i; j++ {
			sum := a[i][j]
			for k := 0; k < j; k++ {
				sum -= l[i][k] * l[j][k]
			}
			if i == j {
				if sum <= 1e-12 {
					return nil, fmt.Errorf("matrix not positive definite at pivot %d", i)
				}
				l[i][i] = math.Sqrt(sum)
			} else {
				l[i][j] = sum / l[j][j]
			}
		}
	}
	return l, nil
}

// choleskySolve solves L Lᵀ β = b by forward then backward substitution.
func choleskySolve(l [][]float64, b []float64) []float64 {
	p := len(b)
	z := make([]float64, p)
	for i := 0; i < p; i++ {
		sum := b[i]
		for k := 0; k < i; k++ {
			sum -= l[i][k] * z[k]
		}
		z[i] = sum / l[i][i]
	}
	beta := make([]float64, p)
	for i := p - 1; i >= 0; i-- {
		sum := z[i]
		for k := i + 1; k < p; k++ {
			sum -= l[k][i] * beta[k]
		}
		beta[i] = sum / l[i][i]
	}
	return beta
}
