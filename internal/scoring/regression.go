package scoring

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	apperrors "pricinglab/internal/errors"
)

// Line is a fitted y = Slope*x + Intercept.
type Line struct {
	Slope     float64
	Intercept float64
}

// At evaluates the line.
func (l Line) At(x float64) float64 {
	return l.Intercept + l.Slope*x
}

// Regressor fits an ordinary least-squares line.
type Regressor interface {
	Fit(x, y []float64) (Line, error)
}

// GonumRegressor fits with gonum's stat.LinearRegression.
type GonumRegressor struct{}

// Fit implements Regressor.
func (GonumRegressor) Fit(x, y []float64) (Line, error) {
	if len(x) != len(y) {
		return Line{}, fmt.Errorf("length mismatch: %d prices, %d values", len(x), len(y))
	}
	if len(x) < 2 {
		return Line{}, fmt.Errorf("need at least 2 points, got %d", len(x))
	}
	// Constant x has no unique fit; take the minimum-norm one, a flat line
	// through mean(y).
	if stat.Variance(x, nil) == 0 {
		return Line{Slope: 0, Intercept: stat.Mean(y, nil)}, nil
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	return Line{Slope: beta, Intercept: alpha}, nil
}

// probe points lie exactly on y = 2x + 1
var (
	probeX = []float64{1, 2, 3}
	probeY = []float64{3, 5, 7}
)

// ProbeRegressor checks that r is present and recovers a known line. It
// reports a DependencyUnavailable error otherwise.
func ProbeRegressor(r Regressor) error {
	if r == nil {
		return apperrors.NewDependencyUnavailableError("linear regression", errors.New("no regressor configured"))
	}
	line, err := r.Fit(probeX, probeY)
	if err != nil {
		return apperrors.NewDependencyUnavailableError("linear regression", err)
	}
	if math.Abs(line.Slope-2) > 1e-9 || math.Abs(line.Intercept-1) > 1e-9 {
		return apperrors.NewDependencyUnavailableError("linear regression",
			fmt.Errorf("probe fit returned slope=%g intercept=%g, want 2 and 1", line.Slope, line.Intercept))
	}
	return nil
}
