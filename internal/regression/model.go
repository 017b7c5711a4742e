// Package regression fits the cumulative-rate model: an ordinary
// least-squares line relating deaths per thousand to cases per thousand
// across US states. One bivariate model, fit once over the full state
// summary, evaluated in-sample.
package regression

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/kpritch24/johns-hopkins-covid19/internal/covid"
	"github.com/kpritch24/johns-hopkins-covid19/internal/errors"
	"github.com/kpritch24/johns-hopkins-covid19/internal/infrastructure"
)

// Point is one regression observation: a state's cumulative cases per
// thousand (predictor) and deaths per thousand (response).
type Point struct {
	State string  `json:"state"`
	X     float64 `json:"cases_per_thousand"`
	Y     float64 `json:"deaths_per_thousand"`
}

// Model holds the fitted OLS coefficients.
type Model struct {
	Intercept float64 `json:"intercept"`
	Slope     float64 `json:"slope"`
	N         int     `json:"n"`
}

// Evaluation holds the in-sample fit diagnostics. Predictions and
// Residuals are index-aligned with the evaluated points; residual =
// actual − predicted.
type Evaluation struct {
	RMSE        float64   `json:"rmse"`
	RSquared    float64   `json:"r_squared"`
	Predictions []float64 `json:"predictions"`
	Residuals   []float64 `json:"residuals"`
}

// PointsFromSummaries converts the state summary table into regression
// observations.
func PointsFromSummaries(summaries []covid.StateSummary) []Point {
	points := make([]Point, len(summaries))
	for i, s := range summaries {
		points[i] = Point{
			State: s.ProvinceState,
			X:     s.CasesPerThousand,
			Y:     s.DeathsPerThousand,
		}
	}
	return points
}

// Fit estimates the OLS line minimizing the sum of squared residuals.
// Fewer than two points, or a predictor with zero variance, cannot
// identify a line and fail with a model error; the caller's tables stay
// valid regardless.
func Fit(ctx context.Context, points []Point) (*Model, error) {
	logger := infrastructure.LoggerWithContext(ctx)

	if len(points) < 2 {
		return nil, errors.NewModelError(
			fmt.Sprintf("need at least 2 observations to fit, got %d", len(points)), nil)
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}

	if stat.Variance(xs, nil) == 0 {
		return nil, errors.NewModelError("zero variance in predictor", nil).
			WithContext("observations", len(points))
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)

	logger.InfoContext(ctx, "fitted rate model",
		"observations", len(points),
		"intercept", intercept,
		"slope", slope)

	return &Model{Intercept: intercept, Slope: slope, N: len(points)}, nil
}

// Predict returns the fitted line's value at the given cases-per-thousand.
func (m *Model) Predict(casesPerThousand float64) float64 {
	return m.Intercept + m.Slope*casesPerThousand
}

// Evaluate computes predictions, residuals, RMSE, and R² over the given
// points. R² is the squared Pearson correlation between actual and
// predicted values.
func (m *Model) Evaluate(points []Point) Evaluation {
	predictions := make([]float64, len(points))
	residuals := make([]float64, len(points))
	actual := make([]float64, len(points))

	var sumSquares float64
	for i, p := range points {
		predictions[i] = m.Predict(p.X)
		residuals[i] = p.Y - predictions[i]
		actual[i] = p.Y
		sumSquares += residuals[i] * residuals[i]
	}

	eval := Evaluation{
		Predictions: predictions,
		Residuals:   residuals,
	}
	if len(points) > 0 {
		eval.RMSE = math.Sqrt(sumSquares / float64(len(points)))
		// A flat fitted line (slope exactly zero) has no correlation with
		// anything; report R² = 0 rather than NaN.
		if stat.Variance(predictions, nil) > 0 && stat.Variance(actual, nil) > 0 {
			corr := stat.Correlation(actual, predictions, nil)
			eval.RSquared = corr * corr
		}
	}

	return eval
}
