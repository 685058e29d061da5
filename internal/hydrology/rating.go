package hydrology

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const ratingDegree = 2

// RatingCurveModel is a fitted quadratic stage-discharge relation:
// Q = A·h² + B·h + C.
type RatingCurveModel struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
	// StageMin and StageMax bound the stages the model was fitted on.
	StageMin float64 `json:"stage_min"`
	StageMax float64 `json:"stage_max"`
}

// Discharge evaluates the curve at a single stage. No range check is made.
func (m RatingCurveModel) Discharge(stage float64) float64 {
	return (m.A*stage+m.B)*stage + m.C
}

// Evaluate returns the discharge for each stage.
func (m RatingCurveModel) Evaluate(stages []float64) []float64 {
	out := make([]float64, len(stages))
	for i, h := range stages {
		out[i] = m.Discharge(h)
	}
	return out
}

// InRange reports whether stage lies within the fitted stage range.
func (m RatingCurveModel) InRange(stage float64) bool {
	return stage >= m.StageMin && stage <= m.StageMax
}

// RatingCurveFit bundles a fitted model with its diagnostics.
type RatingCurveFit struct {
	Model RatingCurveModel `json:"model"`
	// Fitted holds the model discharge at each input stage, in input order.
	Fitted   []float64 `json:"fitted"`
	RSquared float64   `json:"r_squared"`
	RMSE     float64   `json:"rmse"`
	Samples  int       `json:"samples"`
}

// FitRatingCurve fits a quadratic rating curve to paired stage/discharge
// samples by least squares.
func FitRatingCurve(stage, discharge []float64) (RatingCurveFit, error) {
	if len(stage) != len(discharge) {
		return RatingCurveFit{}, &DimensionMismatchError{Stage: len(stage), Discharge: len(discharge)}
	}
	n := len(stage)
	need := ratingDegree + 1
	if n < need {
		return RatingCurveFit{}, &InsufficientDataError{Got: n, Need: need}
	}
	if d := distinctCount(stage); d < need {
		return RatingCurveFit{}, &InsufficientDataError{Got: d, Need: need, Distinct: true}
	}

	// Stages are centred and scaled before building the Vandermonde matrix
	// so that gauges with a large datum offset stay well conditioned.
	mean := stat.Mean(stage, nil)
	scale := 0.0
	for _, h := range stage {
		scale = math.Max(scale, math.Abs(h-mean))
	}
	z := make([]float64, n)
	for i, h := range stage {
		z[i] = (h - mean) / scale
	}

	// Column j holds z^j.
	x := mat.NewDense(n, need, nil)
	for i, zi := range z {
		for j := 0; j < need; j++ {
			x.Set(i, j, math.Pow(zi, float64(j)))
		}
	}
	y := mat.NewVecDense(n, append([]float64(nil), discharge...))

	var qr mat.QR
	qr.Factorize(x)

	var coeffs mat.VecDense
	if err := qr.SolveVecTo(&coeffs, false, y); err != nil {
		return RatingCurveFit{}, solveError(err)
	}
	c0, c1, c2 := coeffs.AtVec(0), coeffs.AtVec(1), coeffs.AtVec(2)

	fitted := make([]float64, n)
	for i, zi := range z {
		fitted[i] = (c2*zi+c1)*zi + c0
	}

	// Expand c2·z² + c1·z + c0 with z = (h - mean) / scale.
	a := c2 / (scale * scale)
	b := c1/scale - 2*a*mean
	model := RatingCurveModel{
		A:        a,
		B:        b,
		C:        a*mean*mean - c1*mean/scale + c0,
		StageMin: floats.Min(stage),
		StageMax: floats.Max(stage),
	}

	return RatingCurveFit{
		Model:    model,
		Fitted:   fitted,
		RSquared: rSquared(fitted, discharge),
		RMSE:     rmse(fitted, discharge),
		Samples:  n,
	}, nil
}

// FitRatingCurveSeries pairs stage and discharge on timestamp and fits the
// joined samples.
func FitRatingCurveSeries(stage, discharge TimeSeries) (RatingCurveFit, error) {
	_, h, q := InnerJoin(stage.Sorted(), discharge.Sorted())
	return FitRatingCurve(h, q)
}

// SumSquaredResiduals returns Σ (model(h) − q)².
func SumSquaredResiduals(m RatingCurveModel, stage, discharge []float64) float64 {
	var sum float64
	for i, h := range stage {
		r := m.Discharge(h) - discharge[i]
		sum += r * r
	}
	return sum
}

// solveError reports an ill-conditioned system as IllConditionedError.
func solveError(err error) error {
	var cond mat.Condition
	if errors.As(err, &cond) {
		return &IllConditionedError{Condition: float64(cond)}
	}
	return fmt.Errorf("solve rating curve: %w", err)
}

func distinctCount(values []float64) int {
	seen := make(map[float64]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}

// rSquared is 1 for a perfect fit of a constant series, where the usual
// definition is undefined.
func rSquared(estimates, values []float64) float64 {
	r2 := stat.RSquaredFrom(estimates, values, nil)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		if floats.Distance(estimates, values, 2) < 1e-9 {
			return 1
		}
		return 0
	}
	return r2
}

func rmse(estimates, values []float64) float64 {
	return floats.Distance(estimates, values, 2) / math.Sqrt(float64(len(values)))
}
