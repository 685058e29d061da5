package hydrology

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// UnitHydrograph holds a basin's discharge ordinates per unit of effective
// rainfall, one per time step.
type UnitHydrograph []float64

// Validate rejects empty hydrographs and negative ordinates.
func (u UnitHydrograph) Validate() error {
	if len(u) == 0 {
		return &EmptyInputError{Input: "unit hydrograph"}
	}
	for i, v := range u {
		if v < 0 {
			return fmt.Errorf("unit hydrograph ordinate %d is negative: %g", i, v)
		}
	}
	return nil
}

// Convolve routes effective rainfall pulses through a unit hydrograph. The
// result has len(rainfall)+len(uh)-1 ordinates.
func Convolve(rainfall []float64, uh UnitHydrograph) ([]float64, error) {
	if len(rainfall) == 0 {
		return nil, &EmptyInputError{Input: "rainfall"}
	}
	if len(uh) == 0 {
		return nil, &EmptyInputError{Input: "unit hydrograph"}
	}

	k := len(uh)
	out := make([]float64, len(rainfall)+k-1)
	for j, p := range rainfall {
		floats.AddScaled(out[j:j+k], p, uh)
	}
	return out, nil
}

// EffectiveRainfall expresses rainfall depths in multiples of the depth the
// unit hydrograph was derived for. A non-positive unitDepth is treated as 1.
func EffectiveRainfall(rainfall []float64, unitDepth float64) []float64 {
	if unitDepth <= 0 {
		unitDepth = 1
	}
	out := make([]float64, len(rainfall))
	for i, p := range rainfall {
		out[i] = p / unitDepth
	}
	return out
}

// ErrEmptyHydrograph is returned by Peak for an empty hydrograph.
var ErrEmptyHydrograph = errors.New("empty hydrograph")

// Peak returns the index and value of the largest ordinate. Ties resolve to
// the earliest step.
func Peak(hydrograph []float64) (int, float64, error) {
	if len(hydrograph) == 0 {
		return 0, 0, ErrEmptyHydrograph
	}
	i := floats.MaxIdx(hydrograph)
	return i, hydrograph[i], nil
}
