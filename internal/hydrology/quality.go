package hydrology

import (
	"fmt"
	"math"
	"sort"
)

// DefaultRainOutlierLimit is the largest daily rainfall depth (mm) accepted
// before a sample is treated as a gauge error.
const DefaultRainOutlierLimit = 400.0

// Percentile returns the p-quantile (0 ≤ p ≤ 1) of the finite values,
// interpolating linearly between the order statistics at rank (n-1)·p.
func Percentile(values []float64, p float64) (float64, error) {
	if p < 0 || p > 1 {
		return 0, fmt.Errorf("percentile %g outside [0, 1]", p)
	}
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if isFinite(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return 0, &EmptyInputError{Input: "values"}
	}
	sort.Float64s(sorted)

	h := float64(len(sorted)-1) * p
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1], nil
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo]), nil
}

// RemoveOutliers marks values above limit as missing (NaN).
func RemoveOutliers(ts TimeSeries, limit float64) TimeSeries {
	out := make(TimeSeries, len(ts))
	for i, p := range ts {
		if p.Value > limit {
			p.Value = math.NaN()
		}
		out[i] = p
	}
	return out
}

// DropNegatives marks negative values as missing (NaN).
func DropNegatives(ts TimeSeries) TimeSeries {
	out := make(TimeSeries, len(ts))
	for i, p := range ts {
		if p.Value < 0 {
			p.Value = math.NaN()
		}
		out[i] = p
	}
	return out
}

// FailureRatio is the fraction of samples that are missing. An empty series
// has no failures.
func FailureRatio(ts TimeSeries) float64 {
	if len(ts) == 0 {
		return 0
	}
	var missing int
	for _, p := range ts {
		if !isFinite(p.Value) {
			missing++
		}
	}
	return float64(missing) / float64(len(ts))
}
