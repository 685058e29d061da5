package hydrology

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// RationalPeakFlow estimates peak surface runoff (m³/s) with the rational
// method for runoff coefficient c, rainfall intensity (mm/h) over the time of
// concentration, and basin area (km²). Valid for small basins only.
func RationalPeakFlow(c, intensityMMh, areaKm2 float64) float64 {
	return 0.278 * c * intensityMMh * areaKm2
}

// SuspendedSedimentLoad returns the suspended solids load (t/day) carried by
// the mean of a discharge series (m³/s) at concentration c (mg/L).
func SuspendedSedimentLoad(concentrationMgL float64, discharge []float64) (float64, error) {
	finite := make([]float64, 0, len(discharge))
	for _, q := range discharge {
		if isFinite(q) {
			finite = append(finite, q)
		}
	}
	if len(finite) == 0 {
		return 0, &EmptyInputError{Input: "discharge"}
	}
	return 0.0864 * stat.Mean(finite, nil) * concentrationMgL, nil
}

// MonthlyLongTermMean averages the series by calendar month across all
// years. Months without data are absent from the result.
func MonthlyLongTermMean(ts TimeSeries) map[time.Month]float64 {
	buckets := make(map[time.Month][]float64)
	for _, p := range ts {
		if !isFinite(p.Value) {
			continue
		}
		m := p.Time.Month()
		buckets[m] = append(buckets[m], p.Value)
	}

	out := make(map[time.Month]float64, len(buckets))
	for m, values := range buckets {
		out[m] = stat.Mean(values, nil)
	}
	return out
}
