// Package hydrology holds the numerical core of the service: stage-discharge
// (rating curve) fitting, unit-hydrograph convolution, and a few textbook
// basin indices. Everything here is pure and synchronous; the data arrives
// already fetched by the source adapters.
//
// # Rating curve
//
// A rating curve maps water-surface elevation (stage, m) at a gauging station
// to discharge (m³/s). It is fitted as a quadratic
//
//	Q = A·h² + B·h + C
//
// by ordinary least squares over stage/discharge samples paired by timestamp.
// Stage samples are usually resampled to a fixed hour of day first, because
// ANA publishes one discharge value per day. The fitted model records the
// observed stage range; evaluating outside that range is extrapolation and is
// left to the caller.
//
// At least three distinct stage values are required. Duplicated stage values
// (a non-monotonic or hysteretic rating) are accepted and simply contribute
// additional residuals to the fit.
//
// # Unit hydrograph
//
// A unit hydrograph holds a basin's discharge response to one unit of
// effective rainfall, discretised into k ordinates of the same duration as the
// rainfall pulses. For m pulses the flood hydrograph at the outlet is the
// discrete convolution
//
//	Q[i] = Σ_j P[j]·U[i−j],  0 ≤ i < m+k−1
//
// Unit hydrographs are frequently tabulated per 10 mm of rainfall; use
// [EffectiveRainfall] to express pulses in that unit before convolving.
//
// # Basin indices
//
//	Rational method:      Q = 0.278·C·i·A   (i in mm/h, A in km², Q in m³/s)
//	Suspended sediment:   Qs = 0.0864·Q̄·c   (c in mg/L, Qs in t/day)
package hydrology
