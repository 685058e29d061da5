package hydrology

import (
	"math"
	"sort"
	"time"
)

// Point is a single timestamped observation.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// TimeSeries is an ordered sequence of observations. Adapters return series
// sorted by time with unique timestamps.
type TimeSeries []Point

// Values returns the observation values in order.
func (ts TimeSeries) Values() []float64 {
	out := make([]float64, len(ts))
	for i, p := range ts {
		out[i] = p.Value
	}
	return out
}

// Times returns the observation timestamps in order.
func (ts TimeSeries) Times() []time.Time {
	out := make([]time.Time, len(ts))
	for i, p := range ts {
		out[i] = p.Time
	}
	return out
}

// Sorted returns a copy of the series ordered by time. The sort is stable so
// that Dedupe keeps the first sample an adapter produced for a timestamp.
func (ts TimeSeries) Sorted() TimeSeries {
	out := make(TimeSeries, len(ts))
	copy(out, ts)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// Dedupe drops repeated timestamps from a sorted series, keeping the first.
func (ts TimeSeries) Dedupe() TimeSeries {
	out := make(TimeSeries, 0, len(ts))
	for _, p := range ts {
		if n := len(out); n > 0 && out[n-1].Time.Equal(p.Time) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// DropMissing removes NaN and infinite values.
func (ts TimeSeries) DropMissing() TimeSeries {
	out := make(TimeSeries, 0, len(ts))
	for _, p := range ts {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Daily places the series on a grid of UTC calendar days from start to end
// inclusive. Days without a sample hold NaN and the first sample of a day
// wins. A zero start or end is taken from the first or last sample.
func (ts TimeSeries) Daily(start, end time.Time) TimeSeries {
	sorted := ts.Sorted()
	if start.IsZero() || end.IsZero() {
		if len(sorted) == 0 {
			return TimeSeries{}
		}
		if start.IsZero() {
			start = sorted[0].Time
		}
		if end.IsZero() {
			end = sorted[len(sorted)-1].Time
		}
	}

	byDay := make(map[time.Time]float64, len(sorted))
	for _, p := range sorted {
		d := utcDay(p.Time)
		if _, ok := byDay[d]; !ok {
			byDay[d] = p.Value
		}
	}

	from, to := utcDay(start), utcDay(end)
	out := TimeSeries{}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		v, ok := byDay[d]
		if !ok {
			v = math.NaN()
		}
		out = append(out, Point{Time: d, Value: v})
	}
	return out
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AtHour keeps only the samples taken at the given hour of day (UTC).
func (ts TimeSeries) AtHour(hour int) TimeSeries {
	out := make(TimeSeries, 0, len(ts))
	for _, p := range ts {
		if p.Time.UTC().Hour() == hour {
			out = append(out, p)
		}
	}
	return out
}

// InnerJoin pairs two series on identical timestamps. Samples without a
// partner, or with a missing value on either side, are dropped. Both inputs
// must be sorted.
func InnerJoin(a, b TimeSeries) (times []time.Time, av, bv []float64) {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ta, tb := a[i].Time, b[j].Time
		switch {
		case ta.Before(tb):
			i++
		case tb.Before(ta):
			j++
		default:
			if isFinite(a[i].Value) && isFinite(b[j].Value) {
				times = append(times, ta)
				av = append(av, a[i].Value)
				bv = append(bv, b[j].Value)
			}
			i++
			j++
		}
	}
	return times, av, bv
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
