package hydrology

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseDay = time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC)

func at(days, hours int) time.Time {
	return baseDay.AddDate(0, 0, days).Add(time.Duration(hours) * time.Hour)
}

func TestTimeSeries_SortedAndDedupe(t *testing.T) {
	ts := TimeSeries{
		{Time: at(2, 0), Value: 3},
		{Time: at(0, 0), Value: 1},
		{Time: at(1, 0), Value: 2},
		{Time: at(1, 0), Value: 99},
	}

	sorted := ts.Sorted()
	assert.Equal(t, []float64{1, 2, 99, 3}, sorted.Values())
	assert.Equal(t, 3.0, ts[0].Value, "Sorted must not reorder the receiver")

	deduped := sorted.Dedupe()
	assert.Equal(t, []float64{1, 2, 3}, deduped.Values())
	assert.Equal(t, []time.Time{at(0, 0), at(1, 0), at(2, 0)}, deduped.Times())
}

func TestTimeSeries_DropMissing(t *testing.T) {
	ts := TimeSeries{
		{Time: at(0, 0), Value: 1},
		{Time: at(1, 0), Value: math.NaN()},
		{Time: at(2, 0), Value: math.Inf(1)},
		{Time: at(3, 0), Value: 4},
	}
	assert.Equal(t, []float64{1, 4}, ts.DropMissing().Values())
}

func TestTimeSeries_AtHour(t *testing.T) {
	var ts TimeSeries
	for d := 0; d < 3; d++ {
		for h := 0; h < 24; h += 6 {
			ts = append(ts, Point{Time: at(d, h), Value: float64(d*100 + h)})
		}
	}

	out := ts.AtHour(6)
	assert.Equal(t, []float64{6, 106, 206}, out.Values())
	assert.Empty(t, ts.AtHour(7))
}

func TestInnerJoin(t *testing.T) {
	a := TimeSeries{
		{Time: at(0, 0), Value: 1},
		{Time: at(1, 0), Value: 2},
		{Time: at(3, 0), Value: 4},
		{Time: at(4, 0), Value: math.NaN()},
	}
	b := TimeSeries{
		{Time: at(1, 0), Value: 20},
		{Time: at(2, 0), Value: 30},
		{Time: at(3, 0), Value: 40},
		{Time: at(4, 0), Value: 50},
	}

	times, av, bv := InnerJoin(a, b)
	require.Len(t, times, 2)
	assert.Equal(t, []time.Time{at(1, 0), at(3, 0)}, times)
	assert.Equal(t, []float64{2, 4}, av)
	assert.Equal(t, []float64{20, 40}, bv)
}

func TestInnerJoin_Disjoint(t *testing.T) {
	times, av, bv := InnerJoin(
		TimeSeries{{Time: at(0, 0), Value: 1}},
		TimeSeries{{Time: at(1, 0), Value: 1}},
	)
	assert.Empty(t, times)
	assert.Empty(t, av)
	assert.Empty(t, bv)
}

func TestTimeSeries_Daily(t *testing.T) {
	day := func(d, hour int) time.Time { return time.Date(2020, time.January, d, hour, 0, 0, 0, time.UTC) }
	ts := TimeSeries{
		{Time: day(3, 0), Value: 20},
		{Time: day(1, 0), Value: 10},
		{Time: day(1, 12), Value: 99},
		{Time: day(9, 0), Value: 5},
	}

	got := ts.Daily(day(1, 0), day(4, 0))
	require.Len(t, got, 4)
	assert.Equal(t, []time.Time{day(1, 0), day(2, 0), day(3, 0), day(4, 0)}, got.Times())
	assert.Equal(t, 10.0, got[0].Value, "first sample of the day wins")
	assert.True(t, math.IsNaN(got[1].Value))
	assert.Equal(t, 20.0, got[2].Value)
	assert.True(t, math.IsNaN(got[3].Value))
	assert.InDelta(t, 0.5, FailureRatio(got), 1e-12)
}

func TestTimeSeries_Daily_OpenBounds(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2020, time.January, d, 0, 0, 0, 0, time.UTC) }
	ts := TimeSeries{{Time: day(2), Value: 1}, {Time: day(5), Value: 4}}

	got := ts.Daily(time.Time{}, time.Time{})
	assert.Equal(t, []time.Time{day(2), day(3), day(4), day(5)}, got.Times())

	assert.Empty(t, TimeSeries{}.Daily(time.Time{}, day(3)))
	assert.Empty(t, ts.Daily(day(5), day(4)))
}
