package ana

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/hydro-data-etl-service/internal/hydrology"
)

// DataType selects the variable of HidroSerieHistorica (tipoDados).
type DataType int

const (
	DataStage     DataType = 1 // Cota, cm
	DataRainfall  DataType = 2 // Chuva, mm
	DataDischarge DataType = 3 // Vazao, m³/s
)

func (d DataType) column() string {
	switch d {
	case DataStage:
		return "Cota"
	case DataRainfall:
		return "Chuva"
	case DataDischarge:
		return "Vazao"
	default:
		return ""
	}
}

// scale converts the service unit to the unit reported by this package.
func (d DataType) scale() float64 {
	if d == DataStage {
		return 0.01
	}
	return 1
}

// Consistency levels of ANA data.
const (
	ConsistencyAny  = 0
	ConsistencyRaw  = 1
	ConsistencyDone = 2
)

const dateLayout = "02/01/2006"

// Stage returns daily stage readings in metres.
func (c *Client) Stage(ctx context.Context, station string, start, end time.Time) (hydrology.TimeSeries, error) {
	return c.Series(ctx, station, DataStage, start, end, ConsistencyAny)
}

// Discharge returns daily discharge in m³/s.
func (c *Client) Discharge(ctx context.Context, station string, start, end time.Time) (hydrology.TimeSeries, error) {
	return c.Series(ctx, station, DataDischarge, start, end, ConsistencyAny)
}

// Rainfall returns consisted daily rainfall depths in mm.
func (c *Client) Rainfall(ctx context.Context, station string, start, end time.Time) (hydrology.TimeSeries, error) {
	return c.Series(ctx, station, DataRainfall, start, end, ConsistencyDone)
}

// Series fetches a HidroSerieHistorica series and expands its monthly rows
// into daily samples within [start, end]. Blank days are dropped. When a day
// is reported at several consistency levels the highest level wins.
func (c *Client) Series(ctx context.Context, station string, dt DataType, start, end time.Time, consistency int) (hydrology.TimeSeries, error) {
	rows, err := c.serieRows(ctx, station, dt, start, end, consistency)
	if err != nil {
		return nil, err
	}

	ts, err := expandMonthlyRows(rows, dt, start, end)
	if err != nil {
		return nil, fmt.Errorf("station %s: %w", station, err)
	}
	c.logger.Debug("ana series fetched",
		"station", station,
		"variable", dt.column(),
		"months", len(rows),
		"samples", len(ts),
	)
	return ts, nil
}

// MonthlySummary holds the monthly statistics ANA publishes next to the
// daily values, in the unit of the data type. Blank statistics are NaN.
type MonthlySummary struct {
	Month       time.Time
	Consistency int
	Max         float64
	Min         float64
	Mean        float64
}

// MonthlySummaries returns the Maxima, Minima and Media columns of each month
// in the series, one entry per month at its highest consistency level.
func (c *Client) MonthlySummaries(ctx context.Context, station string, dt DataType, start, end time.Time, consistency int) ([]MonthlySummary, error) {
	rows, err := c.serieRows(ctx, station, dt, start, end, consistency)
	if err != nil {
		return nil, err
	}

	byMonth := make(map[time.Time]MonthlySummary, len(rows))
	for _, r := range rows {
		month, err := parseTime(r["DataHora"])
		if err != nil {
			return nil, err
		}
		month = time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
		level, _ := strconv.Atoi(r["NivelConsistencia"])
		if prev, ok := byMonth[month]; ok && prev.Consistency >= level {
			continue
		}

		s := MonthlySummary{Month: month, Consistency: level}
		for _, f := range []struct {
			col string
			dst *float64
		}{
			{"Maxima", &s.Max},
			{"Minima", &s.Min},
			{"Media", &s.Mean},
		} {
			*f.dst = math.NaN()
			if raw := r[f.col]; raw != "" {
				v, err := parseNumber(raw)
				if err != nil {
					return nil, fmt.Errorf("station %s: %s of %s: %w", station, f.col, month.Format("2006-01"), err)
				}
				*f.dst = v * dt.scale()
			}
		}
		byMonth[month] = s
	}

	out := make([]MonthlySummary, 0, len(byMonth))
	for _, s := range byMonth {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out, nil
}

func (c *Client) serieRows(ctx context.Context, station string, dt DataType, start, end time.Time, consistency int) ([]row, error) {
	if dt.column() == "" {
		return nil, fmt.Errorf("unknown ana data type %d", dt)
	}
	level := ""
	if consistency != ConsistencyAny {
		level = strconv.Itoa(consistency)
	}
	query := url.Values{
		"CodEstacao":        {station},
		"dataInicio":        {start.Format(dateLayout)},
		"dataFim":           {end.Format(dateLayout)},
		"tipoDados":         {strconv.Itoa(int(dt))},
		"nivelConsistencia": {level},
	}

	body, err := c.get(ctx, "HidroSerieHistorica", query)
	if err != nil {
		return nil, err
	}
	return decodeRows(body, "HidroSerieHistorica", "SerieHistorica")
}

type leveledSample struct {
	value float64
	level int
}

func expandMonthlyRows(rows []row, dt DataType, start, end time.Time) (hydrology.TimeSeries, error) {
	col := dt.column()
	from := truncateDay(start)
	to := truncateDay(end)

	days := make(map[time.Time]leveledSample)
	for _, r := range rows {
		month, err := parseTime(r["DataHora"])
		if err != nil {
			return nil, err
		}
		month = time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
		level, _ := strconv.Atoi(r["NivelConsistencia"])

		for d := 1; d <= daysIn(month); d++ {
			raw := r[fmt.Sprintf("%s%02d", col, d)]
			if raw == "" {
				continue
			}
			v, err := parseNumber(raw)
			if err != nil {
				return nil, fmt.Errorf("%s%02d of %s: %w", col, d, month.Format("2006-01"), err)
			}
			day := month.AddDate(0, 0, d-1)
			if day.Before(from) || (!to.IsZero() && day.After(to)) {
				continue
			}
			if prev, ok := days[day]; ok && prev.level >= level {
				continue
			}
			days[day] = leveledSample{value: v * dt.scale(), level: level}
		}
	}

	ts := make(hydrology.TimeSeries, 0, len(days))
	for day, s := range days {
		ts = append(ts, hydrology.Point{Time: day, Value: s.value})
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Time.Before(ts[j].Time) })
	return ts, nil
}

func daysIn(month time.Time) int {
	return time.Date(month.Year(), month.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
}
