// Command hydrocalc runs the hydrology routines from the command line and
// looks up stations in the ANA and INMET inventories.
//
// Usage:
//
//	hydrocalc rating -csv samples.csv [-json]
//	hydrocalc convolve -rain 10,20,5 -uh 0,12.5,40,22,8 [-unit-depth 10] [-json]
//	hydrocalc stations -source ana|inmet [-kind stream|rain] [-code 56994500] [-telemetric]
//	hydrocalc monthly -station 56994500 -var stage|rain|discharge -start 2020-01-01 -end 2020-12-31
//
// The rating CSV must have a header with time, stage and discharge columns;
// time may be empty when the samples are not dated.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/couchcryptid/hydro-data-etl-service/internal/adapter/ana"
	"github.com/couchcryptid/hydro-data-etl-service/internal/adapter/httpclient"
	"github.com/couchcryptid/hydro-data-etl-service/internal/adapter/inmet"
	"github.com/couchcryptid/hydro-data-etl-service/internal/hydrology"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

const usage = `usage: hydrocalc <command> [flags]

commands:
  rating     fit a rating curve to stage/discharge samples from a CSV file
  convolve   route rainfall through a unit hydrograph
  stations   list ANA or INMET stations
  monthly    print ANA monthly maximum, minimum and mean for a station`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	switch args[0] {
	case "rating":
		return runRating(args[1:], out)
	case "convolve":
		return runConvolve(args[1:], out)
	case "stations":
		return runStations(ctx, args[1:], out)
	case "monthly":
		return runMonthly(ctx, args[1:], out)
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func runRating(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("rating", flag.ContinueOnError)
	csvPath := fs.String("csv", "", "CSV file with time,stage,discharge columns")
	asJSON := fs.Bool("json", false, "print the fit as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *csvPath == "" {
		fs.Usage()
		return errors.New("missing required flag: -csv")
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	stage, discharge, err := readSamples(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", *csvPath, err)
	}

	var fit hydrology.RatingCurveFit
	if allDated(stage) {
		fit, err = hydrology.FitRatingCurveSeries(stage, discharge)
	} else {
		fit, err = hydrology.FitRatingCurve(stage.Values(), discharge.Values())
	}
	if err != nil {
		return err
	}

	if *asJSON {
		return writeJSON(out, fit.Model, fit.RSquared, fit.RMSE, fit.Samples)
	}
	m := fit.Model
	fmt.Fprintf(out, "Q = %.6g·h² + %.6g·h + %.6g\n", m.A, m.B, m.C)
	fmt.Fprintf(out, "stage range  %.3f .. %.3f m\n", m.StageMin, m.StageMax)
	fmt.Fprintf(out, "samples      %d\n", fit.Samples)
	fmt.Fprintf(out, "r²           %.4f\n", fit.RSquared)
	fmt.Fprintf(out, "rmse         %.4f m³/s\n", fit.RMSE)
	return nil
}

// readSamples parses a CSV with a header naming time, stage and discharge
// columns. Rows with a blank or unparsable stage or discharge are skipped.
func readSamples(r io.Reader) (stage, discharge hydrology.TimeSeries, err error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil, errors.New("no data rows")
	}

	colIdx := map[string]int{}
	for i, h := range rows[0] {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range []string{"stage", "discharge"} {
		if _, ok := colIdx[col]; !ok {
			return nil, nil, fmt.Errorf("missing %q column", col)
		}
	}

	for n, row := range rows[1:] {
		var ts time.Time
		if s := get(row, colIdx, "time"); s != "" {
			ts, err = parseSampleTime(s)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d: %w", n+2, err)
			}
		}
		h, okH := parseValue(get(row, colIdx, "stage"))
		q, okQ := parseValue(get(row, colIdx, "discharge"))
		if !okH || !okQ {
			continue
		}
		stage = append(stage, hydrology.Point{Time: ts, Value: h})
		discharge = append(discharge, hydrology.Point{Time: ts, Value: q})
	}
	return stage, discharge, nil
}

func parseSampleTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateTime, time.DateOnly, "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

// parseValue accepts a decimal comma as written in ANA exports.
func parseValue(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func get(row []string, colIdx map[string]int, col string) string {
	i, ok := colIdx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func allDated(ts hydrology.TimeSeries) bool {
	for _, p := range ts {
		if p.Time.IsZero() {
			return false
		}
	}
	return len(ts) > 0
}

func runConvolve(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("convolve", flag.ContinueOnError)
	rain := fs.String("rain", "", "comma separated rainfall depths (mm)")
	uh := fs.String("uh", "", "comma separated unit hydrograph ordinates (m³/s)")
	unitDepth := fs.Float64("unit-depth", 0, "rainfall depth (mm) the unit hydrograph was derived for")
	asJSON := fs.Bool("json", false, "print the hydrograph as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rainfall, err := parseList(*rain)
	if err != nil {
		return fmt.Errorf("-rain: %w", err)
	}
	list, err := parseList(*uh)
	if err != nil {
		return fmt.Errorf("-uh: %w", err)
	}
	ordinates := hydrology.UnitHydrograph(list)
	if err := ordinates.Validate(); err != nil {
		return err
	}

	hydrograph, err := hydrology.Convolve(hydrology.EffectiveRainfall(rainfall, *unitDepth), ordinates)
	if err != nil {
		return err
	}
	idx, peak, err := hydrology.Peak(hydrograph)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"ordinates":          hydrograph,
			"peak_index":         idx,
			"peak_discharge_m3s": peak,
		})
	}
	for i, q := range hydrograph {
		fmt.Fprintf(out, "%4d  %12.4f\n", i, q)
	}
	fmt.Fprintf(out, "peak %.4f m³/s at step %d\n", peak, idx)
	return nil
}

func parseList(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty list")
	}
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

func runStations(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("stations", flag.ContinueOnError)
	source := fs.String("source", "ana", "inventory to query: ana or inmet")
	kind := fs.String("kind", "", "ANA station kind: stream or rain")
	code := fs.String("code", "", "ANA station code")
	telemetric := fs.Bool("telemetric", false, "only telemetric (automatic) stations")
	baseURL := fs.String("base-url", "", "override the service base URL")
	timeout := fs.Duration("timeout", 60*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := sharedobs.NewLogger("warn", "text")
	opts := []httpclient.Option{httpclient.WithTimeout(*timeout), httpclient.WithLogger(logger)}

	switch *source {
	case "ana":
		q := ana.InventoryQuery{Code: *code, Telemetric: *telemetric}
		switch *kind {
		case "":
		case "stream":
			q.Kind = ana.KindStream
		case "rain":
			q.Kind = ana.KindRain
		default:
			return fmt.Errorf("unknown -kind %q", *kind)
		}
		stations, err := ana.NewClient(*baseURL, opts...).Inventory(ctx, q)
		if err != nil {
			return err
		}
		for _, s := range stations {
			fmt.Fprintf(out, "%-10s %-6s %9.4f %9.4f  %s (%s)\n", s.Code, s.Kind, s.Latitude, s.Longitude, s.Name, s.State)
		}
	case "inmet":
		stations, err := inmet.NewClient(*baseURL, opts...).Stations(ctx, *telemetric)
		if err != nil {
			return err
		}
		for _, s := range stations {
			fmt.Fprintf(out, "%-6s %-10s %9.4f %9.4f  %s (%s)\n", s.Code, s.Type, s.Latitude, s.Longitude, s.Name, s.State)
		}
	default:
		return fmt.Errorf("unknown -source %q", *source)
	}
	return nil
}

func runMonthly(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("monthly", flag.ContinueOnError)
	station := fs.String("station", "", "ANA station code")
	variable := fs.String("var", "discharge", "stage, rain or discharge")
	startFlag := fs.String("start", "", "first day (yyyy-mm-dd)")
	endFlag := fs.String("end", "", "last day (yyyy-mm-dd)")
	baseURL := fs.String("base-url", "", "override the service base URL")
	timeout := fs.Duration("timeout", 60*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *station == "" || *startFlag == "" || *endFlag == "" {
		fs.Usage()
		return errors.New("-station, -start and -end are required")
	}

	var dt ana.DataType
	switch *variable {
	case "stage":
		dt = ana.DataStage
	case "rain":
		dt = ana.DataRainfall
	case "discharge":
		dt = ana.DataDischarge
	default:
		return fmt.Errorf("unknown -var %q", *variable)
	}
	start, err := time.Parse(time.DateOnly, *startFlag)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	end, err := time.Parse(time.DateOnly, *endFlag)
	if err != nil {
		return fmt.Errorf("invalid -end: %w", err)
	}

	logger := sharedobs.NewLogger("warn", "text")
	client := ana.NewClient(*baseURL, httpclient.WithTimeout(*timeout), httpclient.WithLogger(logger))
	summaries, err := client.MonthlySummaries(ctx, *station, dt, start, end, ana.ConsistencyAny)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%-7s %5s %12s %12s %12s\n", "month", "level", "max", "min", "mean")
	for _, s := range summaries {
		fmt.Fprintf(out, "%-7s %5d %12.3f %12.3f %12.3f\n", s.Month.Format("2006-01"), s.Consistency, s.Max, s.Min, s.Mean)
	}
	return nil
}

func writeJSON(out io.Writer, model hydrology.RatingCurveModel, r2, rmse float64, samples int) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		hydrology.RatingCurveModel
		RSquared float64 `json:"r_squared"`
		RMSE     float64 `json:"rmse"`
		Samples  int     `json:"samples"`
	}{model, r2, rmse, samples})
}
