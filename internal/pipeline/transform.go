package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/hydro-data-etl-service/internal/domain"
	"github.com/couchcryptid/hydro-data-etl-service/internal/hydrology"
	"github.com/couchcryptid/hydro-data-etl-service/internal/observability"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Sources are the data providers an AnalysisTransformer resolves request
// references against. Any of them may be nil; requests that need a missing
// source fail validation.
type Sources struct {
	StageDischarge domain.StageDischargeSource
	// Rainfall maps a rain source name (domain.RainSourceANA,
	// domain.RainSourceINMET) to its provider.
	Rainfall map[string]domain.RainfallSource
	Basins   domain.BasinLookup
}

// AnalysisTransformer implements Transformer for hydrological analysis
// requests.
type AnalysisTransformer struct {
	sources      Sources
	outlierLimit float64
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// NewAnalysisTransformer creates a transformer. A non-positive
// rainOutlierLimit selects hydrology.DefaultRainOutlierLimit.
func NewAnalysisTransformer(sources Sources, rainOutlierLimit float64, logger *slog.Logger, metrics *observability.Metrics) *AnalysisTransformer {
	if rainOutlierLimit <= 0 {
		rainOutlierLimit = hydrology.DefaultRainOutlierLimit
	}
	return &AnalysisTransformer{
		sources:      sources,
		outlierLimit: rainOutlierLimit,
		logger:       logger,
		metrics:      metrics,
	}
}

// Transform parses and runs one analysis request. Invalid requests and
// requests the data cannot support produce a failed result; upstream fetch
// errors are returned so that the message is skipped.
func (t *AnalysisTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	req, err := domain.ParseRequest(raw)
	if err != nil {
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			return domain.OutputEvent{}, err
		}
		t.logger.Warn("invalid analysis request", "id", req.ID, "error", err)
		return t.publish(domain.FailedResult(req, err))
	}

	res, err := t.analyse(ctx, req)
	if err != nil {
		if !isAnalysisFailure(err) {
			return domain.OutputEvent{}, fmt.Errorf("request %s: %w", req.ID, err)
		}
		t.logger.Info("analysis failed", "id", req.ID, "kind", req.Kind, "error", err)
		return t.publish(domain.FailedResult(req, err))
	}
	return t.publish(res)
}

func (t *AnalysisTransformer) publish(res domain.AnalysisResult) (domain.OutputEvent, error) {
	out, err := domain.SerializeResult(res)
	if err != nil {
		return domain.OutputEvent{}, err
	}
	kind := string(res.Kind)
	if kind == "" {
		kind = "unknown"
	}
	t.metrics.Analyses.WithLabelValues(kind, res.Status).Inc()
	return out, nil
}

// isAnalysisFailure reports whether err is a property of the request or its
// data rather than of the infrastructure.
func isAnalysisFailure(err error) bool {
	var (
		verr     *domain.ValidationError
		insuff   *hydrology.InsufficientDataError
		empty    *hydrology.EmptyInputError
		mismatch *hydrology.DimensionMismatchError
		ill      *hydrology.IllConditionedError
	)
	return errors.As(err, &verr) ||
		errors.As(err, &insuff) ||
		errors.As(err, &empty) ||
		errors.As(err, &mismatch) ||
		errors.As(err, &ill) ||
		errors.Is(err, hydrology.ErrEmptyHydrograph)
}

func invalid(format string, args ...any) error {
	return &domain.ValidationError{Problems: []string{fmt.Sprintf(format, args...)}}
}

func (t *AnalysisTransformer) analyse(ctx context.Context, req domain.AnalysisRequest) (domain.AnalysisResult, error) {
	basin, err := t.basin(req)
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	res := domain.NewResult(req)
	switch req.Kind {
	case domain.KindRatingCurve:
		res.RatingCurve, err = t.ratingCurve(ctx, req)
	case domain.KindHydrograph:
		res.Hydrograph, err = t.hydrograph(ctx, req, basin)
	case domain.KindPeakFlow:
		res.PeakFlow, err = peakFlow(req, basin)
	case domain.KindDischargeStats:
		res.DischargeStats, err = t.dischargeStats(ctx, req)
	default:
		err = invalid("unsupported kind %q", req.Kind)
	}
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	return res, nil
}

func (t *AnalysisTransformer) basin(req domain.AnalysisRequest) (domain.Basin, error) {
	if req.Basin == "" {
		return domain.Basin{}, nil
	}
	if t.sources.Basins == nil {
		return domain.Basin{}, invalid("basin %q requested but no basin catalog is configured", req.Basin)
	}
	b, ok := t.sources.Basins.Basin(req.Basin)
	if !ok {
		return domain.Basin{}, invalid("unknown basin %q", req.Basin)
	}
	return b, nil
}

func (t *AnalysisTransformer) ratingCurve(ctx context.Context, req domain.AnalysisRequest) (*domain.RatingCurveResult, error) {
	var (
		fit hydrology.RatingCurveFit
		err error
	)
	if len(req.Stage) > 0 || len(req.Discharge) > 0 {
		fit, err = hydrology.FitRatingCurve(req.Stage, req.Discharge)
	} else {
		src := t.sources.StageDischarge
		if src == nil {
			return nil, invalid("no stage/discharge source is configured")
		}
		stage, ferr := src.Stage(ctx, req.Station, req.Start.Time, req.End.Time)
		if ferr != nil {
			return nil, fmt.Errorf("fetch stage: %w", ferr)
		}
		discharge, ferr := src.Discharge(ctx, req.Station, req.Start.Time, req.End.Time)
		if ferr != nil {
			return nil, fmt.Errorf("fetch discharge: %w", ferr)
		}
		fit, err = hydrology.FitRatingCurveSeries(atHour(stage, req.Hour), atHour(discharge, req.Hour))
	}
	if err != nil {
		return nil, err
	}

	return &domain.RatingCurveResult{
		A:        fit.Model.A,
		B:        fit.Model.B,
		C:        fit.Model.C,
		StageMin: fit.Model.StageMin,
		StageMax: fit.Model.StageMax,
		RSquared: finiteOrZero(fit.RSquared),
		RMSE:     fit.RMSE,
		Samples:  fit.Samples,
	}, nil
}

func (t *AnalysisTransformer) hydrograph(ctx context.Context, req domain.AnalysisRequest, basin domain.Basin) (*domain.HydrographResult, error) {
	uh := hydrology.UnitHydrograph(req.UnitHydrograph)
	if len(uh) == 0 {
		uh = basin.UnitHydrograph
	}
	if len(uh) == 0 {
		return nil, invalid("basin %q has no unit hydrograph", basin.Name)
	}
	unitDepth := req.UnitDepthMM
	if unitDepth == 0 {
		unitDepth = basin.UnitDepthMM
	}

	rain := req.Rainfall
	var failureRatio float64
	if len(rain) == 0 {
		ts, err := t.fetchRainfall(ctx, req, basin)
		if err != nil {
			return nil, err
		}
		ts = hydrology.RemoveOutliers(hydrology.DropNegatives(ts), t.outlierLimit)
		failureRatio = hydrology.FailureRatio(ts)
		rain = zeroMissing(ts)
	}

	ordinates, err := hydrology.Convolve(hydrology.EffectiveRainfall(rain, unitDepth), uh)
	if err != nil {
		return nil, err
	}
	idx, peak, err := hydrology.Peak(ordinates)
	if err != nil {
		return nil, err
	}
	return &domain.HydrographResult{
		Ordinates:        ordinates,
		PeakIndex:        idx,
		PeakDischarge:    peak,
		UnitDepthMM:      unitDepth,
		RainFailureRatio: failureRatio,
	}, nil
}

// fetchRainfall reads the request's rain gauge, falling back to the basin's
// gauge and rain source, as one value per day of the request window.
func (t *AnalysisTransformer) fetchRainfall(ctx context.Context, req domain.AnalysisRequest, basin domain.Basin) (hydrology.TimeSeries, error) {
	station, source := req.RainStation, req.RainSource
	if station == "" {
		station = basin.RainStation
		if basin.RainSource != "" {
			source = basin.RainSource
		}
	}
	if station == "" {
		return nil, invalid("basin %q has no rain station", basin.Name)
	}
	src, ok := t.sources.Rainfall[source]
	if !ok || src == nil {
		return nil, invalid("rain source %q is not configured", source)
	}

	ts, err := src.Rainfall(ctx, station, req.Start.Time, req.End.Time)
	if err != nil {
		return nil, fmt.Errorf("fetch rainfall from %s: %w", source, err)
	}
	// Gauges omit days without a reading; those days are kept as missing
	// so later pulses stay on their own day.
	return atHour(ts.Sorted(), req.Hour).Daily(req.Start.Time, req.End.Time), nil
}

func peakFlow(req domain.AnalysisRequest, basin domain.Basin) (*float64, error) {
	c, area := req.RunoffCoefficient, req.AreaKm2
	if c == 0 {
		c = basin.RunoffCoefficient
	}
	if area == 0 {
		area = basin.AreaKm2
	}
	if c == 0 || area == 0 {
		return nil, invalid("peak_flow needs a runoff coefficient and area for basin %q", basin.Name)
	}
	q := hydrology.RationalPeakFlow(c, req.IntensityMMh, area)
	return &q, nil
}

func (t *AnalysisTransformer) dischargeStats(ctx context.Context, req domain.AnalysisRequest) (*domain.DischargeStats, error) {
	var (
		values  []float64
		monthly map[string]float64
		ratio   float64
	)
	if len(req.Discharge) > 0 {
		values = finiteValues(req.Discharge)
		ratio = 1 - float64(len(values))/float64(len(req.Discharge))
	} else {
		src := t.sources.StageDischarge
		if src == nil {
			return nil, invalid("no stage/discharge source is configured")
		}
		ts, err := src.Discharge(ctx, req.Station, req.Start.Time, req.End.Time)
		if err != nil {
			return nil, fmt.Errorf("fetch discharge: %w", err)
		}
		ts = atHour(ts, req.Hour)
		ratio = hydrology.FailureRatio(ts)
		values = ts.DropMissing().Values()
		monthly = monthKeys(hydrology.MonthlyLongTermMean(ts))
	}
	if len(values) == 0 {
		return nil, &hydrology.EmptyInputError{Input: "discharge"}
	}

	stats := &domain.DischargeStats{
		Samples:      len(values),
		Mean:         stat.Mean(values, nil),
		Min:          floats.Min(values),
		Max:          floats.Max(values),
		MonthlyMean:  monthly,
		FailureRatio: ratio,
	}
	// Qx is the flow exceeded x% of the time.
	for _, q := range []struct {
		dst *float64
		p   float64
	}{
		{&stats.Q50, 0.50},
		{&stats.Q90, 0.10},
		{&stats.Q95, 0.05},
	} {
		v, err := hydrology.Percentile(values, q.p)
		if err != nil {
			return nil, err
		}
		*q.dst = v
	}

	if req.ConcentrationMgL > 0 {
		load, err := hydrology.SuspendedSedimentLoad(req.ConcentrationMgL, values)
		if err != nil {
			return nil, err
		}
		stats.SedimentLoad = &load
	}
	return stats, nil
}

func atHour(ts hydrology.TimeSeries, hour *int) hydrology.TimeSeries {
	if hour == nil {
		return ts
	}
	return ts.AtHour(*hour)
}

// zeroMissing returns the series values with missing samples as zero depth.
func zeroMissing(ts hydrology.TimeSeries) []float64 {
	out := ts.Values()
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = 0
		}
	}
	return out
}

func finiteValues(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

func monthKeys(m map[time.Month]float64) map[string]float64 {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]float64, len(m))
	for month, v := range m {
		out[fmt.Sprintf("%02d", int(month))] = v
	}
	return out
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
