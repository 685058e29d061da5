package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Result statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// RatingCurveResult carries the fitted coefficients and diagnostics.
type RatingCurveResult struct {
	A        float64 `json:"a"`
	B        float64 `json:"b"`
	C        float64 `json:"c"`
	StageMin float64 `json:"stage_min_m"`
	StageMax float64 `json:"stage_max_m"`
	RSquared float64 `json:"r_squared"`
	RMSE     float64 `json:"rmse"`
	Samples  int     `json:"samples"`
}

// HydrographResult is a direct runoff hydrograph and its peak.
type HydrographResult struct {
	Ordinates     []float64 `json:"ordinates"`
	PeakIndex     int       `json:"peak_index"`
	PeakDischarge float64   `json:"peak_discharge_m3s"`
	UnitDepthMM   float64   `json:"unit_depth_mm,omitempty"`
	// RainFailureRatio is the fraction of fetched rainfall samples that were
	// missing or rejected as gauge errors.
	RainFailureRatio float64 `json:"rain_failure_ratio"`
}

// DischargeStats summarises a daily discharge series. Q95 is the flow
// exceeded 95% of the time.
type DischargeStats struct {
	Samples      int                `json:"samples"`
	Mean         float64            `json:"mean_m3s"`
	Min          float64            `json:"min_m3s"`
	Max          float64            `json:"max_m3s"`
	Q50          float64            `json:"q50_m3s"`
	Q90          float64            `json:"q90_m3s"`
	Q95          float64            `json:"q95_m3s"`
	MonthlyMean  map[string]float64 `json:"monthly_mean_m3s,omitempty"`
	SedimentLoad *float64           `json:"sediment_load_t_day,omitempty"`
	FailureRatio float64            `json:"failure_ratio"`
}

// AnalysisResult is published to the sink topic for every consumed request.
type AnalysisResult struct {
	ID             string             `json:"id"`
	Kind           Kind               `json:"kind"`
	Status         string             `json:"status"`
	Error          string             `json:"error,omitempty"`
	Station        string             `json:"station,omitempty"`
	Basin          string             `json:"basin,omitempty"`
	RatingCurve    *RatingCurveResult `json:"rating_curve,omitempty"`
	Hydrograph     *HydrographResult  `json:"hydrograph,omitempty"`
	PeakFlow       *float64           `json:"peak_flow_m3s,omitempty"`
	DischargeStats *DischargeStats    `json:"discharge_stats,omitempty"`
	ProcessedAt    time.Time          `json:"processed_at"`
}

// NewResult starts a successful result for req.
func NewResult(req AnalysisRequest) AnalysisResult {
	return AnalysisResult{
		ID:          req.ID,
		Kind:        req.Kind,
		Status:      StatusOK,
		Station:     req.Station,
		Basin:       req.Basin,
		ProcessedAt: clock.Now().UTC(),
	}
}

// FailedResult reports why req could not be analysed.
func FailedResult(req AnalysisRequest, err error) AnalysisResult {
	res := NewResult(req)
	res.Status = StatusFailed
	res.Error = err.Error()
	return res
}

// SerializeResult marshals a result into an output event keyed by request ID.
func SerializeResult(res AnalysisResult) (OutputEvent, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize analysis result: %w", err)
	}
	return OutputEvent{
		Key:   []byte(res.ID),
		Value: data,
		Headers: map[string]string{
			"kind":         string(res.Kind),
			"status":       res.Status,
			"processed_at": res.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}
