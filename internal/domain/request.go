package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Kind selects the analysis a request asks for.
type Kind string

const (
	KindRatingCurve    Kind = "rating_curve"
	KindHydrograph     Kind = "hydrograph"
	KindPeakFlow       Kind = "peak_flow"
	KindDischargeStats Kind = "discharge_stats"
)

// Rainfall providers a request may name.
const (
	RainSourceANA   = "ana"
	RainSourceINMET = "inmet"
)

// DateLayout is the wire format of request dates.
const DateLayout = "2006-01-02"

// Date is a calendar day encoded as "yyyy-mm-dd".
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		return nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return fmt.Errorf("date %q: want yyyy-mm-dd", s)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

// AnalysisRequest is the JSON payload consumed from the source topic.
type AnalysisRequest struct {
	ID          string `json:"id,omitempty" validate:"omitempty,max=128"`
	Kind        Kind   `json:"kind" validate:"required,oneof=rating_curve hydrograph peak_flow discharge_stats"`
	Station     string `json:"station,omitempty" validate:"omitempty,numeric"`
	RainStation string `json:"rain_station,omitempty"`
	RainSource  string `json:"rain_source,omitempty" default:"ana" validate:"oneof=ana inmet"`
	Start       Date   `json:"start" validate:"-"`
	End         Date   `json:"end" validate:"-"`
	// Hour keeps only readings taken at this hour (UTC) when set.
	Hour  *int   `json:"hour,omitempty" validate:"omitempty,min=0,max=23"`
	Basin string `json:"basin,omitempty"`

	Stage          []float64 `json:"stage,omitempty"`
	Discharge      []float64 `json:"discharge,omitempty"`
	Rainfall       []float64 `json:"rainfall,omitempty" validate:"omitempty,dive,gte=0"`
	UnitHydrograph []float64 `json:"unit_hydrograph,omitempty" validate:"omitempty,dive,gte=0"`
	UnitDepthMM    float64   `json:"unit_depth_mm,omitempty" validate:"gte=0"`

	RunoffCoefficient float64 `json:"runoff_coefficient,omitempty" validate:"gte=0,lte=1"`
	IntensityMMh      float64 `json:"intensity_mm_h,omitempty" validate:"gte=0"`
	AreaKm2           float64 `json:"area_km2,omitempty" validate:"gte=0"`
	ConcentrationMgL  float64 `json:"concentration_mg_l,omitempty" validate:"gte=0"`
}

// HasPeriod reports whether both start and end dates are set.
func (r AnalysisRequest) HasPeriod() bool {
	return !r.Start.IsZero() && !r.End.IsZero()
}

// ValidationError lists everything wrong with a request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Problems, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseRequest decodes, defaults and validates a request from a raw event.
// The returned request carries an ID even when validation fails so that a
// failed result can still be keyed.
func ParseRequest(raw RawEvent) (AnalysisRequest, error) {
	var req AnalysisRequest
	if err := json.Unmarshal(raw.Value, &req); err != nil {
		req = AnalysisRequest{ID: requestID(raw.Value)}
		return req, &ValidationError{Problems: []string{fmt.Sprintf("decode: %v", err)}}
	}
	if req.ID == "" {
		req.ID = requestID(raw.Value)
	}

	if err := defaults.Set(&req); err != nil {
		return req, fmt.Errorf("apply request defaults: %w", err)
	}

	problems, err := structProblems(req)
	if err != nil {
		return req, fmt.Errorf("validate request: %w", err)
	}
	problems = append(problems, kindProblems(req)...)

	if len(problems) > 0 {
		return req, &ValidationError{Problems: problems}
	}
	return req, nil
}

// structProblems runs the struct tag validations and renders each failed
// field as a readable problem.
func structProblems(v any) ([]string, error) {
	err := validate.Struct(v)
	if err == nil {
		return nil, nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil, err
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fieldMessage(fe))
	}
	return problems, nil
}

// kindProblems checks that a request carries the inputs its kind needs,
// either inline or as a reference the service can resolve.
func kindProblems(req AnalysisRequest) []string {
	var problems []string

	if req.HasPeriod() && req.End.Before(req.Start.Time) {
		problems = append(problems, "end must not be before start")
	}
	if req.Start.IsZero() != req.End.IsZero() {
		problems = append(problems, "start and end must be given together")
	}

	switch req.Kind {
	case KindRatingCurve:
		inline := len(req.Stage) > 0 || len(req.Discharge) > 0
		if inline && len(req.Stage) != len(req.Discharge) {
			problems = append(problems, fmt.Sprintf("stage has %d values but discharge has %d", len(req.Stage), len(req.Discharge)))
		}
		if !inline && (req.Station == "" || !req.HasPeriod()) {
			problems = append(problems, "rating_curve needs stage and discharge, or station with start and end")
		}
	case KindHydrograph:
		if len(req.UnitHydrograph) == 0 && req.Basin == "" {
			problems = append(problems, "hydrograph needs unit_hydrograph or basin")
		}
		if len(req.Rainfall) == 0 && ((req.RainStation == "" && req.Basin == "") || !req.HasPeriod()) {
			problems = append(problems, "hydrograph needs rainfall, or rain_station or basin with start and end")
		}
	case KindPeakFlow:
		if req.IntensityMMh == 0 {
			problems = append(problems, "intensity_mm_h is required")
		}
		if req.Basin == "" && (req.AreaKm2 == 0 || req.RunoffCoefficient == 0) {
			problems = append(problems, "peak_flow needs basin, or area_km2 and runoff_coefficient")
		}
	case KindDischargeStats:
		if len(req.Discharge) == 0 && (req.Station == "" || !req.HasPeriod()) {
			problems = append(problems, "discharge_stats needs discharge, or station with start and end")
		}
	}
	return problems
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "numeric":
		return fmt.Sprintf("%s must be numeric", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// requestID derives a stable ID from the raw payload.
func requestID(payload []byte) string {
	hash := sha256.Sum256(payload)
	return "req-" + hex.EncodeToString(hash[:8])
}
