package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/hydro-data-etl-service/internal/hydrology"
)

// StageDischargeSource provides daily stage (m) and discharge (m³/s) series
// for a fluviometric station.
type StageDischargeSource interface {
	Stage(ctx context.Context, station string, start, end time.Time) (hydrology.TimeSeries, error)
	Discharge(ctx context.Context, station string, start, end time.Time) (hydrology.TimeSeries, error)
}

// RainfallSource provides rainfall depth (mm) series for a rain gauge.
type RainfallSource interface {
	Rainfall(ctx context.Context, station string, start, end time.Time) (hydrology.TimeSeries, error)
}

// Basin holds the physical parameters of a drainage basin.
type Basin struct {
	Name              string                   `yaml:"name" json:"name" validate:"required"`
	AreaKm2           float64                  `yaml:"area_km2" json:"area_km2" validate:"gte=0"`
	RunoffCoefficient float64                  `yaml:"runoff_coefficient" json:"runoff_coefficient" validate:"gte=0,lte=1"`
	OutletStation     string                   `yaml:"outlet_station" json:"outlet_station,omitempty" validate:"omitempty,numeric"`
	RainStation       string                   `yaml:"rain_station" json:"rain_station,omitempty"`
	RainSource        string                   `yaml:"rain_source" json:"rain_source,omitempty" validate:"omitempty,oneof=ana inmet"`
	UnitDepthMM       float64                  `yaml:"unit_depth_mm" json:"unit_depth_mm,omitempty" validate:"gte=0"`
	UnitHydrograph    hydrology.UnitHydrograph `yaml:"unit_hydrograph" json:"unit_hydrograph,omitempty"`
}

// Validate checks the basin's parameters and, when present, its unit
// hydrograph.
func (b Basin) Validate() error {
	problems, err := structProblems(b)
	if err != nil {
		return fmt.Errorf("validate basin: %w", err)
	}
	if len(b.UnitHydrograph) > 0 {
		if err := b.UnitHydrograph.Validate(); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("basin %q: %s", b.Name, strings.Join(problems, "; "))
	}
	return nil
}

// BasinLookup resolves basins by name.
type BasinLookup interface {
	Basin(name string) (Basin, bool)
}
