// Package inmet reads automatic and conventional weather station data from
// the INMET REST API (apitempo.inmet.gov.br).
package inmet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/hydro-data-etl-service/internal/adapter/httpclient"
	"github.com/couchcryptid/hydro-data-etl-service/internal/hydrology"
)

// DefaultBaseURL is the public INMET API endpoint.
const DefaultBaseURL = "https://apitempo.inmet.gov.br"

// Daily observation columns.
const (
	VarRainfall     = "CHUVA"         // mm
	VarPressureMean = "PRESS_ATM_MED" // hPa
	VarTempMax      = "TEMP_MAX"      // °C
	VarTempMean     = "TEMP_MED"      // °C
	VarTempMin      = "TEMP_MIN"      // °C
	VarHumidityMean = "UMID_MED"      // %
	VarHumidityMin  = "UMID_MIN"      // %
	VarWindMean     = "VEL_VENTO_MED" // m/s
)

// Frequency selects hourly or daily observations.
type Frequency int

const (
	Hourly Frequency = iota
	Daily
)

// Client implements domain.RainfallSource on top of the INMET API.
type Client struct {
	baseURL string
	http    *httpclient.Client
	logger  *slog.Logger
}

// NewClient creates an INMET client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, opts ...httpclient.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	hc := httpclient.New("inmet", opts...)
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		logger:  hc.Logger(),
	}
}

// Station is an INMET inventory entry.
type Station struct {
	Code      string
	Name      string
	State     string
	Latitude  float64
	Longitude float64
	Altitude  float64
	Status    string
	Type      string
	Since     time.Time
}

type stationJSON struct {
	Code      string `json:"CD_ESTACAO"`
	Name      string `json:"DC_NOME"`
	State     string `json:"SG_ESTADO"`
	Latitude  number `json:"VL_LATITUDE"`
	Longitude number `json:"VL_LONGITUDE"`
	Altitude  number `json:"VL_ALTITUDE"`
	Status    string `json:"CD_SITUACAO"`
	Type      string `json:"TP_ESTACAO"`
	Since     string `json:"DT_INICIO_OPERACAO"`
}

// Stations lists telemetric (automatic) or conventional stations.
func (c *Client) Stations(ctx context.Context, telemetric bool) ([]Station, error) {
	kind := "M"
	if telemetric {
		kind = "T"
	}
	body, err := c.http.Get(ctx, c.baseURL+"/estacoes/"+kind, "application/json")
	if err != nil {
		return nil, err
	}

	var raw []stationJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode inmet stations: %w", err)
	}

	stations := make([]Station, 0, len(raw))
	for _, s := range raw {
		st := Station{
			Code:      s.Code,
			Name:      s.Name,
			State:     s.State,
			Latitude:  s.Latitude.Value,
			Longitude: s.Longitude.Value,
			Altitude:  s.Altitude.Value,
			Status:    s.Status,
			Type:      s.Type,
		}
		if s.Since != "" {
			if t, err := time.Parse(time.DateOnly, s.Since[:min(len(s.Since), 10)]); err == nil {
				st.Since = t
			}
		}
		stations = append(stations, st)
	}
	return stations, nil
}

// Observation is one station record. Values holds every numeric column that
// was present; null or blank columns are absent.
type Observation struct {
	Station string
	Time    time.Time
	Values  map[string]float64
}

// Observations returns station records between start and end inclusive. A
// single call may span at most one year; see Rainfall for longer windows.
func (c *Client) Observations(ctx context.Context, station string, start, end time.Time, freq Frequency) ([]Observation, error) {
	path := "/estacao/"
	if freq == Daily {
		path += "diaria/"
	}
	fullURL := fmt.Sprintf("%s%s%s/%s/%s", c.baseURL, path,
		start.Format(time.DateOnly), end.Format(time.DateOnly), station)

	body, err := c.http.Get(ctx, fullURL, "application/json")
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}

	var records []map[string]json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode inmet observations: %w", err)
	}

	out := make([]Observation, 0, len(records))
	for _, rec := range records {
		obs, err := parseObservation(rec)
		if err != nil {
			return nil, fmt.Errorf("station %s: %w", station, err)
		}
		out = append(out, obs)
	}
	return out, nil
}

// Rainfall returns daily rainfall depths (mm), requesting at most one year
// per call.
func (c *Client) Rainfall(ctx context.Context, station string, start, end time.Time) (hydrology.TimeSeries, error) {
	return c.DailySeries(ctx, station, VarRainfall, start, end)
}

// DailySeries returns one daily column (see the Var constants) as a sorted
// series, requesting at most one year per call. Days without a reading are
// dropped.
func (c *Client) DailySeries(ctx context.Context, station, variable string, start, end time.Time) (hydrology.TimeSeries, error) {
	var ts hydrology.TimeSeries
	for _, w := range yearWindows(start, end) {
		obs, err := c.Observations(ctx, station, w[0], w[1], Daily)
		if err != nil {
			return nil, err
		}
		for _, o := range obs {
			v, ok := o.Values[variable]
			if !ok {
				continue
			}
			ts = append(ts, hydrology.Point{Time: o.Time, Value: v})
		}
	}
	ts = ts.Sorted().Dedupe()
	c.logger.Debug("inmet daily series fetched", "station", station, "variable", variable, "samples", len(ts))
	return ts, nil
}

// yearWindows splits [start, end] into consecutive windows no longer than
// one year.
func yearWindows(start, end time.Time) [][2]time.Time {
	var windows [][2]time.Time
	for cur := start; !cur.After(end); {
		stop := cur.AddDate(1, 0, -1)
		if stop.After(end) {
			stop = end
		}
		windows = append(windows, [2]time.Time{cur, stop})
		cur = stop.AddDate(0, 0, 1)
	}
	return windows
}

func parseObservation(rec map[string]json.RawMessage) (Observation, error) {
	var obs Observation
	var date, hour string
	obs.Values = make(map[string]float64)

	for key, raw := range rec {
		switch key {
		case "CD_ESTACAO":
			_ = json.Unmarshal(raw, &obs.Station)
		case "DT_MEDICAO":
			_ = json.Unmarshal(raw, &date)
		case "HR_MEDICAO":
			_ = json.Unmarshal(raw, &hour)
		default:
			var n number
			if err := json.Unmarshal(raw, &n); err == nil && n.Valid {
				obs.Values[key] = n.Value
			}
		}
	}

	t, err := observationTime(date, hour)
	if err != nil {
		return Observation{}, err
	}
	obs.Time = t
	return obs, nil
}

// observationTime combines DT_MEDICAO with an optional HR_MEDICAO in HHMM
// (e.g. "1200" is 12:00 UTC).
func observationTime(date, hour string) (time.Time, error) {
	day, err := time.Parse(time.DateOnly, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, fmt.Errorf("DT_MEDICAO %q: %w", date, err)
	}
	hour = strings.TrimSpace(hour)
	if hour == "" {
		return day, nil
	}
	if len(hour) < 4 {
		hour = strings.Repeat("0", 4-len(hour)) + hour
	}
	hh, errH := strconv.Atoi(hour[:2])
	mm, errM := strconv.Atoi(hour[2:4])
	if errH != nil || errM != nil || hh > 23 || mm > 59 {
		return time.Time{}, fmt.Errorf("HR_MEDICAO %q: want HHMM", hour)
	}
	return day.Add(time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute), nil
}

// number decodes INMET values, which arrive as JSON numbers, numeric
// strings, blank strings or null.
type number struct {
	Value float64
	Valid bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = number{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
		if s == "" {
			*n = number{}
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*n = number{Value: v, Valid: true}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = number{Value: v, Valid: true}
	return nil
}
