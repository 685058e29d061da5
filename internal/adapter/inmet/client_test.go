package inmet

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/hydro-data-etl-service/internal/adapter/httpclient"
	"github.com/couchcryptid/hydro-data-etl-service/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testStation       = "A001"
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"
)

func testClient(baseURL string) *Client {
	return NewClient(baseURL,
		httpclient.WithTimeout(5*time.Second),
		httpclient.WithRetries(1, time.Millisecond),
		httpclient.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		httpclient.WithMetrics(observability.NewMetricsForTesting()),
	)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestClient_Stations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/estacoes/T", r.URL.Path)
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `[
			{"CD_ESTACAO":"A001","DC_NOME":"BRASILIA","SG_ESTADO":"DF","VL_LATITUDE":"-15.78944444","VL_LONGITUDE":"-47.92583332","VL_ALTITUDE":"1160.96","CD_SITUACAO":"Operante","TP_ESTACAO":"Automatica","DT_INICIO_OPERACAO":"2000-05-07T21:00:00.000-03:00"},
			{"CD_ESTACAO":"A002","DC_NOME":"GOIANIA","SG_ESTADO":"GO","VL_LATITUDE":-16.64,"VL_LONGITUDE":-49.22,"VL_ALTITUDE":null,"CD_SITUACAO":"Operante","TP_ESTACAO":"Automatica","DT_INICIO_OPERACAO":null}
		]`)
	}))
	defer srv.Close()

	stations, err := testClient(srv.URL).Stations(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, stations, 2)

	assert.Equal(t, "A001", stations[0].Code)
	assert.Equal(t, "BRASILIA", stations[0].Name)
	assert.InDelta(t, -15.78944444, stations[0].Latitude, 1e-9)
	assert.InDelta(t, 1160.96, stations[0].Altitude, 1e-9)
	assert.Equal(t, date(2000, time.May, 7), stations[0].Since)

	assert.InDelta(t, -16.64, stations[1].Latitude, 1e-9)
	assert.Equal(t, 0.0, stations[1].Altitude)
	assert.True(t, stations[1].Since.IsZero())
}

func TestClient_Stations_Conventional(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/estacoes/M", r.URL.Path)
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	stations, err := testClient(srv.URL).Stations(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, stations)
}

func TestClient_Observations_Hourly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/estacao/2021-03-01/2021-03-01/A001", r.URL.Path)
		_, _ = io.WriteString(w, `[
			{"CD_ESTACAO":"A001","DT_MEDICAO":"2021-03-01","HR_MEDICAO":"0000","CHUVA":"0.2","TEM_INS":"21.5","DC_NOME":"BRASILIA"},
			{"CD_ESTACAO":"A001","DT_MEDICAO":"2021-03-01","HR_MEDICAO":"1200","CHUVA":null,"TEM_INS":23.1},
			{"CD_ESTACAO":"A001","DT_MEDICAO":"2021-03-01","HR_MEDICAO":"1300","CHUVA":"","TEM_INS":"24"}
		]`)
	}))
	defer srv.Close()

	obs, err := testClient(srv.URL).Observations(context.Background(), testStation,
		date(2021, time.March, 1), date(2021, time.March, 1), Hourly)
	require.NoError(t, err)
	require.Len(t, obs, 3)

	assert.Equal(t, "A001", obs[0].Station)
	assert.Equal(t, date(2021, time.March, 1), obs[0].Time)
	assert.InDelta(t, 0.2, obs[0].Values[VarRainfall], 1e-12)
	assert.InDelta(t, 21.5, obs[0].Values["TEM_INS"], 1e-12)
	assert.NotContains(t, obs[0].Values, "DC_NOME", "text columns are not numeric values")

	assert.Equal(t, date(2021, time.March, 1).Add(12*time.Hour), obs[1].Time)
	assert.NotContains(t, obs[1].Values, VarRainfall)
	assert.InDelta(t, 23.1, obs[1].Values["TEM_INS"], 1e-12)

	assert.NotContains(t, obs[2].Values, VarRainfall)
}

func TestClient_Observations_NullBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "null")
	}))
	defer srv.Close()

	obs, err := testClient(srv.URL).Observations(context.Background(), testStation,
		date(2021, time.March, 1), date(2021, time.March, 2), Daily)
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func TestClient_Observations_BadTimestamp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"DT_MEDICAO":"01/03/2021","HR_MEDICAO":"1200"}]`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Observations(context.Background(), testStation,
		date(2021, time.March, 1), date(2021, time.March, 1), Hourly)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DT_MEDICAO")
}

func TestClient_Rainfall_SplitsIntoYearWindows(t *testing.T) {
	var mu sync.Mutex
	var paths []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()

		// /estacao/diaria/{start}/{end}/{code}
		parts := strings.Split(r.URL.Path, "/")
		if !assert.Len(t, parts, 6) {
			return
		}
		start := parts[3]
		records := []map[string]any{
			{"CD_ESTACAO": testStation, "DT_MEDICAO": start, "CHUVA": "12.5"},
			{"CD_ESTACAO": testStation, "DT_MEDICAO": start, "CHUVA": "99"},
			{"CD_ESTACAO": testStation, "DT_MEDICAO": parts[4], "CHUVA": nil},
		}
		require.NoError(t, json.NewEncoder(w).Encode(records))
	}))
	defer srv.Close()

	ts, err := testClient(srv.URL).Rainfall(context.Background(), testStation,
		date(2019, time.June, 15), date(2021, time.January, 10))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/estacao/diaria/2019-06-15/2020-06-14/A001",
		"/estacao/diaria/2020-06-15/2021-01-10/A001",
	}, paths)

	require.Len(t, ts, 2, "duplicate days and null readings are dropped")
	assert.Equal(t, date(2019, time.June, 15), ts[0].Time)
	assert.Equal(t, 12.5, ts[0].Value)
	assert.Equal(t, date(2020, time.June, 15), ts[1].Time)
}

func TestClient_DailySeries_Temperature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/estacao/diaria/2021-03-01/2021-03-02/A001", r.URL.Path)
		_, _ = io.WriteString(w, `[
			{"CD_ESTACAO":"A001","DT_MEDICAO":"2021-03-02","CHUVA":"0","TEMP_MED":"22.4","TEMP_MAX":"28.1"},
			{"CD_ESTACAO":"A001","DT_MEDICAO":"2021-03-01","CHUVA":"3.2","TEMP_MED":"21.9","TEMP_MAX":null}
		]`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	mean, err := c.DailySeries(context.Background(), testStation, VarTempMean,
		date(2021, time.March, 1), date(2021, time.March, 2))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{date(2021, time.March, 1), date(2021, time.March, 2)}, mean.Times())
	assert.Equal(t, []float64{21.9, 22.4}, mean.Values())

	maxTemp, err := c.DailySeries(context.Background(), testStation, VarTempMax,
		date(2021, time.March, 1), date(2021, time.March, 2))
	require.NoError(t, err)
	assert.Equal(t, []float64{28.1}, maxTemp.Values())
}

func TestYearWindows(t *testing.T) {
	windows := yearWindows(date(2020, time.January, 1), date(2020, time.December, 31))
	require.Len(t, windows, 1)
	assert.Equal(t, date(2020, time.December, 31), windows[0][1])

	windows = yearWindows(date(2020, time.January, 1), date(2022, time.January, 1))
	require.Len(t, windows, 3)
	assert.Equal(t, date(2022, time.January, 1), windows[2][0])
	assert.Equal(t, date(2022, time.January, 1), windows[2][1])

	assert.Empty(t, yearWindows(date(2021, time.January, 2), date(2021, time.January, 1)))
}

func TestObservationTime(t *testing.T) {
	got, err := observationTime("2021-03-01", "930")
	require.NoError(t, err)
	assert.Equal(t, date(2021, time.March, 1).Add(9*time.Hour+30*time.Minute), got)

	_, err = observationTime("2021-03-01", "2500")
	assert.Error(t, err)
}
