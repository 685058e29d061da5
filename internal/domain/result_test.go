package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeResult(t *testing.T) {
	fixed := time.Date(2024, 4, 26, 15, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { SetClock(nil) })

	req := AnalysisRequest{ID: "r-1", Kind: KindPeakFlow, Basin: "ribeirao"}
	res := NewResult(req)
	peak := 27.8
	res.PeakFlow = &peak

	out, err := SerializeResult(res)
	require.NoError(t, err)

	assert.Equal(t, []byte("r-1"), out.Key)
	want := map[string]string{
		"kind":         "peak_flow",
		"status":       "ok",
		"processed_at": "2024-04-26T15:00:00Z",
	}
	if diff := cmp.Diff(want, out.Headers); diff != "" {
		t.Errorf("headers mismatch (-want +got):\n%s", diff)
	}

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Value, &decoded))
	assert.Equal(t, "r-1", decoded["id"])
	assert.Equal(t, "ribeirao", decoded["basin"])
	assert.Equal(t, 27.8, decoded["peak_flow_m3s"])
	assert.Equal(t, "2024-04-26T15:00:00Z", decoded["processed_at"])
	assert.NotContains(t, decoded, "error")
	assert.NotContains(t, decoded, "rating_curve")
}

func TestFailedResult(t *testing.T) {
	req := AnalysisRequest{ID: "r-2", Kind: KindRatingCurve, Station: "56994500"}
	res := FailedResult(req, errors.New("insufficient data: 2 samples, need at least 3"))

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "insufficient data: 2 samples, need at least 3", res.Error)
	assert.Equal(t, "56994500", res.Station)
	assert.False(t, res.ProcessedAt.IsZero())

	out, err := SerializeResult(res)
	require.NoError(t, err)
	assert.Equal(t, "failed", out.Headers["status"])
}

func TestSetClock_NilResets(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)))
	SetClock(nil)
	assert.WithinDuration(t, time.Now(), NewResult(AnalysisRequest{}).ProcessedAt, time.Minute)
}
