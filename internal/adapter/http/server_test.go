package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabianodin23-lab/senapred-monitor/internal/domain"
	"github.com/fabianodin23-lab/senapred-monitor/internal/pipeline"
)

type stubReadiness struct{ err error }

func (s stubReadiness) CheckReadiness(context.Context) error { return s.err }

type stubSource struct{ snap pipeline.Snapshot }

func (s stubSource) Snapshot() pipeline.Snapshot { return s.snap }

func testServer(ready error, snap pipeline.Snapshot) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(":0", stubReadiness{err: ready}, stubSource{snap: snap}, logger)
}

func doGet(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func sampleSnapshot() pipeline.Snapshot {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	return pipeline.Snapshot{
		Alerts: []domain.Alert{
			{ID: "a", Category: domain.CategoryEarly, Region: "Maule", Hazard: "Extreme Heat", Status: domain.StatusActive},
			{ID: "b", Category: domain.CategoryHigh, Region: "Valparaíso", Hazard: "Forest Fire", Status: domain.StatusActive},
			{ID: "c", Category: domain.CategoryHigh, Region: "Valparaíso", Hazard: "Forest Fire", Status: domain.StatusRetracted},
		},
		Changes: []domain.ChangeEvent{
			{AlertID: "a", Kind: domain.ChangeCreated, At: now.Add(-time.Hour)},
			{AlertID: "c", Kind: domain.ChangeRetracted, At: now},
		},
		UpdatedAt: now,
	}
}

func TestHealthz(t *testing.T) {
	rec := doGet(t, testServer(nil, pipeline.Snapshot{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		rec := doGet(t, testServer(nil, pipeline.Snapshot{}), "/readyz")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("not ready", func(t *testing.T) {
		rec := doGet(t, testServer(errors.New("no cycle yet"), pipeline.Snapshot{}), "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "no cycle yet")
	})
}

func TestAlertsEndpoint(t *testing.T) {
	rec := doGet(t, testServer(nil, sampleSnapshot()), "/api/alerts")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Alerts []domain.Alert `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	// Retracted alerts are excluded; most urgent category first.
	require.Len(t, body.Alerts, 2)
	assert.Equal(t, "b", body.Alerts[0].ID)
	assert.Equal(t, "a", body.Alerts[1].ID)
}

func TestChangesEndpoint(t *testing.T) {
	rec := doGet(t, testServer(nil, sampleSnapshot()), "/api/changes")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Changes []domain.ChangeEvent `json:"changes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	// Newest first.
	require.Len(t, body.Changes, 2)
	assert.Equal(t, domain.ChangeRetracted, body.Changes[0].Kind)
	assert.Equal(t, domain.ChangeCreated, body.Changes[1].Kind)
}

func TestSummaryEndpoint(t *testing.T) {
	rec := doGet(t, testServer(nil, sampleSnapshot()), "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Total   int                     `json:"total"`
		High    int                     `json:"high"`
		Medium  int                     `json:"medium"`
		Early   int                     `json:"early_warning"`
		Regions map[string]regionStatus `json:"regions"`
		Hazards map[string]int          `json:"hazards"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, 2, body.Total)
	assert.Equal(t, 1, body.High)
	assert.Equal(t, 0, body.Medium)
	assert.Equal(t, 1, body.Early)
	assert.Equal(t, "high", body.Regions["Valparaíso"].Status)
	assert.Equal(t, "early-warning", body.Regions["Maule"].Status)
	assert.Equal(t, "none", body.Regions["Atacama"].Status)
	assert.Equal(t, 1, body.Hazards["Forest Fire"])
	assert.Equal(t, 1, body.Hazards["Extreme Heat"])
}
