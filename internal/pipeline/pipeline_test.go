package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabianodin23-lab/senapred-monitor/internal/domain"
	"github.com/fabianodin23-lab/senapred-monitor/internal/observability"
	"github.com/fabianodin23-lab/senapred-monitor/internal/pipeline"
	"github.com/fabianodin23-lab/senapred-monitor/internal/reconcile"
	"github.com/fabianodin23-lab/senapred-monitor/internal/store"
)

var testNow = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

const (
	redPage    = "Alerta Roja para la Región de Valparaíso por incendio forestal"
	yellowPage = "Alerta Amarilla para la Región del Maule por tormenta eléctrica"
	noisePage  = "Página sin contenido de interés"
)

// --- mocks ---

type mockFetcher struct {
	locators []string
	listErr  error
	pages    map[string]string
	pageErr  map[string]error
	fetched  []string
}

func (m *mockFetcher) ListLocators(_ context.Context) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.locators, nil
}

func (m *mockFetcher) FetchPage(_ context.Context, locator string) (string, error) {
	m.fetched = append(m.fetched, locator)
	if err := m.pageErr[locator]; err != nil {
		return "", err
	}
	return m.pages[locator], nil
}

type mockSink struct {
	published []domain.ChangeEvent
	err       error
}

func (m *mockSink) PublishBatch(_ context.Context, events []domain.ChangeEvent) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, events...)
	return nil
}

func newTestMonitor(t *testing.T, fetcher *mockFetcher, sink pipeline.EventSink) (*pipeline.Monitor, *store.Store) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(testNow))
	t.Cleanup(func() { domain.SetClock(nil) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.Open(filepath.Join(t.TempDir(), "state.json"), logger)
	engine := reconcile.New(st, reconcile.Policy{MaxAgeDays: 14}, logger)

	m := pipeline.New(fetcher, engine, st, sink, pipeline.NewLogNotifier(logger), logger, observability.NewMetricsForTesting(), pipeline.Options{
		Interval:     time.Minute,
		MaxAgeDays:   14,
		HistoryLimit: 100,
	})
	return m, st
}

func TestRunCycle(t *testing.T) {
	t.Run("extracts, reconciles, and persists", func(t *testing.T) {
		urlA := "https://senapred.cl/alerta/alerta-roja-2026-08-19-10-00-valparaiso"
		urlB := "https://senapred.cl/alerta/alerta-amarilla-2026-08-19-11-00-maule"
		fetcher := &mockFetcher{
			locators: []string{urlA, urlB},
			pages:    map[string]string{urlA: redPage, urlB: yellowPage},
		}
		sink := &mockSink{}
		m, st := newTestMonitor(t, fetcher, sink)

		result, err := m.RunCycle(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 2, result.Listed)
		assert.Equal(t, 2, result.Extracted)
		require.Len(t, result.Events, 2)
		assert.Equal(t, domain.ChangeCreated, result.Events[0].Kind)
		assert.Len(t, sink.published, 2)
		assert.Len(t, st.Active(), 2)
	})

	t.Run("state survives a restart", func(t *testing.T) {
		urlA := "https://senapred.cl/alerta/alerta-roja-2026-08-19-10-00-valparaiso"
		fetcher := &mockFetcher{
			locators: []string{urlA},
			pages:    map[string]string{urlA: redPage},
		}
		domain.SetClock(clockwork.NewFakeClockAt(testNow))
		t.Cleanup(func() { domain.SetClock(nil) })

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		path := filepath.Join(t.TempDir(), "state.json")
		st := store.Open(path, logger)
		engine := reconcile.New(st, reconcile.Policy{MaxAgeDays: 14}, logger)
		m := pipeline.New(fetcher, engine, st, nil, nil, logger, observability.NewMetricsForTesting(), pipeline.Options{
			Interval: time.Minute, MaxAgeDays: 14, HistoryLimit: 100,
		})

		_, err := m.RunCycle(context.Background())
		require.NoError(t, err)

		reloaded := store.Open(path, logger)
		assert.Equal(t, st.Alerts(), reloaded.Alerts())
		assert.Equal(t, st.Changes(), reloaded.Changes())
	})

	t.Run("per-page fetch failure is isolated", func(t *testing.T) {
		urlA := "https://senapred.cl/alerta/alerta-roja-2026-08-19-10-00-valparaiso"
		urlB := "https://senapred.cl/alerta/alerta-amarilla-2026-08-19-11-00-maule"
		fetcher := &mockFetcher{
			locators: []string{urlA, urlB},
			pages:    map[string]string{urlB: yellowPage},
			pageErr:  map[string]error{urlA: errors.New("connection reset")},
		}
		m, st := newTestMonitor(t, fetcher, nil)

		result, err := m.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Extracted)
		assert.Len(t, st.Active(), 1)
	})

	t.Run("page without category marker is discarded", func(t *testing.T) {
		urlA := "https://senapred.cl/alerta/alerta-roja-2026-08-19-10-00-valparaiso"
		urlB := "https://senapred.cl/alerta/nota-2026-08-19-12-00-prensa"
		fetcher := &mockFetcher{
			locators: []string{urlA, urlB},
			pages:    map[string]string{urlA: redPage, urlB: noisePage},
		}
		m, st := newTestMonitor(t, fetcher, nil)

		result, err := m.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Extracted)
		assert.Len(t, st.Active(), 1)
	})

	t.Run("stale locator skipped before fetching", func(t *testing.T) {
		fresh := "https://senapred.cl/alerta/alerta-roja-2026-08-19-10-00-valparaiso"
		stale := "https://senapred.cl/alerta/alerta-roja-2026-07-01-10-00-maule"
		fetcher := &mockFetcher{
			locators: []string{fresh, stale},
			pages:    map[string]string{fresh: redPage},
		}
		m, _ := newTestMonitor(t, fetcher, nil)

		result, err := m.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Extracted)
		assert.Equal(t, []string{fresh}, fetcher.fetched)
	})

	t.Run("duplicate locators keep first occurrence", func(t *testing.T) {
		urlA := "https://senapred.cl/alerta/alerta-roja-2026-08-19-10-00-valparaiso"
		fetcher := &mockFetcher{
			locators: []string{urlA, urlA},
			pages:    map[string]string{urlA: redPage},
		}
		m, _ := newTestMonitor(t, fetcher, nil)

		result, err := m.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Extracted)
		assert.Equal(t, []string{urlA}, fetcher.fetched)
	})

	t.Run("listing failure aborts the cycle", func(t *testing.T) {
		fetcher := &mockFetcher{listErr: errors.New("index unavailable")}
		m, st := newTestMonitor(t, fetcher, nil)

		_, err := m.RunCycle(context.Background())
		require.Error(t, err)
		assert.Equal(t, 0, st.Len())
	})

	t.Run("sink failure does not fail the cycle", func(t *testing.T) {
		urlA := "https://senapred.cl/alerta/alerta-roja-2026-08-19-10-00-valparaiso"
		fetcher := &mockFetcher{
			locators: []string{urlA},
			pages:    map[string]string{urlA: redPage},
		}
		sink := &mockSink{err: errors.New("broker down")}
		m, st := newTestMonitor(t, fetcher, sink)

		_, err := m.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Len(t, st.Active(), 1)
	})

	t.Run("empty listing retracts everything", func(t *testing.T) {
		urlA := "https://senapred.cl/alerta/alerta-roja-2026-08-19-10-00-valparaiso"
		fetcher := &mockFetcher{
			locators: []string{urlA},
			pages:    map[string]string{urlA: redPage},
		}
		m, st := newTestMonitor(t, fetcher, nil)

		_, err := m.RunCycle(context.Background())
		require.NoError(t, err)

		fetcher.locators = nil
		result, err := m.RunCycle(context.Background())
		require.NoError(t, err)
		require.Len(t, result.Events, 1)
		assert.Equal(t, domain.ChangeRetracted, result.Events[0].Kind)
		assert.Empty(t, st.Active())
		assert.Equal(t, 1, st.Len())
	})
}

func TestReadinessAndSnapshot(t *testing.T) {
	urlA := "https://senapred.cl/alerta/alerta-roja-2026-08-19-10-00-valparaiso"
	fetcher := &mockFetcher{
		locators: []string{urlA},
		pages:    map[string]string{urlA: redPage},
	}
	m, _ := newTestMonitor(t, fetcher, nil)

	require.Error(t, m.CheckReadiness(context.Background()))
	assert.Empty(t, m.Snapshot().Alerts)

	_, err := m.RunCycle(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.CheckReadiness(context.Background()))
	snap := m.Snapshot()
	require.Len(t, snap.Alerts, 1)
	assert.Equal(t, "Valparaíso", snap.Alerts[0].Region)
	assert.Len(t, snap.Changes, 1)
	assert.Equal(t, testNow, snap.UpdatedAt)
}

func TestRunStopsOnCancel(t *testing.T) {
	urlA := "https://senapred.cl/alerta/alerta-roja-2026-08-19-10-00-valparaiso"
	fetcher := &mockFetcher{
		locators: []string{urlA},
		pages:    map[string]string{urlA: redPage},
	}
	m, _ := newTestMonitor(t, fetcher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop after context cancellation")
	}
}
