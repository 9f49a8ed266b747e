// Package pipeline orchestrates the poll cycle: list locators, fetch and
// extract each detail page, reconcile the batch against the store, and
// persist. The pipeline never touches the network itself; fetching is
// behind the PageFetcher boundary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fabianodin23-lab/senapred-monitor/internal/domain"
	"github.com/fabianodin23-lab/senapred-monitor/internal/observability"
	"github.com/fabianodin23-lab/senapred-monitor/internal/reconcile"
	"github.com/fabianodin23-lab/senapred-monitor/internal/store"
)

// PageFetcher is the external page-fetching collaborator. ListLocators
// returns the detail-page URLs currently linked from the alert index;
// FetchPage returns one page's whitespace-flattened text.
type PageFetcher interface {
	ListLocators(ctx context.Context) ([]string, error)
	FetchPage(ctx context.Context, locator string) (string, error)
}

// EventSink receives the change events of one cycle, e.g. a Kafka topic
// consumed by downstream dashboards. A nil sink disables publishing.
type EventSink interface {
	PublishBatch(ctx context.Context, events []domain.ChangeEvent) error
}

// Notifier announces individual change events to a human-facing channel.
// A nil notifier disables announcements.
type Notifier interface {
	Notify(ctx context.Context, event domain.ChangeEvent)
}

// Snapshot is the read-only view published after each cycle for the
// HTTP surface. The store itself stays single-writer, single-reader;
// concurrent readers only ever see a completed snapshot.
type Snapshot struct {
	Alerts    []domain.Alert
	Changes   []domain.ChangeEvent
	UpdatedAt time.Time
}

// CycleResult summarizes one completed poll cycle.
type CycleResult struct {
	Listed    int
	Fetched   int
	Extracted int
	Events    []domain.ChangeEvent
}

// Monitor runs poll cycles against a single store. Cycles are strictly
// sequential: one cycle completes (extract, reconcile, persist) before
// the next begins.
type Monitor struct {
	fetcher  PageFetcher
	engine   *reconcile.Engine
	store    *store.Store
	sink     EventSink
	notifier Notifier
	logger   *slog.Logger
	metrics  *observability.Metrics

	interval     time.Duration
	maxAgeDays   int
	historyLimit int

	ready    atomic.Bool
	snapshot atomic.Pointer[Snapshot]
}

// Options carries the cycle policy knobs for a Monitor.
type Options struct {
	Interval     time.Duration
	MaxAgeDays   int
	HistoryLimit int
}

// New creates a Monitor. sink and notifier may be nil.
func New(fetcher PageFetcher, engine *reconcile.Engine, st *store.Store, sink EventSink, notifier Notifier, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Monitor {
	return &Monitor{
		fetcher:      fetcher,
		engine:       engine,
		store:        st,
		sink:         sink,
		notifier:     notifier,
		logger:       logger,
		metrics:      metrics,
		interval:     opts.Interval,
		maxAgeDays:   opts.MaxAgeDays,
		historyLimit: opts.HistoryLimit,
	}
}

// CheckReadiness returns nil once at least one cycle has completed.
func (m *Monitor) CheckReadiness(_ context.Context) error {
	if !m.ready.Load() {
		return errors.New("monitor has not completed a poll cycle yet")
	}
	return nil
}

// Snapshot returns the view published by the most recent completed
// cycle, or an empty snapshot before the first one.
func (m *Monitor) Snapshot() Snapshot {
	if s := m.snapshot.Load(); s != nil {
		return *s
	}
	return Snapshot{}
}

// Run executes poll cycles until the context is cancelled. Failed cycles
// back off exponentially; a successful cycle resets the backoff and the
// loop then waits the configured interval.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started", "interval", m.interval, "max_age_days", m.maxAgeDays)
	m.metrics.MonitorRunning.Set(1)
	defer m.metrics.MonitorRunning.Set(0)

	backoff := fetchBackoffInitial

	for {
		if _, err := m.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				m.logger.Info("monitor stopping", "reason", ctx.Err())
				return nil
			}
			m.logger.Error("cycle failed", "error", err)
			m.metrics.CycleFailures.Inc()
			if !sleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, fetchBackoffMax)
			continue
		}
		backoff = fetchBackoffInitial

		if !sleepWithContext(ctx, m.interval) {
			m.logger.Info("monitor stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// RunCycle performs one full poll-extract-reconcile-persist pass.
// Failures of individual pages are absorbed (logged, skipped); the only
// errors surfaced are a failed locator listing and a failed persist —
// in both cases the store is left exactly as the previous cycle wrote it.
func (m *Monitor) RunCycle(ctx context.Context) (CycleResult, error) {
	start := time.Now()
	logger := m.logger.With("cycle_id", uuid.NewString()[:8])

	locators, err := m.fetcher.ListLocators(ctx)
	if err != nil {
		return CycleResult{}, fmt.Errorf("list alert locators: %w", err)
	}
	logger.Info("cycle started", "locators", len(locators))

	batch := m.extractBatch(ctx, logger, locators)
	if err := ctx.Err(); err != nil {
		// A partial batch must never reach the engine: the missing tail
		// would read as retractions.
		return CycleResult{}, fmt.Errorf("cycle interrupted: %w", err)
	}
	m.metrics.BatchSize.Observe(float64(len(batch)))

	events := m.engine.Reconcile(batch)

	if err := m.store.Save(m.historyLimit); err != nil {
		m.metrics.PersistErrors.Inc()
		return CycleResult{}, fmt.Errorf("persist state: %w", err)
	}

	m.publishSnapshot()
	m.observeCycle(events, start)
	m.deliverEvents(ctx, logger, events)

	m.ready.Store(true)
	logger.Info("cycle complete",
		"extracted", len(batch),
		"events", len(events),
		"active", len(m.store.Active()),
		"duration", time.Since(start),
	)

	return CycleResult{
		Listed:    len(locators),
		Fetched:   len(batch),
		Extracted: len(batch),
		Events:    events,
	}, nil
}

// extractBatch fetches and extracts every listed locator, isolating
// per-page failures so one bad page never aborts the cycle. Locators
// whose embedded date is older than the retention window are skipped
// before fetching, and identities already seen in this listing are
// skipped as duplicates.
func (m *Monitor) extractBatch(ctx context.Context, logger *slog.Logger, locators []string) []domain.Alert {
	batch := make([]domain.Alert, 0, len(locators))
	seen := make(map[string]bool, len(locators))

	for _, locator := range locators {
		if ctx.Err() != nil {
			break
		}

		id := domain.AlertID(locator)
		if seen[id] {
			continue
		}
		seen[id] = true

		observedAt := domain.Now()
		if date, ok := domain.LocatorDate(locator); ok && m.maxAgeDays > 0 {
			if int(observedAt.Sub(date).Hours()/24) > m.maxAgeDays {
				logger.Debug("skipping stale locator", "url", locator)
				continue
			}
		}

		text, err := m.fetcher.FetchPage(ctx, locator)
		if err != nil {
			logger.Warn("fetch failed, skipping page", "url", locator, "error", err)
			m.metrics.FetchErrors.Inc()
			continue
		}
		m.metrics.PagesFetched.Inc()

		alert, err := domain.ParseAlertPage(text, locator, observedAt)
		if err != nil {
			if errors.Is(err, domain.ErrNoCategory) {
				logger.Warn("no category marker, discarding page", "url", locator)
			} else {
				logger.Warn("extraction failed, skipping page", "url", locator, "error", err)
			}
			m.metrics.ExtractionDiscards.Inc()
			continue
		}

		m.metrics.AlertsExtracted.Inc()
		batch = append(batch, alert)
	}
	return batch
}

func (m *Monitor) publishSnapshot() {
	m.snapshot.Store(&Snapshot{
		Alerts:    m.store.Alerts(),
		Changes:   m.store.Changes(),
		UpdatedAt: domain.Now(),
	})
}

func (m *Monitor) observeCycle(events []domain.ChangeEvent, start time.Time) {
	m.metrics.CyclesTotal.Inc()
	m.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	for _, ev := range events {
		m.metrics.ChangeEvents.WithLabelValues(string(ev.Kind)).Inc()
	}
	m.metrics.ActiveAlerts.Set(float64(len(m.store.Active())))
	m.metrics.KnownAlerts.Set(float64(m.store.Len()))
}

// deliverEvents hands this cycle's events to the sink and notifier.
// Delivery failures are logged and absorbed: the state transition has
// already been persisted, and the next cycle must not be blocked by a
// slow or unavailable consumer.
func (m *Monitor) deliverEvents(ctx context.Context, logger *slog.Logger, events []domain.ChangeEvent) {
	if len(events) == 0 {
		return
	}
	if m.sink != nil {
		if err := m.sink.PublishBatch(ctx, events); err != nil {
			logger.Error("publish change events failed", "error", err, "events", len(events))
		}
	}
	if m.notifier != nil {
		for _, ev := range events {
			m.notifier.Notify(ctx, ev)
		}
	}
}

const (
	fetchBackoffInitial = 5 * time.Second
	fetchBackoffMax     = 2 * time.Minute
)

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
