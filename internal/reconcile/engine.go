// Package reconcile diffs each freshly extracted batch against the
// durable store and emits created/updated/retracted change events.
package reconcile

import (
	"log/slog"

	"github.com/fabianodin23-lab/senapred-monitor/internal/domain"
	"github.com/fabianodin23-lab/senapred-monitor/internal/store"
)

// Policy is the retention and filter configuration applied to a batch
// before reconciliation. Passed in explicitly so the engine is testable
// under varying policies; there is no ambient configuration.
type Policy struct {
	// MaxAgeDays excludes records older than this many days. Zero means
	// no age limit.
	MaxAgeDays int
	// Categories is an allow-list of severity classes. Empty allows all.
	Categories []domain.Category
	// Regions is an allow-list of region names. Empty allows all.
	Regions []string
}

func (p Policy) allows(alert domain.Alert) bool {
	if p.MaxAgeDays > 0 && alert.AgeDays > p.MaxAgeDays {
		return false
	}
	if len(p.Categories) > 0 && !containsCategory(p.Categories, alert.Category) {
		return false
	}
	if len(p.Regions) > 0 && !containsString(p.Regions, alert.Region) {
		return false
	}
	return true
}

// Engine applies batch transitions to the store. It is the only
// component that mutates store contents or alert lifecycle status.
type Engine struct {
	store  *store.Store
	policy Policy
	logger *slog.Logger
}

// New creates an engine bound to a store and a policy.
func New(st *store.Store, policy Policy, logger *slog.Logger) *Engine {
	return &Engine{store: st, policy: policy, logger: logger}
}

// Reconcile computes and applies the transition from the store's current
// state to the freshly observed batch, returning the change events in
// discovery order: batch order for created/updated, then store order for
// retracted. Events are also appended to the store's history. Running
// Reconcile twice with an identical batch emits nothing the second time.
//
// Transitions per identity:
//
//	absent    → active:  emit created, insert.
//	retracted → active:  identity reappeared; emit created, reactivate.
//	active    → active:  emit updated only when the fingerprint differs.
//	active    → retracted: identity gone from the batch; emit retracted,
//	                       flip status, keep the record.
//
// The batch is filtered by the engine policy first, and duplicate
// identities within one batch keep only their first occurrence.
func (e *Engine) Reconcile(batch []domain.Alert) []domain.ChangeEvent {
	now := domain.Now()
	var events []domain.ChangeEvent
	seen := make(map[string]bool, len(batch))

	for _, alert := range batch {
		if !e.policy.allows(alert) {
			continue
		}
		if seen[alert.ID] {
			e.logger.Warn("duplicate identity within batch, keeping first", "alert_id", alert.ID, "url", alert.URL)
			continue
		}
		seen[alert.ID] = true

		prev, known := e.store.Get(alert.ID)
		alert.Status = domain.StatusActive

		switch {
		case !known:
			e.store.Put(alert)
			events = append(events, domain.ChangeEvent{
				AlertID: alert.ID, Kind: domain.ChangeCreated, At: now, Summary: alert.Summary(),
			})
		case prev.Status == domain.StatusRetracted:
			// A retracted identity showing up again is treated as a fresh
			// observation of the same identity: reactivate and announce it.
			e.store.Put(alert)
			events = append(events, domain.ChangeEvent{
				AlertID: alert.ID, Kind: domain.ChangeCreated, At: now, Summary: alert.Summary(),
			})
		case prev.Fingerprint != alert.Fingerprint:
			e.store.Put(alert)
			events = append(events, domain.ChangeEvent{
				AlertID: alert.ID, Kind: domain.ChangeUpdated, At: now, Summary: alert.Summary(),
			})
		}
	}

	for _, alert := range e.store.Alerts() {
		if seen[alert.ID] || alert.Status != domain.StatusActive {
			continue
		}
		alert.Status = domain.StatusRetracted
		e.store.Put(alert)
		events = append(events, domain.ChangeEvent{
			AlertID: alert.ID, Kind: domain.ChangeRetracted, At: now, Summary: alert.Summary(),
		})
	}

	e.store.AppendChanges(events)
	return events
}

func containsCategory(list []domain.Category, c domain.Category) bool {
	for _, v := range list {
		if v == c {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
