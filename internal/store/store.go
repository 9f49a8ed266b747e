// Package store persists the authoritative map of known alerts plus the
// bounded change-event history. One JSON file on disk, written atomically,
// loaded once at startup; all mutation goes through the reconciliation
// engine.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/fabianodin23-lab/senapred-monitor/internal/domain"
)

// stateFile is the on-disk layout: every known alert (active and
// retracted) and the retained change history.
type stateFile struct {
	Alerts  []domain.Alert       `json:"alerts"`
	Changes []domain.ChangeEvent `json:"changes"`
}

// Store is the durable identity → Alert map plus change history.
// It is single-writer by construction: the reconciliation engine owns it
// between load and save, and nothing else touches it directly.
type Store struct {
	path    string
	logger  *slog.Logger
	alerts  map[string]domain.Alert
	changes []domain.ChangeEvent
}

// Open loads the store from path. A missing file yields an empty store;
// a malformed file is logged at warning level and also yields an empty
// store — state corruption must never take the process down.
func Open(path string, logger *slog.Logger) *Store {
	s := &Store{
		path:   path,
		logger: logger,
		alerts: make(map[string]domain.Alert),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s
	}
	if err != nil {
		logger.Warn("state file unreadable, starting empty", "path", path, "error", err)
		return s
	}

	var state stateFile
	if err := json.Unmarshal(data, &state); err != nil {
		logger.Warn("state file malformed, starting empty", "path", path, "error", err)
		return s
	}

	for _, alert := range state.Alerts {
		s.alerts[alert.ID] = alert
	}
	s.changes = state.Changes
	logger.Info("state loaded", "path", path, "alerts", len(s.alerts), "changes", len(s.changes))
	return s
}

// Save persists the full store, trimming the change history to the most
// recent historyLimit entries. The write goes to a temp file in the same
// directory followed by a rename, so a reader never observes a partial
// state file.
func (s *Store) Save(historyLimit int) error {
	if historyLimit > 0 && len(s.changes) > historyLimit {
		s.changes = append([]domain.ChangeEvent(nil), s.changes[len(s.changes)-historyLimit:]...)
	}

	state := stateFile{
		Alerts:  s.Alerts(),
		Changes: s.changes,
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Get returns the last known record for an identity.
func (s *Store) Get(id string) (domain.Alert, bool) {
	alert, ok := s.alerts[id]
	return alert, ok
}

// Put inserts or replaces the record for an identity.
func (s *Store) Put(alert domain.Alert) {
	s.alerts[alert.ID] = alert
}

// Alerts returns every known record, active and retracted, sorted by ID
// so iteration order is stable across runs.
func (s *Store) Alerts() []domain.Alert {
	out := make([]domain.Alert, 0, len(s.alerts))
	for _, alert := range s.alerts {
		out = append(out, alert)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Active returns only the records still marked active, sorted by ID.
func (s *Store) Active() []domain.Alert {
	var out []domain.Alert
	for _, alert := range s.alerts {
		if alert.Status == domain.StatusActive {
			out = append(out, alert)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Changes returns the retained change history, oldest first.
func (s *Store) Changes() []domain.ChangeEvent {
	return append([]domain.ChangeEvent(nil), s.changes...)
}

// AppendChanges records freshly emitted change events.
func (s *Store) AppendChanges(events []domain.ChangeEvent) {
	s.changes = append(s.changes, events...)
}

// Len reports how many identities the store knows, in any status.
func (s *Store) Len() int {
	return len(s.alerts)
}
