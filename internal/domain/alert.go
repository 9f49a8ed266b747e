package domain

import (
	"fmt"
	"strings"
	"time"
)

// Category is the severity class of an alert, in decreasing order of urgency.
type Category string

const (
	// CategoryHigh corresponds to "Alerta Roja".
	CategoryHigh Category = "high"
	// CategoryMedium corresponds to "Alerta Amarilla".
	CategoryMedium Category = "medium"
	// CategoryEarly corresponds to "Alerta Temprana Preventiva".
	CategoryEarly Category = "early-warning"
)

// Rank orders categories by urgency: 0 is the most urgent. Unknown
// categories sort last.
func (c Category) Rank() int {
	switch c {
	case CategoryHigh:
		return 0
	case CategoryMedium:
		return 1
	case CategoryEarly:
		return 2
	default:
		return 3
	}
}

// Status is the monitor-side lifecycle state of an alert. An alert flips
// from active to retracted when its locator disappears from the source
// listing; the record itself is kept for history.
type Status string

const (
	StatusActive    Status = "active"
	StatusRetracted Status = "retracted"
)

// Sentinel values for fields the source page did not yield. Absence is
// always represented explicitly, never as an empty string.
const (
	UnspecifiedRegion   = "Unspecified"
	UnspecifiedProvince = "Unspecified"
	UnspecifiedCommunes = "Unspecified"
	UnclassifiedHazard  = "Unclassified Emergency"
	UnknownHour         = "--:--"
)

// Regions is the closed set of Chilean administrative regions, ordered
// north to south. Region detection matches against this table in order.
var Regions = []string{
	"Arica y Parinacota", "Tarapacá", "Antofagasta", "Atacama", "Coquimbo",
	"Valparaíso", "Metropolitana", "O'Higgins", "Maule", "Ñuble", "Biobío",
	"La Araucanía", "Los Ríos", "Los Lagos", "Aysén", "Magallanes",
}

// Alert is the normalized representation of one SENAPRED alert page.
// A value is immutable once produced by extraction; a later observation
// of the same locator produces a fresh value with the same ID. Only the
// reconciliation engine flips Status.
type Alert struct {
	// ID is derived from the locator alone, never from page content.
	ID  string `json:"id"`
	URL string `json:"url"`

	Category Category `json:"category"`

	Region   string `json:"region"`
	Province string `json:"province"`
	Communes string `json:"communes"`
	Zones    string `json:"zones,omitempty"`

	Hazard      string `json:"hazard"`
	CauseDetail string `json:"cause_detail,omitempty"`
	Excerpt     string `json:"excerpt,omitempty"`

	// Declared carries the declaration date; when HourKnown is false the
	// time-of-day portion is meaningless and renders as UnknownHour.
	Declared   time.Time `json:"declared"`
	HourKnown  bool      `json:"hour_known"`
	EventStart time.Time `json:"event_start,omitempty"`
	EventEnd   time.Time `json:"event_end,omitempty"`
	AgeDays    int       `json:"age_days"`

	// Area and Resources are free-text extras ("120,5 ha", "3 brigadas,
	// 2 helicópteros"); upstream phrasing is too inconsistent to type.
	Area      string `json:"area,omitempty"`
	Resources string `json:"resources,omitempty"`

	// Fingerprint is a digest over a bounded prefix of the page text,
	// used only to detect content change, never for identity.
	Fingerprint string `json:"fingerprint"`

	Status     Status    `json:"status"`
	ObservedAt time.Time `json:"observed_at"`
}

// DeclaredHour renders the time-of-day portion of Declared, or the
// UnknownHour sentinel when no hour was recovered.
func (a Alert) DeclaredHour() string {
	if !a.HourKnown {
		return UnknownHour
	}
	return a.Declared.Format("15:04")
}

// Summary is the human-readable line attached to change events,
// e.g. "HIGH: Valparaíso - Forest Fire".
func (a Alert) Summary() string {
	return fmt.Sprintf("%s: %s - %s", strings.ToUpper(string(a.Category)), a.Region, a.Hazard)
}

// ChangeKind classifies a transition observed between two cycles.
type ChangeKind string

const (
	ChangeCreated   ChangeKind = "created"
	ChangeUpdated   ChangeKind = "updated"
	ChangeRetracted ChangeKind = "retracted"
)

// ChangeEvent records one lifecycle transition for one alert identity.
// Events are append-only; persistence trims the history to a configured
// retention window.
type ChangeEvent struct {
	AlertID string     `json:"alert_id"`
	Kind    ChangeKind `json:"kind"`
	At      time.Time  `json:"at"`
	Summary string     `json:"summary"`
}
