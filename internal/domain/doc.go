// Package domain models SENAPRED emergency alert data.
//
// # Data Source
//
// Alerts originate from the SENAPRED alert listing at
// https://senapred.cl/alertas/. Each alert has a detail page whose body is
// semi-structured Spanish prose; the fetch adapter flattens that page to
// whitespace-normalized text, and this package turns the text into a typed
// Alert record. The upstream pages omit and reorder information freely, so
// extraction is tuned for yield over precision.
//
// # Extraction Conventions
//
// Category markers (first match wins, case-insensitive):
//
//	"alerta roja"      → high
//	"alerta amarilla"  → medium
//	"temprana", "preventiva" → early-warning
//
// A page with no category marker is not an alert page and is discarded;
// this is the only fatal extraction condition. Every other field falls
// back to an explicit sentinel ("Unspecified", "Unclassified Emergency",
// "--:--") rather than an ambiguous empty string.
//
// Region detection matches the closed set of sixteen Chilean regions in
// table order, then falls back to the phrase "región de/del/de la <name>"
// captured up to a stop token. Hazard classification is an ordered
// keyword table ("incendio" → "Forest Fire", "calor" → "Extreme Heat",
// ...); table order is the tie-break when a page mentions several
// hazards.
//
// Declaration time resolution, three strategies in order:
//
//  1. Timestamp embedded in the locator: ...-2026-08-14-18-30-... (date
//     and hour), or the date-only form (hour unknown).
//  2. Localized long date in the page text: "14 de agosto de 2026".
//  3. The observation instant, hour unknown.
//
// # Identity and Fingerprint
//
// Alert IDs are deterministic SHA-256 hashes of the lowercased, trimmed
// locator, truncated to 64 bits. Identity never depends on page content,
// so repeated observations of one URL always converge on one record. The
// content fingerprint is a separate bounded-prefix digest used solely to
// decide whether an existing record changed. See [AlertID] and
// [Fingerprint].
package domain
