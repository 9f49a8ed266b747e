package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrNoCategory is the single fatal extraction failure: a page with no
// recognizable alert category marker yields no Alert at all. Every other
// field degrades to its sentinel instead.
var ErrNoCategory = errors.New("no alert category marker in page text")

// fingerprintPrefix bounds how much of the page text participates in the
// content fingerprint. Changes beyond this prefix are invisible to
// change detection; see DESIGN.md for the trade-off.
const fingerprintPrefix = 500

const (
	maxCommunesLen = 50
	maxCauseLen    = 80
	maxExcerptLen  = 160
)

// categoryRules maps category markers to severity classes. Evaluated in
// order against the lowercased page text; first match wins.
var categoryRules = []struct {
	marker   string
	category Category
}{
	{"alerta roja", CategoryHigh},
	{"alerta amarilla", CategoryMedium},
	{"temprana", CategoryEarly},
	{"preventiva", CategoryEarly},
}

// hazardRules maps cause keywords to canonical hazard labels. Order is
// the tie-break when several keywords appear: earlier entries win.
var hazardRules = []struct {
	keyword, label string
}{
	{"incendio", "Forest Fire"},
	{"calor", "Extreme Heat"},
	{"temperatura", "High Temperatures"},
	{"sismo", "Earthquake"},
	{"tsunami", "Tsunami"},
	{"temporal", "Storm"},
	{"tormenta", "Thunderstorm"},
	{"eléctrica", "Thunderstorm"},
	{"electrica", "Thunderstorm"},
	{"volcán", "Volcanic Activity"},
	{"volcan", "Volcanic Activity"},
	{"aluvión", "Debris Flow"},
	{"aluvion", "Debris Flow"},
	{"inundación", "Flood"},
	{"inundacion", "Flood"},
	{"marejada", "Storm Surge"},
	{"evento masivo", "Mass Gathering"},
	{"material peligroso", "Hazardous Material"},
}

// zoneRules is the fixed vocabulary of geographic zone keywords, matched
// as whole words so "precordillera" does not also count as "cordillera".
// All matches are collected, not just the first.
var zoneRules = []struct {
	re    *regexp.Regexp
	label string
}{
	{regexp.MustCompile(`\bcordillera\b`), "Cordillera"},
	{regexp.MustCompile(`\bprecordillera\b`), "Precordillera"},
	{regexp.MustCompile(`\bvalle\b`), "Valle"},
	{regexp.MustCompile(`\bcosta\b`), "Costa"},
	{regexp.MustCompile(`\blitoral\b`), "Litoral"},
	{regexp.MustCompile(`\bsecano\b`), "Secano"},
}

var (
	// locatorDateTimeRe matches the publication timestamp SENAPRED embeds
	// in detail URLs, e.g. ".../alerta-roja-2026-08-14-18-30-valparaiso".
	locatorDateTimeRe = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})-(\d{2})-(\d{2})`)
	// locatorDateRe matches date-only locators (no time-of-day portion).
	locatorDateRe = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)

	// textDateRe matches the localized long form "14 de agosto de 2026".
	textDateRe = regexp.MustCompile(`(?i)(\d{1,2})\s+de\s+(enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|octubre|noviembre|diciembre)\s+(?:de\s+|del\s+)?(\d{4})`)

	eventStartRe = regexp.MustCompile(`(?i)desde\s+el\s+(\d{1,2}\s+de\s+\p{L}+\s+(?:de\s+|del\s+)?\d{4})`)
	eventEndRe   = regexp.MustCompile(`(?i)hasta\s+el\s+(\d{1,2}\s+de\s+\p{L}+\s+(?:de\s+|del\s+)?\d{4})`)

	// regionPhraseRe is the fallback when no known region name appears:
	// "región de/del/de la <words>" up to a stop token.
	regionPhraseRe = regexp.MustCompile(`(?i)regi[oó]n\s+(?:de\s+la\s+|del\s+|de\s+)([\p{L}' ]+?)(?:\s+por\b|\s+debido\b|[.,;:]|$)`)

	provinceRe = regexp.MustCompile(`(?i)provincia\s+de\s+([\p{L}' ]+?)(?:\s+por\b|\s+debido\b|[.,;:]|$)`)
	communesRe = regexp.MustCompile(`(?i)comunas?\s+de\s+([\p{L} ,]+?)(?:\s+por\b|\s+debido\b|,\s+por\b|\.)`)

	causeDetailRe = regexp.MustCompile(`(?i)\b(?:por|debido\s+a)\s+([\p{L}\d ]+?)(?:[.,;:]|$)`)

	areaRe = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:hect|ha\b)`)
)

// resourceRules are independent numeric scans for deployed resources.
// Each is optional; matches are joined into one display string.
var resourceRules = []struct {
	re   *regexp.Regexp
	noun string
}{
	{regexp.MustCompile(`(?i)(\d+)\s*brigada`), "brigadas"},
	{regexp.MustCompile(`(?i)(\d+)\s*helic`), "helicópteros"},
	{regexp.MustCompile(`(?i)(\d+)\s*avion`), "aviones"},
}

var spanishMonths = map[string]time.Month{
	"enero": time.January, "febrero": time.February, "marzo": time.March,
	"abril": time.April, "mayo": time.May, "junio": time.June,
	"julio": time.July, "agosto": time.August, "septiembre": time.September,
	"octubre": time.October, "noviembre": time.November, "diciembre": time.December,
}

// ParseAlertPage extracts a normalized Alert from the flattened text of
// one alert detail page. It is a pure function of its inputs: text is
// the already-fetched, whitespace-flattened page body, locator the URL
// it came from, observedAt the instant of observation.
//
// Category detection is the only hard requirement — a page with no
// category marker returns ErrNoCategory and is discarded. Every other
// field resolves to an explicit sentinel when the page does not yield
// it, which trades precision for yield on noisy source pages.
func ParseAlertPage(text, locator string, observedAt time.Time) (Alert, error) {
	lower := strings.ToLower(text)

	category, ok := detectCategory(lower)
	if !ok {
		return Alert{}, fmt.Errorf("parse alert page %s: %w", locator, ErrNoCategory)
	}

	declared, hourKnown := detectDeclared(lower, locator, observedAt)

	alert := Alert{
		ID:          AlertID(locator),
		URL:         locator,
		Category:    category,
		Region:      detectRegion(text, lower),
		Province:    detectProvince(text),
		Communes:    detectCommunes(text),
		Zones:       detectZones(lower),
		Hazard:      detectHazard(lower),
		CauseDetail: detectCauseDetail(text),
		Excerpt:     truncate(strings.TrimSpace(text), maxExcerptLen),
		Declared:    declared,
		HourKnown:   hourKnown,
		EventStart:  detectEventDate(lower, eventStartRe),
		EventEnd:    detectEventDate(lower, eventEndRe),
		AgeDays:     ageDays(declared, observedAt),
		Area:        detectArea(lower),
		Resources:   detectResources(lower),
		Fingerprint: Fingerprint(text),
		Status:      StatusActive,
		ObservedAt:  observedAt,
	}
	return alert, nil
}

// Fingerprint digests the first fingerprintPrefix runes of the page
// text. Bounded so that fingerprinting stays cheap and sensitive to the
// header area of the page, where SENAPRED edits land.
func Fingerprint(text string) string {
	runes := []rune(text)
	if len(runes) > fingerprintPrefix {
		runes = runes[:fingerprintPrefix]
	}
	hash := sha256.Sum256([]byte(string(runes)))
	return hex.EncodeToString(hash[:8])
}

// LocatorDate extracts the declaration date embedded in a locator, if
// any. Callers use it to skip stale locators before fetching the page.
func LocatorDate(locator string) (time.Time, bool) {
	m := locatorDateRe.FindStringSubmatch(locator)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", m[1]+"-"+m[2]+"-"+m[3])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func detectCategory(lower string) (Category, bool) {
	for _, rule := range categoryRules {
		if strings.Contains(lower, rule.marker) {
			return rule.category, true
		}
	}
	return "", false
}

func detectRegion(text, lower string) string {
	for _, region := range Regions {
		if strings.Contains(lower, strings.ToLower(region)) {
			return region
		}
	}
	if m := regionPhraseRe.FindStringSubmatch(text); m != nil {
		return titleCase(strings.TrimSpace(m[1]))
	}
	return UnspecifiedRegion
}

func detectProvince(text string) string {
	if m := provinceRe.FindStringSubmatch(text); m != nil {
		return titleCase(strings.TrimSpace(m[1]))
	}
	return UnspecifiedProvince
}

func detectCommunes(text string) string {
	m := communesRe.FindStringSubmatch(text)
	if m == nil {
		return UnspecifiedCommunes
	}
	return truncate(titleCase(strings.TrimSpace(m[1])), maxCommunesLen)
}

func detectZones(lower string) string {
	var zones []string
	for _, rule := range zoneRules {
		if rule.re.MatchString(lower) {
			zones = append(zones, rule.label)
		}
	}
	return strings.Join(zones, ", ")
}

func detectHazard(lower string) string {
	for _, rule := range hazardRules {
		if strings.Contains(lower, rule.keyword) {
			return rule.label
		}
	}
	return UnclassifiedHazard
}

func detectCauseDetail(text string) string {
	if m := causeDetailRe.FindStringSubmatch(text); m != nil {
		return truncate(strings.TrimSpace(m[1]), maxCauseLen)
	}
	return ""
}

// detectDeclared resolves the declaration instant using three strategies
// in order: a timestamp embedded in the locator, a localized date phrase
// in the page text, and finally the observation instant itself with the
// hour marked unknown.
func detectDeclared(lower, locator string, observedAt time.Time) (time.Time, bool) {
	if m := locatorDateTimeRe.FindStringSubmatch(locator); m != nil {
		t, err := time.Parse("2006-01-02 15-04", fmt.Sprintf("%s-%s-%s %s-%s", m[1], m[2], m[3], m[4], m[5]))
		if err == nil {
			return t, true
		}
	}
	if t, ok := LocatorDate(locator); ok {
		return t, false
	}
	if t, ok := parseSpanishDate(lower); ok {
		return t, false
	}
	return time.Date(observedAt.Year(), observedAt.Month(), observedAt.Day(), 0, 0, 0, 0, observedAt.Location()), false
}

func detectEventDate(lower string, re *regexp.Regexp) time.Time {
	m := re.FindStringSubmatch(lower)
	if m == nil {
		return time.Time{}
	}
	t, ok := parseSpanishDate(m[1])
	if !ok {
		return time.Time{}
	}
	return t
}

func parseSpanishDate(s string) (time.Time, bool) {
	m := textDateRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	month, ok := spanishMonths[strings.ToLower(m[2])]
	if !ok {
		return time.Time{}, false
	}
	day := atoiSafe(m[1])
	year := atoiSafe(m[3])
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
}

func detectArea(lower string) string {
	if m := areaRe.FindStringSubmatch(lower); m != nil {
		return m[1] + " ha"
	}
	return ""
}

func detectResources(lower string) string {
	var parts []string
	for _, rule := range resourceRules {
		if m := rule.re.FindStringSubmatch(lower); m != nil {
			parts = append(parts, m[1]+" "+rule.noun)
		}
	}
	return strings.Join(parts, ", ")
}

// ageDays is the whole number of days between declaration and
// observation, clamped to zero. Filtering on it is engine policy, not
// an extraction concern.
func ageDays(declared, observedAt time.Time) int {
	days := int(observedAt.Sub(declared).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func titleCase(s string) string {
	return cases.Title(language.Spanish).String(strings.ToLower(s))
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return strings.TrimSpace(string(runes[:maxLen]))
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
