package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// AlertID derives the stable identity for a locator: sha256 over the
// lowercased, trimmed URL, truncated to 64 bits of hex. Identity is a
// pure function of the locator — the same URL always maps to the same
// ID across cycles and restarts, which is what makes reconciliation
// idempotent. Page content never participates.
func AlertID(locator string) string {
	norm := strings.ToLower(strings.TrimSpace(locator))
	hash := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(hash[:8])
}
