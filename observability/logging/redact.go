package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces secrets in log output.
const RedactedValue = "[REDACTED]"

// Keys that carry public ledger data and are never masked.
var redactionAllowlist = map[string]struct{}{
	"service":          {},
	"env":              {},
	"message":          {},
	"error":            {},
	"action":           {},
	"outcome":          {},
	"sender":           {},
	"admin":            {},
	"borrower":         {},
	"funds_denom":      {},
	"collateral_denom": {},
	"jwt_issuer":       {},
}

// IsAllowlisted reports whether key may be logged verbatim.
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField returns an attribute for key that hides value unless the key is
// allowlisted. Empty values pass through so operators can spot unset secrets.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
