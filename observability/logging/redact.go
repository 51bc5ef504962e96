package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue is the placeholder substituted for sensitive log values.
const RedactedValue = "[REDACTED]"

// Wallet addresses, proofs, and bearer tokens never appear in clear text;
// everything else on this list is operational metadata.
var redactionAllowlist = map[string]struct{}{
	"service":     {},
	"env":         {},
	"message":     {},
	"severity":    {},
	"timestamp":   {},
	"error":       {},
	"reason":      {},
	"component":   {},
	"token":       {},
	"asset":       {},
	"roundId":     {},
	"receiptId":   {},
	"amountUsd":   {},
	"feeUsd":      {},
	"payoutAsset": {},
	"status":      {},
	"path":        {},
	"method":      {},
}

// IsAllowlisted reports whether the key may be logged without redaction.
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField returns an attribute that redacts the value unless the key is
// allowlisted. Empty values pass through so logs stay uncluttered.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskWallet truncates a wallet address to its first and last four hex
// characters, enough for correlation without exposing the full address.
func MaskWallet(addr string) string {
	trimmed := strings.TrimSpace(addr)
	if len(trimmed) <= 10 {
		return trimmed
	}
	return trimmed[:6] + ".." + trimmed[len(trimmed)-4:]
}
