package domain

import (
	"fmt"
	"strings"
)

// Suffixes that alert senders and older exchange API revisions append to
// perpetual contract symbols. Stripped during normalization.
var instrumentSuffixes = []string{"_UMCBL", "_SUMCBL", "_DMCBL", "_SDMCBL", ".P", "PERP"}

// NormalizeInstrument converts a raw symbol (e.g. "BINANCE:BTCUSDT.P",
// "btc/usdt", "BTCUSDT_UMCBL") into the canonical instrument code used as
// both the ledger key and the exchange request symbol (e.g. "BTCUSDT").
func NormalizeInstrument(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))

	// Venue prefix, e.g. "BINANCE:".
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}

	for _, suffix := range instrumentSuffixes {
		s = strings.TrimSuffix(s, suffix)
	}

	// Drop separators like "/", "-", "_".
	var b strings.Builder
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	s = b.String()

	if s == "" {
		return "", fmt.Errorf("unrecognizable instrument %q", raw)
	}
	return s, nil
}
