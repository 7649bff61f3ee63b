package internal

import (
	"strconv"
	"strings"
	"time"
)

// expiryUnits maps the accepted suffixes to their length in seconds.
var expiryUnits = map[byte]int64{
	's': 1,
	'm': 60,
	'h': 3600,
	'd': 86400,
}

// ParseExpiry normalizes a configured lifetime string to a duration.
//
// Accepted forms: "<n><unit>" with unit one of s, m, h, d ("7d", "24h",
// "90m", "30s"), or a bare integer meaning seconds ("604800"). Anything
// else, including zero and negative values, yields the fallback: a broken
// expiry string must degrade to a safe default, never break token issuance.
func ParseExpiry(raw string, fallback time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	unit := int64(1)
	digits := raw
	if last := raw[len(raw)-1]; last < '0' || last > '9' {
		u, ok := expiryUnits[last]
		if !ok {
			return fallback
		}
		unit = u
		digits = raw[:len(raw)-1]
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	if n > (1<<62)/unit/int64(time.Second) {
		return fallback
	}

	return time.Duration(n*unit) * time.Second
}

// ExpirySeconds is ParseExpiry flattened to the whole seconds callers put in
// expires_in fields.
func ExpirySeconds(raw string, fallback time.Duration) int64 {
	return int64(ParseExpiry(raw, fallback) / time.Second)
}
