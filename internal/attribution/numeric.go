package attribution

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Graceful numeric parsing. The engine never raises on malformed input:
// un-parseable amounts become 0, un-parseable timestamps are excluded
// from min/max tracking, and every division guards its denominator.

// parseRawAmount converts a raw integer-unit value string into a
// decimal-adjusted amount using big.Float, so 18-decimal token amounts
// survive the conversion without premature float truncation.
func parseRawAmount(raw, decimals string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	value, ok := new(big.Float).SetString(raw)
	if !ok {
		return 0
	}

	dec, err := strconv.Atoi(strings.TrimSpace(decimals))
	if err != nil || dec < 0 || dec > 77 {
		dec = 18
	}

	divisor := new(big.Float).SetFloat64(math.Pow10(dec))
	adjusted, _ := new(big.Float).Quo(value, divisor).Float64()
	if math.IsNaN(adjusted) || math.IsInf(adjusted, 0) || adjusted < 0 {
		return 0
	}
	return adjusted
}

// parseTimestamp parses a unix-seconds string. The second return is false
// when the field is malformed, so callers can exclude the event from
// chronological tracking without dropping its value.
func parseTimestamp(ts string) (time.Time, bool) {
	secs, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}, false
	}
	return time.Unix(secs, 0).UTC(), true
}

// percentOf returns part/total as a percentage, yielding 0 for an empty
// denominator rather than NaN.
func percentOf(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return part / total * 100
}

// shareOf returns part/total as a fraction with the same zero-denominator
// guard as percentOf.
func shareOf(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return part / total
}
