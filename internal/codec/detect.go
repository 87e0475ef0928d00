// Package codec implements the byte<->batch translation layer: CSV, JSONL,
// line-oriented text, and a pretty-table encoder, plus shared type
// autodetection for decoder input (spec §4.7).
package codec

import (
	"strconv"
	"strings"

	"github.com/doomsbay/flowkit/internal/batch"
)

// naturalType classifies a raw decoded cell string per spec §4.7's
// autodetection rules. An empty string has no natural type (it is always
// null) and is reported as TypeUnknown so it never participates in
// widening.
func naturalType(s string) batch.Type {
	if s == "" {
		return batch.TypeUnknown
	}
	if isISODate(s) {
		return batch.TypeDate
	}
	if isISOTimestamp(s) {
		return batch.TypeTimestamp
	}
	if isInt(s) {
		return batch.TypeInt64
	}
	if isFloat(s) {
		return batch.TypeFloat64
	}
	if isBool(s) {
		return batch.TypeBool
	}
	return batch.TypeString
}

// widen combines the current best type for a column with the natural type
// of one more observed cell, per spec §4.7's widening rule: STRING wins
// over everything, FLOAT64 wins over INT64, TIMESTAMP wins over DATE;
// anything else incompatible (e.g. a DATE column meeting a BOOL cell)
// widens all the way to STRING, since STRING is the only type every raw
// cell string always fits.
func widen(cur, next batch.Type) batch.Type {
	if next == batch.TypeUnknown {
		return cur
	}
	if cur == batch.TypeUnknown {
		return next
	}
	if cur == next {
		return cur
	}
	if cur == batch.TypeString || next == batch.TypeString {
		return batch.TypeString
	}
	if (cur == batch.TypeDate && next == batch.TypeTimestamp) || (cur == batch.TypeTimestamp && next == batch.TypeDate) {
		return batch.TypeTimestamp
	}
	if (cur == batch.TypeInt64 && next == batch.TypeFloat64) || (cur == batch.TypeFloat64 && next == batch.TypeInt64) {
		return batch.TypeFloat64
	}
	return batch.TypeString
}

func isInt(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[0] == '-' || s[0] == '+' {
		i = 1
	}
	if i == len(s) {
		return false
	}
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func isFloat(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	// Reject forms ParseFloat accepts but CSV autodetection shouldn't
	// (hex floats, inf/nan) — those are rare in tabular data and read
	// better as STRING.
	lower := strings.ToLower(s)
	if strings.Contains(lower, "inf") || strings.Contains(lower, "nan") || strings.Contains(lower, "0x") {
		return false
	}
	return true
}

func isBool(s string) bool {
	lower := strings.ToLower(s)
	return lower == "true" || lower == "false"
}

func parseBool(s string) bool {
	return strings.ToLower(s) == "true"
}

// isISODate matches the strict YYYY-MM-DD form.
func isISODate(s string) bool {
	if len(s) != 10 {
		return false
	}
	return s[4] == '-' && s[7] == '-' &&
		allDigits(s[0:4]) && allDigits(s[5:7]) && allDigits(s[8:10])
}

// isISOTimestamp matches YYYY-MM-DDTHH:MM:SS[Z].
func isISOTimestamp(s string) bool {
	if len(s) == 20 && s[19] == 'Z' {
		s = s[:19]
	}
	if len(s) != 19 {
		return false
	}
	return s[4] == '-' && s[7] == '-' && s[10] == 'T' && s[13] == ':' && s[16] == ':' &&
		allDigits(s[0:4]) && allDigits(s[5:7]) && allDigits(s[8:10]) &&
		allDigits(s[11:13]) && allDigits(s[14:16]) && allDigits(s[17:19])
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
