package util

import (
	"fmt"
	"strings"
)

// NanosPerDeSo is the number of nanos in one DESO.
const NanosPerDeSo = 1_000_000_000

// OrDash returns the string if non-empty, otherwise returns "-".
func OrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// FirstOrDash returns the first non-empty string from the provided items.
// If all items are empty, it returns "-".
func FirstOrDash(items ...string) string {
	for _, item := range items {
		if item != "" {
			return item
		}
	}
	return "-"
}

// JoinOrDash joins the provided strings with ", " as separator.
// If no items are provided, it returns "-".
func JoinOrDash(items ...string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

// FormatNanos renders an amount of nanos as DESO, e.g. "1.5 DESO".
func FormatNanos(nanos uint64) string {
	whole := nanos / NanosPerDeSo
	frac := nanos % NanosPerDeSo
	if frac == 0 {
		return fmt.Sprintf("%d DESO", whole)
	}
	digits := strings.TrimRight(fmt.Sprintf("%09d", frac), "0")
	return fmt.Sprintf("%d.%s DESO", whole, digits)
}

// ShortKey abbreviates a long key or hash to its first and last characters.
func ShortKey(s string) string {
	const keep = 8
	if len(s) <= 2*keep+3 {
		return s
	}
	return s[:keep] + "..." + s[len(s)-keep:]
}

// Excerpt returns the first line of s, cut to at most n runes.
func Excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
