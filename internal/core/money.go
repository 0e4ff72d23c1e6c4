// Package core provides amount parsing and integer rounding utilities.
//
// Amounts are whole currency units (won). There are no fractional subunits,
// so every computation stays in int64.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseAmount converts user input such as "12,000", "12 000" or "12000원"
// into whole currency units.
//
// Grouping separators (comma, underscore, space) and a trailing currency
// suffix are ignored. Signs, decimal points and any other characters are
// rejected, as is an empty value. Zero is accepted: a zero-income entry is a valid record.
//
// Examples:
//
//	ParseAmount("12,000")  -> 12000, nil
//	ParseAmount("8500원")  -> 8500, nil
//	ParseAmount("-1")      -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "원")
	s = strings.TrimSuffix(s, "KRW")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r) && r < unicode.MaxASCII:
			b.WriteRune(r)
		case r == ',' || r == '_' || r == ' ':
			// grouping separator
		default:
			return 0, ErrInvalidAmount
		}
	}
	if b.Len() == 0 {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// ParseDeliveryCount parses an optional delivery count. An empty value
// yields 0, which RecordInput treats as the default of 1.
func ParseDeliveryCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, ErrInvalidDeliveryCount
	}
	return n, nil
}

// DivRound divides a by b rounding half away from zero. It returns 0 when b
// is 0.
func DivRound(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	neg := (a < 0) != (b < 0)
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	q := a / b
	if (a%b)*2 >= b {
		q++
	}
	if neg {
		return -q
	}
	return q
}
