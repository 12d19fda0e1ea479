package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Amounts cross the API as decimal strings ("10.00") and are stored as cents.

var ErrBadAmount = errors.New("invalid amount")

// ParseAmount converts a decimal string like "10.00", "10.5" or "10" into
// cents. At most two fraction digits are accepted; negative amounts are
// rejected.
func ParseAmount(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, ErrBadAmount
	}
	if strings.HasPrefix(s, "-") {
		return 0, ErrBadAmount
	}

	whole := s
	frac := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		whole = s[:idx]
		frac = s[idx+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, ErrBadAmount
	}
	// Both parts must be plain digits; ParseInt alone would let signs or
	// spaces inside the fraction through.
	if !isDigits(whole) || !isDigits(frac) {
		return 0, ErrBadAmount
	}
	for len(frac) < 2 {
		frac += "0"
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrBadAmount
	}
	f := int64(0)
	if frac != "00" {
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, ErrBadAmount
		}
	}
	if w > (1<<62)/100 {
		return 0, ErrBadAmount
	}
	return w*100 + f, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatCents renders cents as a two-decimal string ("1050" -> "10.50").
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
