package domain

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"10.00", 1000},
		{"10.5", 1050},
		{"10", 1000},
		{"0", 0},
		{"0.01", 1},
		{".5", 50},
		{" 3.20 ", 320},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseAmount(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseAmountRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "  ", "-1.00", "abc", "1.234", "1.2.3", "1,00", "10.-5", "10.+5", "+1.00", "1. 5", "0x10"} {
		if _, err := ParseAmount(in); !errors.Is(err, ErrBadAmount) {
			t.Fatalf("ParseAmount(%q): got %v, want ErrBadAmount", in, err)
		}
	}
}

func TestFormatCents(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{1000, "10.00"},
		{1050, "10.50"},
		{1, "0.01"},
		{0, "0.00"},
		{-250, "-2.50"},
	}
	for _, tc := range cases {
		if got := FormatCents(tc.in); got != tc.want {
			t.Fatalf("FormatCents(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, cents := range []int64{0, 1, 99, 100, 123456} {
		parsed, err := ParseAmount(FormatCents(cents))
		if err != nil {
			t.Fatalf("round trip %d: %v", cents, err)
		}
		if parsed != cents {
			t.Fatalf("round trip %d: got %d", cents, parsed)
		}
	}
}
