package refno

import (
	"strings"
	"testing"
	"time"
)

func TestBillFormat(t *testing.T) {
	at := time.Date(2026, 8, 31, 10, 30, 0, 0, time.UTC)
	number := Bill(at)

	if !strings.HasPrefix(number, "INV-20260831-") {
		t.Fatalf("unexpected bill number: %q", number)
	}
	parts := strings.Split(number, "-")
	if len(parts) != 3 || len(parts[2]) != 6 {
		t.Fatalf("unexpected suffix in %q", number)
	}
}

func TestBillNumbersVary(t *testing.T) {
	at := time.Now().UTC()
	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		seen[Bill(at)] = true
	}
	if len(seen) < 2 {
		t.Fatal("bill numbers did not vary across calls")
	}
}
