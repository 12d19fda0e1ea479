// Package refno generates human-readable reference numbers for bills and
// other printable documents.
package refno

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Bill returns a bill number like INV-20260831-3fa2c1. The random suffix
// keeps numbers unguessable across tenants; uniqueness is enforced by the
// database constraint, not here.
func Bill(at time.Time) string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("INV-%s-%06d", at.UTC().Format("20060102"), at.UnixNano()%1000000)
	}
	return fmt.Sprintf("INV-%s-%s", at.UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(buf)))
}
