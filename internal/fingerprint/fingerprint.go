// Package fingerprint computes the order-independent content hash used to
// key the idempotency cache and to detect payload tampering between a
// coordinator dispatch and a worker's processing of it.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"surveillance/internal/model"
)

// Compute returns the 64-character lowercase hex SHA-256 digest over the
// order-independent canonical serialization of events.
//
// Each event is reduced to a tuple string of
// (timestamp, account_id, product_id, side, price, quantity, event_type);
// price is serialized via decimal.Decimal.String(), which drops trailing
// fractional zeros, so "100.50" and "100.5" fingerprint identically: the
// decimal value is hashed, not the textual form it was parsed from. The
// tuple strings are sorted before hashing so permutations of the same
// event set produce the same fingerprint.
func Compute(events []model.TransactionEvent) string {
	signatures := make([]string, len(events))
	for i, e := range events {
		signatures[i] = signature(e)
	}
	sort.Strings(signatures)

	h := sha256.New()
	for _, sig := range signatures {
		h.Write([]byte(sig))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

const fieldSep = "\x1f" // ASCII unit separator, unlikely to collide with field content

func signature(e model.TransactionEvent) string {
	var b strings.Builder
	b.WriteString(e.Timestamp.UTC().Format(time.RFC3339Nano))
	b.WriteString(fieldSep)
	b.WriteString(e.AccountID)
	b.WriteString(fieldSep)
	b.WriteString(e.ProductID)
	b.WriteString(fieldSep)
	b.WriteString(string(e.Side))
	b.WriteString(fieldSep)
	b.WriteString(e.Price.String())
	b.WriteString(fieldSep)
	b.WriteString(strconv.FormatInt(e.Quantity, 10))
	b.WriteString(fieldSep)
	b.WriteString(string(e.EventType))
	return b.String()
}
