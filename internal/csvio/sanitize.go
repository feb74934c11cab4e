package csvio

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// dangerousPrefixChars are the characters that, when present anywhere in a
// CSV cell, can make a spreadsheet application (Excel, Sheets) interpret the
// cell as a formula or a control sequence rather than literal text.
const dangerousPrefixChars = "=+-@\t\r"

// SanitizeForCSV prefixes value with a single quote if it contains any
// formula-injection trigger character, so opening the output in a
// spreadsheet never executes attacker-controlled content.
func SanitizeForCSV(value string) string {
	if value == "" {
		return value
	}
	if strings.ContainsAny(value, dangerousPrefixChars) {
		return "'" + value
	}
	return value
}

// PseudonymizeAccountID returns the hex-encoded SHA-256 digest of
// "salt:accountID", letting operators emit logs that don't carry
// account identifiers in the clear while staying stable across a single
// salt's lifetime. salt must be non-empty.
func PseudonymizeAccountID(accountID, salt string) (string, error) {
	if strings.TrimSpace(salt) == "" {
		return "", fmt.Errorf("csvio: salt is required for pseudonymization and cannot be empty")
	}
	h := sha256.Sum256([]byte(salt + ":" + accountID))
	return hex.EncodeToString(h[:]), nil
}
