package clip

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// Fingerprint returns a stable content identity: the SHA-256 hex digest of
// the NFC-normalized text. Content that differs only in Unicode composition
// maps to the same fingerprint, which is what capture-side duplicate
// suppression wants.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(norm.NFC.String(content)))
	return hex.EncodeToString(sum[:])
}
