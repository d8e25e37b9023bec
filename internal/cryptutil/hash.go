package cryptutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash returns the SHA-256 hex digest of the UTF-8 bytes of text.
// Per the specification, this is computed over the transcript's `text`
// field or the summary's `summary` sentence — never over the full JSON
// envelope and never over the `actions` list.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
