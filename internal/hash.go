package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken returns the SHA-256 of a token string, hex encoded. Stored
// mirrors and Redis lookups work on this form so raw token material never
// sits at rest.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
