package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// TokenDigest returns the hex SHA-256 of a session token. Session stores
// are keyed by digest; raw tokens are never written.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
