package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashPayload returns the hex SHA-256 of a payload, used to correlate queue
// message bodies across log lines without echoing their content.
func HashPayload(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashScopeKey returns a filesystem-safe identifier for a storage scope.
func HashScopeKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
