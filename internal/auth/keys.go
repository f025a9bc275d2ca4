// Package auth contains API key hashing for host accounts.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashKey returns a SHA-256 hash of the key. Only this hash is ever
// persisted; lookups hash the presented key and compare.
func HashKey(key string) string {
	key = strings.TrimSpace(key)

	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
