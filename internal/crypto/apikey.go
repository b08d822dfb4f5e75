// Package crypto implements bot API key generation and hashing.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// APIKeyPrefix marks every key issued by this server.
const APIKeyPrefix = "clx_"

// apiKeyRandomBytes is the random payload size (32 hex chars).
const apiKeyRandomBytes = 16

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// GenerateAPIKey returns a new plaintext key and the hash to persist.
// The plaintext is shown to the caller once and never stored.
func GenerateAPIKey() (key, hash string, err error) {
	b, err := RandBytes(apiKeyRandomBytes)
	if err != nil {
		return "", "", err
	}
	key = APIKeyPrefix + hex.EncodeToString(b)
	return key, HashAPIKey(key), nil
}

// HashAPIKey returns the lowercase hex SHA-256 of the full key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// HasAPIKeyPrefix reports whether key could have been issued by this server.
func HasAPIKeyPrefix(key string) bool {
	return strings.HasPrefix(key, APIKeyPrefix)
}
