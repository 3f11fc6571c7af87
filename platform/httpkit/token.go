package httpkit

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

const tokenPrefix = "wht_"

// GenerateToken creates a random company token and returns the plaintext and
// its hash. Only the hash is stored.
func GenerateToken() (plaintext string, hash string, err error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	plaintext = tokenPrefix + hex.EncodeToString(raw)
	return plaintext, HashToken(plaintext), nil
}

// HashToken hashes a plaintext token for storage and lookup.
func HashToken(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}

// TokenMatches compares a presented token against a stored hash in constant time.
func TokenMatches(plaintext, storedHash string) bool {
	if plaintext == "" || storedHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashToken(plaintext)), []byte(storedHash)) == 1
}
