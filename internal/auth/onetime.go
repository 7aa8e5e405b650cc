package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// oneTimeTokenBytes is the entropy of emailed tokens (32 bytes = 64 hex chars).
const oneTimeTokenBytes = 32

// NewOneTimeToken returns a random token to email to the user and the hash
// to persist. Only the hash is stored.
func NewOneTimeToken() (plain, hash string, err error) {
	b := make([]byte, oneTimeTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("auth: generating token: %w", err)
	}
	plain = hex.EncodeToString(b)
	return plain, HashToken(plain), nil
}

// HashToken returns the hex SHA-256 of a one-time token.
func HashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
