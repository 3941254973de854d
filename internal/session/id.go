package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// GenerateID returns a cryptographically random session identifier.
// 32 bytes = 256 bits of entropy, base64url without padding.
func GenerateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashID returns the hex SHA-256 of a session id. Relational stores key
// rows by this hash so a database dump never exposes live tokens.
func HashID(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}
