package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

var ErrMagicLinkExpired = errors.New("magic link expired or already used")

// NewMagicToken generates a single-use magic-link token. The raw value is
// embedded in the emailed link; only its SHA-256 hash is stored, so a
// database leak does not expose usable links.
func NewMagicToken() (raw, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate magic token: %w", err)
	}
	raw = hex.EncodeToString(buf)
	return raw, HashMagicToken(raw), nil
}

// HashMagicToken returns the hex SHA-256 digest used as the stored lookup key.
func HashMagicToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
