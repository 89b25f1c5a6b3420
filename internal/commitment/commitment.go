// Package commitment implements the hash commitments used by the giveaway
// protocol. A commitment is the lowercase hex SHA-256 digest of a secret.
package commitment

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DigestLen is the length of a hex encoded commitment.
const DigestLen = sha256.Size * 2

// secretBytes is the amount of randomness drawn for a generated secret.
const secretBytes = 32

// Commit returns the commitment for secret.
func Commit(secret string) string {
	return Digest([]byte(secret))
}

// Digest hashes b and renders the result as lowercase hex.
func Digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Verify reports whether secret opens the commitment hash.
func Verify(hash, secret string) bool {
	return Commit(secret) == hash
}

// IsDigest reports whether s has the shape of a commitment: DigestLen
// lowercase hex characters.
func IsDigest(s string) bool {
	if len(s) != DigestLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// NewSecret generates a random secret using crypto/rand.
func NewSecret() (string, error) {
	var b [secretBytes]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("read random secret: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
