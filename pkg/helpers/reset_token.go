package helpers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// Password reset token helpers

// GenerateResetToken returns a random token for the user and the digest to persist.
func GenerateResetToken() (plain string, hashed string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	plain = hex.EncodeToString(b)
	return plain, HashResetToken(plain), nil
}

// HashResetToken is the sha256 hex digest of a plaintext reset token.
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
