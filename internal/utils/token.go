package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateSecureToken returns a hex-encoded token built from n random bytes.
// Share link ids use n=16, which is unguessable and URL-safe.
func GenerateSecureToken(n int) (string, error) {
	token := make([]byte, n)
	if _, err := rand.Read(token); err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}
	return hex.EncodeToString(token), nil
}
