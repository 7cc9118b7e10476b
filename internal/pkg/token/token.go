package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewAccessToken generates a cryptographically random 64-character hex token.
// Used to gate Restricted QR card scans.
func NewAccessToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
