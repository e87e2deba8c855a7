package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// GenerateSessionToken returns an opaque URL-safe session identifier using
// the specified number of random bytes.
func GenerateSessionToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CallerIdentity derives a stable caller id from the network address and the
// client signature (user agent or equivalent). The hash keeps raw addresses
// out of risk-record keys and log lines.
func CallerIdentity(remoteAddr, clientSignature string) string {
	sum := sha256.Sum256([]byte(remoteAddr + "|" + clientSignature))
	return hex.EncodeToString(sum[:16])
}
