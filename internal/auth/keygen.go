package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// APIKeyPrefix marks keys issued by this service.
const APIKeyPrefix = "fx_"

// apiKeyBytes is the entropy of a key before encoding.
const apiKeyBytes = 32

// GenerateAPIKey returns a fresh opaque API key: "fx_" followed by 32 random
// bytes in unpadded base64url.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return APIKeyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// KeyHint returns a short non-secret identifier for logs.
func KeyHint(key string) string {
	key = strings.TrimPrefix(key, APIKeyPrefix)
	if len(key) <= 6 {
		return "***"
	}
	return key[:6] + "..."
}
