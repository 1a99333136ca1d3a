package device

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
)

// PlaceholderKey replaces a device key that sanitizes down to nothing, so
// it never collides with the empty string as a storage key.
const PlaceholderKey = "_PLACE_HOLDER_"

const keyRandomBytes = 24

// NewKey mints a fresh short device key: 24 random bytes as URL-safe
// base64 without padding (32 characters).
func NewKey() (string, error) {
	buf := make([]byte, keyRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// SanitizeKey normalizes a device key to its alphanumeric characters for
// use as a storage key. A key with nothing left maps to PlaceholderKey.
func SanitizeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return PlaceholderKey
	}
	return b.String()
}
