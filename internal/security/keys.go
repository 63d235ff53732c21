package security

import (
	"encoding/base64"
	"errors"
	"os"
	"strings"
)

// MinSecretBytes is the minimum length of a signing or hashing secret (256 bits).
const MinSecretBytes = 32

var (
	// ErrInvalidKey is returned when a secret is empty or cannot be decoded.
	ErrInvalidKey = errors.New("invalid key")
	// ErrWeakKey is returned when a secret is shorter than MinSecretBytes.
	ErrWeakKey = errors.New("key shorter than 256 bits")
)

// LoadSecret resolves a configured secret to key bytes. Accepted forms:
// "base64:<std-encoded>", "file:<path>" (trailing whitespace trimmed), or the
// raw string itself. The result must be at least MinSecretBytes long.
func LoadSecret(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	var key []byte
	switch {
	case strings.HasPrefix(s, "base64:"):
		b, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, "base64:"))
		if err != nil {
			return nil, ErrInvalidKey
		}
		key = b
	case strings.HasPrefix(s, "file:"):
		b, err := os.ReadFile(strings.TrimPrefix(s, "file:"))
		if err != nil {
			return nil, err
		}
		key = []byte(strings.TrimRight(string(b), "\r\n\t "))
	default:
		key = []byte(s)
	}
	if len(key) < MinSecretBytes {
		return nil, ErrWeakKey
	}
	return key, nil
}
