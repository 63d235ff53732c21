package security

import "time"

// testSecret is a 256-bit key for unit tests only. Do not use in production.
const testSecret = "test-signing-key-0123456789abcdef"

// TestTokenHashSecret keys the TokenHasher in unit tests.
const TestTokenHashSecret = "test-hashing-key-fedcba9876543210"

// NewTestTokenProvider returns a TokenProvider using the embedded test secret
// with a 15 minute access TTL and a 7 day refresh TTL.
// For unit tests only. Callers must not use in production.
func NewTestTokenProvider() (*TokenProvider, error) {
	return NewTokenProvider([]byte(testSecret), "test-issuer", 15*time.Minute, 7*24*time.Hour)
}
