package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// TokenHasher derives the storable form of a refresh token: HMAC-SHA256 keyed
// with a server secret, hex-encoded. Without the secret a stored hash can be
// neither recomputed from a guess nor turned back into a token.
type TokenHasher struct {
	key []byte
}

// NewTokenHasher returns a TokenHasher keyed with secret. The secret is copied.
func NewTokenHasher(secret []byte) *TokenHasher {
	k := make([]byte, len(secret))
	copy(k, secret)
	return &TokenHasher{key: k}
}

// Hash returns the hex-encoded HMAC of the raw token. Deterministic for a given secret.
func (h *TokenHasher) Hash(rawToken string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(rawToken))
	return hex.EncodeToString(mac.Sum(nil))
}

// Matches performs constant-time comparison of the provided token's hash
// with the stored hash. Returns true only if they match.
func (h *TokenHasher) Matches(rawToken, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(h.Hash(rawToken)), []byte(storedHash)) == 1
}
