package security

import (
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when a login names an unknown user so the
// response time matches a real password check.
var dummyHash = []byte("$2a$12$C6UzMDM.H6dfI/f/IKxGhu1WOBZgvh7xk3MSZ2qHeuXoeE6xoUx9S")

// Hasher hashes and verifies passwords using bcrypt. Callers must not log or
// persist plaintext passwords.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost (4 to 31). Cost 12 is a
// reasonable default for interactive login.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a bcrypt hash of password suitable for storage.
func (h *Hasher) Hash(password []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(password, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether rawPassword matches storedHash. A malformed or empty
// hash is a mismatch, never an error. The cost factor is read from the hash.
func (h *Hasher) Verify(rawPassword, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(rawPassword)) == nil
}

// Burn performs a throwaway comparison of the same cost as a real Verify.
func (h *Hasher) Burn(rawPassword string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(rawPassword))
}
