package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, badly signed or expired.
	// Callers cannot tell these cases apart.
	ErrInvalidToken = errors.New("invalid token")
)

// TokenType is the value of the "typ" claim.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// DisplayAttrs are the user attributes embedded in access tokens for the UI.
type DisplayAttrs struct {
	Name  string
	Email string
}

// Claims holds the JWT claims for both token kinds. Role, Name and Email are
// only set on access tokens.
type Claims struct {
	jwt.RegisteredClaims
	Type  TokenType `json:"typ"`
	Role  string    `json:"role,omitempty"`
	Name  string    `json:"name,omitempty"`
	Email string    `json:"email,omitempty"`
}

// TokenProvider issues and verifies HS256 access and refresh tokens. The key is
// read-only after construction, so one provider is shared by all requests.
type TokenProvider struct {
	key        []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenProvider returns a TokenProvider signing with secret, which must be at
// least 256 bits long.
func NewTokenProvider(secret []byte, issuer string, accessTTL, refreshTTL time.Duration) (*TokenProvider, error) {
	if len(secret) < MinSecretBytes {
		return nil, ErrWeakKey
	}
	k := make([]byte, len(secret))
	copy(k, secret)
	return &TokenProvider{
		key:        k,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// RefreshTTL is the lifetime given to refresh tokens.
func (p *TokenProvider) RefreshTTL() time.Duration { return p.refreshTTL }

// IssueAccess issues a short-lived access JWT carrying the user's role and display attributes.
func (p *TokenProvider) IssueAccess(userID, role string, attrs DisplayAttrs) (token string, expiresAt time.Time, err error) {
	claims, expiresAt, err := p.baseClaims(userID, TokenTypeAccess, p.accessTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	claims.Role = role
	claims.Name = attrs.Name
	claims.Email = attrs.Email
	token, err = p.sign(claims)
	return token, expiresAt, err
}

// IssueRefresh issues a long-lived refresh JWT. The random jti keeps two tokens
// issued to the same user in the same second distinct.
func (p *TokenProvider) IssueRefresh(userID string) (token string, expiresAt time.Time, err error) {
	claims, expiresAt, err := p.baseClaims(userID, TokenTypeRefresh, p.refreshTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	token, err = p.sign(claims)
	return token, expiresAt, err
}

func (p *TokenProvider) baseClaims(userID string, typ TokenType, ttl time.Duration) (*Claims, time.Time, error) {
	jti, err := generateJTI()
	if err != nil {
		return nil, time.Time{}, err
	}
	now := p.now()
	expiresAt := now.Add(ttl)
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Type: typ,
	}, expiresAt, nil
}

func (p *TokenProvider) sign(claims *Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(p.key)
}

// Verify parses tokenString and checks signature, algorithm, issuer and expiry.
// Every failure is reported as ErrInvalidToken.
func (p *TokenProvider) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return p.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IsAccessToken reports whether claims came from an access token.
func IsAccessToken(c *Claims) bool { return c != nil && c.Type == TokenTypeAccess }

// IsRefreshToken reports whether claims came from a refresh token.
func IsRefreshToken(c *Claims) bool { return c != nil && c.Type == TokenTypeRefresh }

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
