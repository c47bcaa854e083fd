// Package auth issues and verifies access tokens and password hashes
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrNoSecret is returned when no signing secret is configured
var ErrNoSecret = errors.New("jwt secret is required")

// Claims identifies the user and the token generation the token belongs to.
// A token is only valid while Version equals the user's token_version.
type Claims struct {
	UserID  string `json:"uid"`
	Version int    `json:"ver"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates HS256 tokens
type TokenManager struct {
	secret  []byte
	issuer  string
	timeout time.Duration
	now     func() time.Time
}

// NewTokenManager creates a token manager. A zero timeout means 24h.
func NewTokenManager(secret, issuer string, timeout time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, timeout: timeout, now: time.Now}, nil
}

// Issue signs a token for userID at token version ver
func (m *TokenManager) Issue(userID string, ver int) (string, error) {
	now := m.now()
	claims := &Claims{
		UserID:  userID,
		Version: ver,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.timeout)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse validates signature, algorithm, issuer and expiry and returns the claims
func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Hasher hashes passwords with bcrypt at a fixed cost
type Hasher struct {
	cost int
}

// NewHasher creates a hasher. Costs outside bcrypt's range fall back to the default.
func NewHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return Hasher{cost: cost}
}

// Hash returns the bcrypt hash of password
func (h Hasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Check reports whether password matches hash
func (h Hasher) Check(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
