package auth

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/teranos/punchclock/am"
	"github.com/teranos/punchclock/errors"
)

// DefaultTokenExpiry applies when server.token_expiry is unset or invalid
const DefaultTokenExpiry = 30 * 24 * time.Hour

const tokenIssuer = "punchclock"

// tokenClaims is the signed payload
type tokenClaims struct {
	jwt.RegisteredClaims
	Claims
}

// JWTManager signs and verifies device tokens with HS256
type JWTManager struct {
	secret      []byte
	tokenExpiry time.Duration
	now         func() time.Time
	parser      *jwt.Parser
}

// NewJWTManager creates a manager from server config. An empty secret is
// replaced by a random one, so tokens die with the process.
func NewJWTManager(config am.ServerConfig) (*JWTManager, error) {
	secret := []byte(config.JWTSecret)
	if len(secret) == 0 {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, errors.Wrap(err, "failed to generate JWT secret")
		}
		secret = []byte(hex.EncodeToString(buf))
	}

	expiry, err := time.ParseDuration(config.TokenExpiry)
	if err != nil || expiry <= 0 {
		expiry = DefaultTokenExpiry
	}

	m := &JWTManager{secret: secret, tokenExpiry: expiry, now: time.Now}
	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	)
	return m, nil
}

// GenerateToken signs claims, valid for TokenExpiry from now
func (m *JWTManager) GenerateToken(claims *Claims) (string, error) {
	now := m.now()
	payload := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   claims.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenExpiry)),
		},
		Claims: *claims,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(m.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}
	return signed, nil
}

// ValidateToken checks signature, issuer and expiry and returns the claims.
// A token must name both a user and a session.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	var payload tokenClaims
	_, err := m.parser.ParseWithClaims(tokenString, &payload, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "invalid token")
	}
	if payload.UserID == "" || payload.SessionID == "" {
		return nil, errors.New("token names no session")
	}
	claims := payload.Claims
	return &claims, nil
}

// TokenExpiry returns how long issued tokens stay valid
func (m *JWTManager) TokenExpiry() time.Duration {
	return m.tokenExpiry
}
