// Package auth issues and verifies the bearer tokens devices present to the
// remote authority. A token is a signed JWT naming a session; the session
// row decides whether the token is still honoured and which user it acts for.
package auth

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/punchclock/am"
	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/logger"
)

// User owns jobs, entries and pay periods on the remote
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastLoginAt time.Time `json:"last_login_at,omitempty"`
}

// Session is one device's grant
type Session struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	DeviceID     string     `json:"device_id"`
	DeviceName   string     `json:"device_name,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	LastActiveAt time.Time  `json:"last_active_at,omitempty"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
}

// Claims are carried in the token and attached to authenticated requests
type Claims struct {
	UserID    string `json:"uid"`
	Email     string `json:"email"`
	SessionID string `json:"sid"`
	DeviceID  string `json:"did"`
}

// IssuedToken is the result of a successful sign-in
type IssuedToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service ties token signing to the session store
type Service struct {
	jwt    *JWTManager
	store  *Store
	now    func() time.Time
	logger *zap.SugaredLogger
}

// NewService creates the auth service from server config
func NewService(cfg am.ServerConfig, store *Store, log *zap.SugaredLogger) (*Service, error) {
	jwtManager, err := NewJWTManager(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Logger
	}
	return &Service{
		jwt:    jwtManager,
		store:  store,
		now:    time.Now,
		logger: log.With(logger.FieldComponent, "auth"),
	}, nil
}

// IssueToken signs a user in on a device, creating the user on first use
func (s *Service) IssueToken(ctx context.Context, email, name, deviceID, deviceName string) (*IssuedToken, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.NewValidationError("invalid email %q", email)
	}

	user, err := s.store.GetOrCreateUser(ctx, email, name)
	if err != nil {
		return nil, err
	}

	expiresAt := s.now().Add(s.jwt.TokenExpiry())
	session, err := s.store.CreateSession(ctx, user.ID, deviceID, deviceName, expiresAt)
	if err != nil {
		return nil, err
	}

	token, err := s.jwt.GenerateToken(&Claims{
		UserID:    user.ID,
		Email:     user.Email,
		SessionID: session.ID,
		DeviceID:  deviceID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign token")
	}

	s.logger.Infow("Token issued", logger.FieldUserID, user.ID, logger.FieldSessionID, session.ID)
	return &IssuedToken{Token: token, UserID: user.ID, SessionID: session.ID, ExpiresAt: expiresAt}, nil
}

// Authenticate resolves a bearer token to its claims. Invalid signatures,
// unknown, revoked and expired sessions all yield an AuthError.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, errors.NewAuthError("missing token")
	}

	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "invalid token"), errors.ErrUnauthorized)
	}

	session, err := s.store.GetSession(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	switch {
	case session == nil:
		return nil, errors.NewAuthError("session not found")
	case session.RevokedAt != nil:
		return nil, errors.NewAuthError("session revoked")
	case s.now().After(session.ExpiresAt):
		return nil, errors.NewAuthError("session expired")
	case session.UserID != claims.UserID:
		return nil, errors.NewAuthError("session does not belong to token user")
	}
	return claims, nil
}

// Revoke ends a session; tokens naming it stop working immediately
func (s *Service) Revoke(ctx context.Context, sessionID string) error {
	return s.store.RevokeSession(ctx, sessionID)
}

// Store returns the underlying session store
func (s *Service) Store() *Store {
	return s.store
}
