package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/punchclock/errors"
)

// Store handles persistence of users and sessions in the remote schema
type Store struct {
	db *sql.DB
}

// NewStore creates a new auth store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetOrCreateUser finds a user by email or creates one, recording the login
func (s *Store) GetOrCreateUser(ctx context.Context, email, name string) (*User, error) {
	now := time.Now().UTC()

	user, err := s.GetUserByEmail(ctx, email)
	if err == nil {
		if name == "" {
			name = user.Name
		}
		_, updateErr := s.db.ExecContext(ctx,
			"UPDATE users SET last_login_at = ?, name = ? WHERE id = ?",
			now, name, user.ID,
		)
		if updateErr != nil {
			return nil, errors.Wrap(updateErr, "failed to update user last login")
		}
		user.LastLoginAt = now
		user.Name = name
		return user, nil
	}
	if !errors.IsNotFoundError(err) {
		return nil, err
	}

	user = &User{
		ID:          uuid.New().String(),
		Email:       email,
		Name:        name,
		CreatedAt:   now,
		LastLoginAt: now,
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, created_at, last_login_at)
		 VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, user.CreatedAt, user.LastLoginAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create user")
	}

	return user, nil
}

const userColumns = `id, email, name, created_at, last_login_at`

func scanUser(row *sql.Row) (*User, error) {
	user := &User{}
	var lastLogin sql.NullTime

	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt, &lastLogin)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("user")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user")
	}

	if lastLogin.Valid {
		user.LastLoginAt = lastLogin.Time
	}
	return user, nil
}

// GetUserByEmail finds a user by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

// GetUserByID finds a user by internal ID
func (s *Store) GetUserByID(ctx context.Context, id string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// CreateSession creates a new session for a user
func (s *Store) CreateSession(ctx context.Context, userID, deviceID, deviceName string, expiresAt time.Time) (*Session, error) {
	now := time.Now().UTC()
	session := &Session{
		ID:           uuid.New().String(),
		UserID:       userID,
		DeviceID:     deviceID,
		DeviceName:   deviceName,
		CreatedAt:    now,
		ExpiresAt:    expiresAt.UTC(),
		LastActiveAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, device_id, device_name, created_at, expires_at, last_active_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.DeviceID, session.DeviceName, session.CreatedAt, session.ExpiresAt, session.LastActiveAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}

	return session, nil
}

const sessionColumns = `id, user_id, device_id, device_name, created_at, expires_at, last_active_at, revoked_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	session := &Session{}
	var lastActive, revoked sql.NullTime

	err := row.Scan(&session.ID, &session.UserID, &session.DeviceID, &session.DeviceName,
		&session.CreatedAt, &session.ExpiresAt, &lastActive, &revoked)
	if err != nil {
		return nil, err
	}

	if lastActive.Valid {
		session.LastActiveAt = lastActive.Time
	}
	if revoked.Valid {
		session.RevokedAt = &revoked.Time
	}
	return session, nil
}

// GetSession retrieves a session by ID. A missing session returns nil, nil.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get session")
	}
	return session, nil
}

// UpdateSessionActivity updates the last active time for a session
func (s *Store) UpdateSessionActivity(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET last_active_at = ? WHERE id = ?",
		time.Now().UTC(), sessionID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update session activity")
	}
	return nil
}

// RevokeSession marks a session as revoked
func (s *Store) RevokeSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL",
		time.Now().UTC(), sessionID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to revoke session")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFoundError("active session %s", sessionID)
	}
	return nil
}

// RevokeAllUserSessions revokes all sessions for a user
func (s *Store) RevokeAllUserSessions(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL",
		time.Now().UTC(), userID,
	)
	if err != nil {
		return 0, errors.Wrap(err, "failed to revoke user sessions")
	}
	return res.RowsAffected()
}

// ListUserSessions returns all active sessions for a user
func (s *Store) ListUserSessions(ctx context.Context, userID string) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+`
		 FROM sessions WHERE user_id = ? AND revoked_at IS NULL AND expires_at > ?
		 ORDER BY created_at DESC`,
		userID, time.Now().UTC(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list user sessions")
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan session")
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

// CleanupExpiredSessions removes expired sessions from the database
func (s *Store) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at < ?",
		time.Now().UTC(),
	)
	if err != nil {
		return 0, errors.Wrap(err, "failed to cleanup expired sessions")
	}
	return result.RowsAffected()
}
