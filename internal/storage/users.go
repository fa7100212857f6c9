package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"farmbook/internal/core"
)

// CreateUser inserts a user. A taken email returns ErrDuplicate.
func (r *SQLiteRepository) CreateUser(ctx context.Context, email, name, passwordHash string) (core.User, error) {
	u := core.User{Email: email, Name: name, PasswordHash: passwordHash}
	var created int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, name, password_hash)
		VALUES (?, ?, ?)
		RETURNING id, created_at`,
		email, name, passwordHash).Scan(&u.ID, &created)
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, ErrDuplicate
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	u.CreatedAt = unixTime(created)
	return u, nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.getUser(ctx, `SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?`, email)
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	return r.getUser(ctx, `SELECT id, email, name, password_hash, created_at FROM users WHERE id = ?`, id)
}

func (r *SQLiteRepository) getUser(ctx context.Context, query string, arg any) (core.User, error) {
	var (
		u       core.User
		created int64
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = unixTime(created)
	return u, nil
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, s core.Session) (core.Session, error) {
	var created int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (token, user_id, expires_at)
		VALUES (?, ?, ?)
		RETURNING created_at`,
		s.Token, s.UserID, s.ExpiresAt.Unix()).Scan(&created)
	if err != nil {
		return core.Session{}, fmt.Errorf("create session: %w", err)
	}
	s.CreatedAt = unixTime(created)
	return s, nil
}

// GetSession returns the session joined with its user. Expiry is the
// caller's concern.
func (r *SQLiteRepository) GetSession(ctx context.Context, token string) (core.Session, core.User, error) {
	var (
		s                core.Session
		u                core.User
		expires, created int64
		userCreated      int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT s.token, s.user_id, s.expires_at, s.created_at,
		       u.id, u.email, u.name, u.created_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = ?`, token).Scan(&s.Token, &s.UserID, &expires, &created,
		&u.ID, &u.Email, &u.Name, &userCreated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Session{}, core.User{}, ErrNotFound
	}
	if err != nil {
		return core.Session{}, core.User{}, fmt.Errorf("get session: %w", err)
	}
	s.ExpiresAt = unixTime(expires)
	s.CreatedAt = unixTime(created)
	u.CreatedAt = unixTime(userCreated)
	return s, u, nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions purges sessions that expired before now.
func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
