// Package auth owns users and sessions and turns request credentials into a
// core.Identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"farmbook/internal/cache"
	"farmbook/internal/core"
	"farmbook/internal/storage"

	"github.com/google/uuid"
)

// CookieName carries the session token for browser clients.
const CookieName = "farmbook_session"

const minPasswordLen = 8

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")

	errInvalidEmail = errors.New("must be a valid address")
)

type cachedSession struct {
	identity  core.Identity
	expiresAt time.Time
}

// Service signs users up and in, and resolves session tokens. Resolved
// sessions are kept in an LRU cache until they expire or are signed out.
type Service struct {
	storage  *storage.SQLiteRepository
	sessions *cache.LRUCache[cachedSession]
	ttl      time.Duration
	now      func() time.Time
}

// NewService creates the service. sessionTTL is the lifetime of new
// sessions; cacheTTL bounds how long a resolved session skips the database.
func NewService(storage *storage.SQLiteRepository, sessionTTL, cacheTTL time.Duration, cacheSize int) *Service {
	return &Service{
		storage:  storage,
		sessions: cache.NewLRUCache[cachedSession](cacheSize, cacheTTL),
		ttl:      sessionTTL,
		now:      time.Now,
	}
}

// SessionCache exposes the cache so a cache.Manager can sweep it.
func (s *Service) SessionCache() cache.Cleaner {
	return s.sessions
}

// Register validates the input and creates the user without opening a
// session.
func (s *Service) Register(ctx context.Context, email, name, password string) (core.User, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return core.User{}, core.Invalid("email", errInvalidEmail)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return core.User{}, core.Invalid("name", core.ErrEmptyValue)
	}
	if len(password) < minPasswordLen {
		return core.User{}, core.Invalid("password", fmt.Errorf("must be at least %d characters", minPasswordLen))
	}

	hash, err := HashPassword(password)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.storage.CreateUser(ctx, email, name, hash)
	if errors.Is(err, storage.ErrDuplicate) {
		return core.User{}, ErrEmailTaken
	}
	if err != nil {
		return core.User{}, err
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID)
	return user, nil
}

// SignUp registers the user and opens a first session.
func (s *Service) SignUp(ctx context.Context, email, name, password string) (core.User, core.Session, error) {
	user, err := s.Register(ctx, email, name, password)
	if err != nil {
		return core.User{}, core.Session{}, err
	}

	session, err := s.openSession(ctx, user)
	if err != nil {
		return core.User{}, core.Session{}, err
	}
	return user, session, nil
}

// SignIn checks the credentials and opens a new session.
func (s *Service) SignIn(ctx context.Context, email, password string) (core.User, core.Session, error) {
	user, err := s.storage.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		// Unknown emails cost the same as a wrong password.
		VerifyPassword(password, dummyHash)
		return core.User{}, core.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, core.Session{}, err
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return core.User{}, core.Session{}, ErrInvalidCredentials
	}

	session, err := s.openSession(ctx, user)
	if err != nil {
		return core.User{}, core.Session{}, err
	}
	return user, session, nil
}

// IdentityForEmail resolves a registered user without credentials, for
// operator tooling that already runs with database access.
func (s *Service) IdentityForEmail(ctx context.Context, email string) (core.Identity, error) {
	user, err := s.storage.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return core.Identity{}, fmt.Errorf("no user with email %q: %w", email, core.ErrUnauthorized)
	}
	if err != nil {
		return core.Identity{}, err
	}
	return core.Identity{UserID: user.ID, Email: user.Email, Name: user.Name}, nil
}

// SignOut revokes the session. Unknown tokens are ignored.
func (s *Service) SignOut(ctx context.Context, token string) error {
	s.sessions.Delete(token)
	return s.storage.DeleteSession(ctx, token)
}

// Resolve reads the token from the Authorization header or the session
// cookie. Missing, unknown and expired tokens all yield ErrUnauthorized.
func (s *Service) Resolve(ctx context.Context, h http.Header) (core.Identity, error) {
	return s.ResolveToken(ctx, TokenFromHeader(h))
}

func (s *Service) ResolveToken(ctx context.Context, token string) (core.Identity, error) {
	if token == "" {
		return core.Identity{}, core.ErrUnauthorized
	}

	now := s.now()
	if cs, ok := s.sessions.Get(token); ok && now.Before(cs.expiresAt) {
		return cs.identity, nil
	}

	session, user, err := s.storage.GetSession(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return core.Identity{}, core.ErrUnauthorized
	}
	if err != nil {
		return core.Identity{}, fmt.Errorf("resolve session: %w", err)
	}

	if !now.Before(session.ExpiresAt) {
		s.sessions.Delete(token)
		if err := s.storage.DeleteSession(ctx, token); err != nil {
			slog.WarnContext(ctx, "Failed to purge expired session", "error", err)
		}
		return core.Identity{}, core.ErrUnauthorized
	}

	id := core.Identity{UserID: user.ID, Email: user.Email, Name: user.Name}
	s.sessions.SetUntil(token, cachedSession{identity: id, expiresAt: session.ExpiresAt}, session.ExpiresAt)
	return id, nil
}

// SessionCacheStats returns session cache hits and misses.
func (s *Service) SessionCacheStats() (hits, misses int64) {
	return s.sessions.Stats()
}

// PurgeExpired deletes expired sessions from storage.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.storage.DeleteExpiredSessions(ctx, s.now())
}

// openSession stores a session under a random v4 token.
func (s *Service) openSession(ctx context.Context, user core.User) (core.Session, error) {
	token, err := uuid.NewRandom()
	if err != nil {
		return core.Session{}, fmt.Errorf("generate session token: %w", err)
	}
	return s.storage.CreateSession(ctx, core.Session{
		Token:     token.String(),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.ttl),
	})
}

// TokenFromHeader returns the bearer token, falling back to the session
// cookie.
func TokenFromHeader(h http.Header) string {
	if v := h.Get("Authorization"); v != "" {
		scheme, token, ok := strings.Cut(v, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := (&http.Request{Header: h}).Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// dummyHash is verified against when the email is unknown.
var dummyHash, _ = HashPassword("farmbook-timing-equalizer")
