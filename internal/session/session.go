// Package session holds the process-wide authentication state: the bearer
// token the gateway attaches to requests, mirrored to durable storage.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"finance/internal/storage"
)

// TokenKey is the durable storage key of the auth token.
const TokenKey = "authToken"

// Store is the durable key/value backing of a session.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Session is safe for concurrent use. Every gateway call reads the token at
// call time, so a Clear after a 401 affects all calls issued afterwards.
type Session struct {
	mu    sync.RWMutex
	token string
	store Store
	now   func() time.Time
}

// New loads any persisted token from store. A nil store keeps the session in
// memory only.
func New(ctx context.Context, store Store) (*Session, error) {
	s := &Session{store: store, now: time.Now}
	if store == nil {
		return s, nil
	}

	token, err := store.Get(ctx, TokenKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load session token: %w", err)
	}
	s.token = token
	return s, nil
}

// Token returns the current token, or "" when there is none or it has expired.
func (s *Session) Token() string {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	if token == "" || s.expired(token) {
		return ""
	}
	return token
}

// Authenticated reports whether a usable token is present.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Set stores a new token after a successful login.
func (s *Session) Set(ctx context.Context, token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	if err := s.store.Set(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("persist session token: %w", err)
	}
	return nil
}

// Clear drops the token on logout or after the server rejected it.
func (s *Session) Clear(ctx context.Context) {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	if err := s.store.Delete(ctx, TokenKey); err != nil {
		slog.WarnContext(ctx, "Failed to remove persisted session token", "error", err)
	}
}

// ExpiresAt returns the exp claim of a JWT token. Opaque tokens have none.
func (s *Session) ExpiresAt() (time.Time, bool) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	return expiry(token)
}

func (s *Session) expired(token string) bool {
	exp, ok := expiry(token)
	return ok && !s.now().Before(exp)
}

// expiry reads the exp claim without verifying the signature; the server
// remains the authority, this only avoids sending a token known to be stale.
func expiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
