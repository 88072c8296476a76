package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"finance/internal/storage"
)

type memStore struct {
	values map[string]string
	getErr error
}

func newMemStore() *memStore { return &memStore{values: map[string]string{}} }

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	delete(m.values, key)
	return nil
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := token.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestSession_LoadsPersistedToken(t *testing.T) {
	store := newMemStore()
	store.values[TokenKey] = "opaque-token"

	s, err := New(context.Background(), store)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Token() != "opaque-token" || !s.Authenticated() {
		t.Fatalf("expected persisted token, got %q", s.Token())
	}
}

func TestSession_EmptyStore(t *testing.T) {
	s, err := New(context.Background(), newMemStore())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Authenticated() {
		t.Fatal("session should start unauthenticated")
	}
}

func TestSession_StoreError(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("disk gone")
	if _, err := New(context.Background(), store); err == nil {
		t.Fatal("expected load error")
	}
}

func TestSession_SetAndClear(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	s, _ := New(ctx, store)

	if err := s.Set(ctx, "t1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if store.values[TokenKey] != "t1" {
		t.Fatalf("token not persisted: %v", store.values)
	}

	s.Clear(ctx)
	if s.Authenticated() {
		t.Fatal("expected cleared session")
	}
	if _, ok := store.values[TokenKey]; ok {
		t.Fatal("persisted token should be removed")
	}
}

func TestSession_ExpiredJWTIsAbsent(t *testing.T) {
	ctx := context.Background()
	s, _ := New(ctx, nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_ = s.Set(ctx, signedToken(t, now.Add(-time.Minute)))
	if s.Authenticated() {
		t.Fatal("expired token should not authenticate")
	}

	fresh := signedToken(t, now.Add(time.Hour))
	_ = s.Set(ctx, fresh)
	if s.Token() != fresh {
		t.Fatal("fresh token should be returned")
	}
	exp, ok := s.ExpiresAt()
	if !ok || !exp.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v (ok=%v)", exp, ok)
	}
}

func TestSession_OpaqueTokenHasNoExpiry(t *testing.T) {
	ctx := context.Background()
	s, _ := New(ctx, nil)
	_ = s.Set(ctx, "not-a-jwt")
	if _, ok := s.ExpiresAt(); ok {
		t.Fatal("opaque token should have no expiry")
	}
	if !s.Authenticated() {
		t.Fatal("opaque token should authenticate")
	}
}
