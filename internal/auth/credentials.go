// Package auth implements biometric login: a platform authenticator signs the
// server's challenge with a credential registered earlier for the user.
package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"finance/internal/storage"
)

const credentialPrefix = "webauthn_credential_"

// KV is the durable key/value state the credentials live in.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// CredentialStore remembers which credential id belongs to which username.
type CredentialStore struct {
	kv KV
}

func NewCredentialStore(kv KV) *CredentialStore {
	return &CredentialStore{kv: kv}
}

func credentialKey(username string) string {
	return credentialPrefix + username
}

func (s *CredentialStore) Has(ctx context.Context, username string) bool {
	id, err := s.Get(ctx, username)
	return err == nil && id != ""
}

// Get returns the credential id stored for username, or ErrNoCredential.
func (s *CredentialStore) Get(ctx context.Context, username string) (string, error) {
	id, err := s.kv.Get(ctx, credentialKey(username))
	if errors.Is(err, storage.ErrNotFound) || (err == nil && id == "") {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	return id, nil
}

func (s *CredentialStore) Store(ctx context.Context, username, credentialID string) error {
	if err := s.kv.Set(ctx, credentialKey(username), credentialID); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

func (s *CredentialStore) Remove(ctx context.Context, username string) error {
	err := s.kv.Delete(ctx, credentialKey(username))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("remove credential: %w", err)
	}
	return nil
}

// EncodeBase64URL encodes b as unpadded base64url.
func EncodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeBase64URL accepts base64url with or without padding.
func DecodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
