package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"finance/internal/api"
	"finance/internal/storage"
)

const (
	keyPrefix     = "webauthn_key_"
	counterPrefix = "webauthn_counter_"

	flagUserPresent  = 0x01
	flagUserVerified = 0x04
)

// RegistrationRequest asks an authenticator for a new credential.
type RegistrationRequest struct {
	Challenge   string
	RPID        string
	UserID      string
	UserName    string
	DisplayName string
}

// NewCredential is a freshly created credential. PublicKey is the DER SPKI
// encoding, both fields base64url.
type NewCredential struct {
	CredentialID string
	PublicKey    string
}

// AssertionRequest asks an authenticator to sign a login challenge with
// CredentialID.
type AssertionRequest struct {
	Challenge    string
	CredentialID string
	RPID         string
	Origin       string
}

// Authenticator is the platform authenticator port.
type Authenticator interface {
	Available() bool
	Create(ctx context.Context, req RegistrationRequest) (NewCredential, error)
	Assert(ctx context.Context, req AssertionRequest) (api.Assertion, error)
}

type clientData struct {
	Type        string `json:"type"`
	Challenge   string `json:"challenge"`
	Origin      string `json:"origin"`
	CrossOrigin bool   `json:"crossOrigin"`
}

// SoftwareAuthenticator keeps ES256 keys in the client state and signs
// assertions the way a platform authenticator does.
type SoftwareAuthenticator struct {
	kv KV
	mu sync.Mutex
}

func NewSoftwareAuthenticator(kv KV) *SoftwareAuthenticator {
	return &SoftwareAuthenticator{kv: kv}
}

func (a *SoftwareAuthenticator) Available() bool { return a.kv != nil }

func (a *SoftwareAuthenticator) Create(ctx context.Context, req RegistrationRequest) (NewCredential, error) {
	if _, err := DecodeBase64URL(req.Challenge); err != nil {
		return NewCredential{}, fmt.Errorf("%w: challenge: %w", ErrAuthenticator, err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return NewCredential{}, fmt.Errorf("%w: generate key: %w", ErrAuthenticator, err)
	}
	rawID := make([]byte, 32)
	if _, err := rand.Read(rawID); err != nil {
		return NewCredential{}, fmt.Errorf("%w: credential id: %w", ErrAuthenticator, err)
	}
	credentialID := EncodeBase64URL(rawID)

	priv, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return NewCredential{}, fmt.Errorf("%w: encode key: %w", ErrAuthenticator, err)
	}
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return NewCredential{}, fmt.Errorf("%w: encode public key: %w", ErrAuthenticator, err)
	}

	if err := a.kv.Set(ctx, keyPrefix+credentialID, EncodeBase64URL(priv)); err != nil {
		return NewCredential{}, fmt.Errorf("save key: %w", err)
	}

	slog.DebugContext(ctx, "Credential created", "rp_id", req.RPID, "user", req.UserName)
	return NewCredential{CredentialID: credentialID, PublicKey: EncodeBase64URL(pub)}, nil
}

func (a *SoftwareAuthenticator) Assert(ctx context.Context, req AssertionRequest) (api.Assertion, error) {
	challenge, err := DecodeBase64URL(req.Challenge)
	if err != nil {
		return api.Assertion{}, fmt.Errorf("%w: challenge: %w", ErrAuthenticator, err)
	}
	key, err := a.privateKey(ctx, req.CredentialID)
	if err != nil {
		return api.Assertion{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	counter, err := a.nextCounter(ctx, req.CredentialID)
	if err != nil {
		return api.Assertion{}, err
	}
	authData := AuthenticatorData(req.RPID, counter)

	cd, err := json.Marshal(clientData{
		Type:      "webauthn.get",
		Challenge: EncodeBase64URL(challenge),
		Origin:    req.Origin,
	})
	if err != nil {
		return api.Assertion{}, fmt.Errorf("%w: client data: %w", ErrAuthenticator, err)
	}

	sig, err := ecdsa.SignASN1(rand.Reader, key, SignedPayload(authData, cd))
	if err != nil {
		return api.Assertion{}, fmt.Errorf("%w: sign: %w", ErrAuthenticator, err)
	}

	return api.Assertion{
		CredentialID:      req.CredentialID,
		Signature:         EncodeBase64URL(sig),
		AuthenticatorData: EncodeBase64URL(authData),
		ClientDataJSON:    EncodeBase64URL(cd),
	}, nil
}

func (a *SoftwareAuthenticator) privateKey(ctx context.Context, credentialID string) (*ecdsa.PrivateKey, error) {
	encoded, err := a.kv.Get(ctx, keyPrefix+credentialID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoCredential
	}
	if err != nil {
		return nil, fmt.Errorf("load key: %w", err)
	}
	der, err := DecodeBase64URL(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: decode key: %w", ErrAuthenticator, err)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parse key: %w", ErrAuthenticator, err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: key is %T, not ECDSA", ErrAuthenticator, parsed)
	}
	return key, nil
}

func (a *SoftwareAuthenticator) nextCounter(ctx context.Context, credentialID string) (uint32, error) {
	var n uint64
	raw, err := a.kv.Get(ctx, counterPrefix+credentialID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return 0, fmt.Errorf("load counter: %w", err)
	default:
		if n, err = strconv.ParseUint(raw, 10, 32); err != nil {
			return 0, fmt.Errorf("%w: counter %q", ErrAuthenticator, raw)
		}
	}
	n++
	if err := a.kv.Set(ctx, counterPrefix+credentialID, strconv.FormatUint(n, 10)); err != nil {
		return 0, fmt.Errorf("save counter: %w", err)
	}
	return uint32(n), nil
}

// AuthenticatorData is rpIdHash || flags || signCount, with the user present
// and user verified flags set.
func AuthenticatorData(rpID string, counter uint32) []byte {
	h := sha256.Sum256([]byte(rpID))
	out := make([]byte, 0, 37)
	out = append(out, h[:]...)
	out = append(out, flagUserPresent|flagUserVerified)
	return binary.BigEndian.AppendUint32(out, counter)
}

// SignedPayload is the SHA-256 digest an assertion signature covers:
// authenticatorData followed by the hash of clientDataJSON.
func SignedPayload(authData, clientDataJSON []byte) []byte {
	cdHash := sha256.Sum256(clientDataJSON)
	h := sha256.New()
	h.Write(authData)
	h.Write(cdHash[:])
	return h.Sum(nil)
}
