package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"finance/internal/api"
)

var (
	ErrUnsupported      = errors.New("biometric login is not available on this device")
	ErrUsernameRequired = errors.New("username is required")
	ErrNoCredential     = errors.New("no biometric credential stored for this user")
	ErrChallenge        = errors.New("could not get a challenge from the server")
	ErrAuthenticator    = errors.New("authenticator failed")
	ErrRejected         = errors.New("server rejected the biometric login")
	ErrRegistration     = errors.New("biometric registration failed")
)

// Gateway is the part of *api.Client biometric login needs.
type Gateway interface {
	BiometricChallenge(ctx context.Context, email string) (string, error)
	BiometricLogin(ctx context.Context, email string, a api.Assertion) (string, error)
	BiometricRegistrationOptions(ctx context.Context) (api.RegistrationOptions, error)
	RegisterBiometric(ctx context.Context, credentialID, publicKey string) error
}

type Config struct {
	RPID   string
	Origin string
}

// Biometric drives registration and login with a platform authenticator.
type Biometric struct {
	gateway       Gateway
	credentials   *CredentialStore
	authenticator Authenticator
	config        Config
	goos          string
}

func NewBiometric(gateway Gateway, credentials *CredentialStore, authenticator Authenticator, config Config) *Biometric {
	if config.RPID == "" {
		config.RPID = "localhost"
	}
	if config.Origin == "" {
		config.Origin = "https://" + config.RPID
	}
	return &Biometric{
		gateway:       gateway,
		credentials:   credentials,
		authenticator: authenticator,
		config:        config,
		goos:          runtime.GOOS,
	}
}

// Offered reports whether biometric login should be proposed: only on macOS
// with a working authenticator.
func (b *Biometric) Offered() bool {
	return b.goos == "darwin" && b.authenticator != nil && b.authenticator.Available()
}

// HasCredential reports whether username registered a credential on this
// device.
func (b *Biometric) HasCredential(ctx context.Context, username string) bool {
	return b.credentials.Has(ctx, strings.TrimSpace(username))
}

// Login signs username in with their stored credential. The token ends up in
// the session through the gateway.
func (b *Biometric) Login(ctx context.Context, username string) error {
	if !b.Offered() {
		return ErrUnsupported
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrUsernameRequired
	}

	challenge, err := b.gateway.BiometricChallenge(ctx, username)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrChallenge, err)
	}

	credentialID, err := b.credentials.Get(ctx, username)
	if err != nil {
		return err
	}

	assertion, err := b.authenticator.Assert(ctx, AssertionRequest{
		Challenge:    challenge,
		CredentialID: credentialID,
		RPID:         b.config.RPID,
		Origin:       b.config.Origin,
	})
	if err != nil {
		if errors.Is(err, ErrNoCredential) || errors.Is(err, ErrAuthenticator) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrAuthenticator, err)
	}

	if _, err := b.gateway.BiometricLogin(ctx, username, assertion); err != nil {
		slog.WarnContext(ctx, "Biometric login rejected", "username", username, "error", err)
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}

	slog.InfoContext(ctx, "Biometric login succeeded", "username", username)
	return nil
}

// Register creates a credential for the logged-in user and stores its id
// under username. Requires a session.
func (b *Biometric) Register(ctx context.Context, username string) error {
	if !b.Offered() {
		return ErrUnsupported
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrUsernameRequired
	}

	opts, err := b.gateway.BiometricRegistrationOptions(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRegistration, err)
	}

	cred, err := b.authenticator.Create(ctx, RegistrationRequest{
		Challenge:   opts.Challenge,
		RPID:        b.config.RPID,
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		DisplayName: opts.UserDisplayName,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRegistration, err)
	}

	if err := b.gateway.RegisterBiometric(ctx, cred.CredentialID, cred.PublicKey); err != nil {
		return fmt.Errorf("%w: %w", ErrRegistration, err)
	}
	if err := b.credentials.Store(ctx, username, cred.CredentialID); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Biometric credential registered", "username", username)
	return nil
}

// Forget drops the credential stored for username on this device.
func (b *Biometric) Forget(ctx context.Context, username string) error {
	return b.credentials.Remove(ctx, strings.TrimSpace(username))
}
