package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var ErrNoToken = errors.New("login response carried no token")

// Login exchanges credentials for a token and stores it in the session.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body := map[string]string{"email": email, "password": password}

	var resp tokenResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/auth/login", body: body, out: &resp, public: true}); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", ErrNoToken
	}
	if err := c.session.Set(ctx, resp.Token); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// ValidateToken asks the server whether the session token is still accepted.
func (c *Client) ValidateToken(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodGet, path: "/api/auth/token"})
}

// Logout ends the server session. The local token is dropped even if the
// server call fails.
func (c *Client) Logout(ctx context.Context) error {
	if !c.session.Authenticated() {
		c.session.Clear(ctx)
		return nil
	}
	defer c.session.Clear(ctx)
	return c.do(ctx, request{method: http.MethodPost, path: "/api/auth/logout"})
}

// RegistrationOptions is what the server hands out to create a biometric
// credential for the logged-in user.
type RegistrationOptions struct {
	Challenge       string `json:"challenge"`
	UserID          string `json:"userId"`
	UserName        string `json:"userName"`
	UserDisplayName string `json:"userDisplayName"`
}

// Assertion is a signed biometric login; every field is base64url encoded.
type Assertion struct {
	CredentialID      string `json:"credentialId"`
	Signature         string `json:"signature"`
	AuthenticatorData string `json:"authenticatorData"`
	ClientDataJSON    string `json:"clientDataJSON"`
}

// BiometricChallenge starts a biometric login for email.
func (c *Client) BiometricChallenge(ctx context.Context, email string) (string, error) {
	var resp struct {
		Challenge string `json:"challenge"`
	}
	body := map[string]string{"email": email}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/auth/touchid/challenge", body: body, out: &resp, public: true}); err != nil {
		return "", err
	}
	if resp.Challenge == "" {
		return "", fmt.Errorf("touchid challenge: empty challenge")
	}
	return resp.Challenge, nil
}

// BiometricLogin submits a signed assertion and stores the returned token.
func (c *Client) BiometricLogin(ctx context.Context, email string, a Assertion) (string, error) {
	body := struct {
		Email string `json:"email"`
		Assertion
	}{Email: email, Assertion: a}

	var resp tokenResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/auth/touchid/login", body: body, out: &resp, public: true}); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", ErrNoToken
	}
	if err := c.session.Set(ctx, resp.Token); err != nil {
		return "", err
	}
	return resp.Token, nil
}

func (c *Client) BiometricRegistrationOptions(ctx context.Context) (RegistrationOptions, error) {
	var resp RegistrationOptions
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/auth/touchid/register/challenge", out: &resp}); err != nil {
		return RegistrationOptions{}, err
	}
	if resp.Challenge == "" {
		return RegistrationOptions{}, fmt.Errorf("touchid registration: empty challenge")
	}
	return resp, nil
}

// RegisterBiometric uploads a new credential's id and SPKI public key.
func (c *Client) RegisterBiometric(ctx context.Context, credentialID, publicKey string) error {
	body := map[string]string{"credentialId": credentialID, "publicKey": publicKey}
	return c.do(ctx, request{method: http.MethodPost, path: "/api/auth/touchid/register", body: body})
}
