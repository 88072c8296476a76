package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"finance/internal/api"
)

const MinPasswordLength = 8

var ErrInvalidCredentials = errors.New("invalid username or password")

// LoginForm is the password login input. Username is sent as the email.
type LoginForm struct {
	Username string
	Password string
}

func (f LoginForm) Validate() (LoginForm, error) {
	f.Username = strings.TrimSpace(f.Username)
	if f.Username == "" {
		return f, &ValidationError{Field: "username", Message: "Nome de usuário é obrigatório"}
	}
	if f.Password == "" {
		return f, &ValidationError{Field: "password", Message: "Senha é obrigatória"}
	}
	if utf8.RuneCountInString(f.Password) < MinPasswordLength {
		return f, &ValidationError{Field: "password", Message: "A senha deve ter pelo menos 8 caracteres"}
	}
	return f, nil
}

type AuthService struct {
	gateway AuthGateway
}

func NewAuthService(gateway AuthGateway) *AuthService {
	return &AuthService{gateway: gateway}
}

// Login validates form and signs in. Any rejection by the server is reported
// as ErrInvalidCredentials; transport failures are returned as they are.
func (s *AuthService) Login(ctx context.Context, form LoginForm) error {
	form, err := form.Validate()
	if err != nil {
		return err
	}

	if _, err := s.gateway.Login(ctx, form.Username, form.Password); err != nil {
		if code := api.StatusCode(err); (code >= 400 && code < 500) || errors.Is(err, api.ErrNoToken) {
			slog.WarnContext(ctx, "Login rejected", "username", form.Username, "status", code)
			return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return fmt.Errorf("login: %w", err)
	}

	slog.InfoContext(ctx, "Logged in", "username", form.Username)
	return nil
}

// Validate checks the stored token against the server.
func (s *AuthService) Validate(ctx context.Context) error {
	return s.gateway.ValidateToken(ctx)
}

func (s *AuthService) Logout(ctx context.Context) error {
	if err := s.gateway.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
