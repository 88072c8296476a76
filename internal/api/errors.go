package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthorized is wrapped by every *AuthError.
var ErrUnauthorized = errors.New("unauthorized")

// AuthError reports a request that needed a session and either had no token
// (StatusCode 0, nothing was sent) or was rejected with 401.
type AuthError struct {
	Method     string
	Path       string
	StatusCode int
}

func (e *AuthError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: not logged in", e.Method, e.Path)
	}
	return fmt.Sprintf("%s %s: session rejected by server", e.Method, e.Path)
}

func (e *AuthError) Unwrap() error { return ErrUnauthorized }

// IsAuthError reports whether err is, or wraps, an *AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// StatusError carries a non-2xx response for the caller to inspect.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Body       []byte
}

func newStatusError(method, path string, status int, body []byte) *StatusError {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := ""
	if json.Unmarshal(body, &payload) == nil {
		msg = payload.Message
		if msg == "" {
			msg = payload.Error
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &StatusError{Method: method, Path: path, StatusCode: status, Message: strings.TrimSpace(msg), Body: body}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}
