package log

import (
	"log/slog"
	"net/http"
	"time"
)

// Transport is an http.RoundTripper that logs every outbound request.
type Transport struct {
	Base   http.RoundTripper
	Logger *Logger
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, logger *Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Logger: logger}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.Base.RoundTrip(req)
	durationMs := time.Since(start).Milliseconds()

	fields := NewFields().
		WithHTTPRequest(req.Method, req.URL.Path, req.URL.RawQuery).
		WithComponent(ComponentGateway)

	if err != nil {
		fields.WithError(err)
		fields[FieldDuration] = durationMs
		t.Logger.Logger.Log(req.Context(), slog.LevelWarn, "HTTP request failed", fields.ToSlice()...)
		return nil, err
	}

	level := slog.LevelDebug
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		level = slog.LevelWarn
	} else if resp.StatusCode >= 500 {
		level = slog.LevelError
	}
	fields.WithHTTPResponse(resp.StatusCode, durationMs, resp.StatusCode < 400)
	t.Logger.Logger.Log(req.Context(), level, "HTTP request completed", fields.ToSlice()...)

	return resp, nil
}
