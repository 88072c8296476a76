// Package trace tags outbound gateway requests with a request id and keeps
// simple request metrics.
package trace

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"

	// RequestIDHeader carries the id to the server.
	RequestIDHeader = "X-Request-ID"
)

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests       int64
	FailedRequests      int64
	AverageResponseTime int64 // in microseconds
}

// Transport is an http.RoundTripper that stamps every request with an id.
// A request whose context already carries an id keeps it.
type Transport struct {
	base http.RoundTripper

	total     atomic.Int64
	failed    atomic.Int64
	totalTime atomic.Int64 // microseconds
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base}
}

// Wrap is NewTransport in the shape gateway options expect.
func Wrap(base http.RoundTripper) http.RoundTripper {
	return NewTransport(base)
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	requestID := GetRequestID(req.Context())
	if requestID == "" {
		requestID = GenerateRequestID()
	}
	req = req.Clone(WithRequestID(req.Context(), requestID))
	req.Header.Set(RequestIDHeader, requestID)

	resp, err := t.base.RoundTrip(req)

	t.total.Add(1)
	t.totalTime.Add(time.Since(start).Microseconds())
	if err != nil || resp.StatusCode >= 500 {
		t.failed.Add(1)
	}
	slog.DebugContext(req.Context(), "Request traced", "request_id", requestID, "method", req.Method, "path", req.URL.Path)
	return resp, err
}

// GetMetrics returns current metrics
func (t *Transport) GetMetrics() Metrics {
	m := Metrics{
		TotalRequests:  t.total.Load(),
		FailedRequests: t.failed.Load(),
	}
	if m.TotalRequests > 0 {
		m.AverageResponseTime = t.totalTime.Load() / m.TotalRequests
	}
	return m
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}

// WithRequestID stores id in ctx so nested calls share it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
