package integrations

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout bounds a single request, body read included, when the
// caller does not choose a timeout of its own.
const DefaultTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when the storefront answers 404.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures: timeouts, connection errors and
	// any status other than 200 or 404.
	ErrNetwork = errors.New("network error")

	// ErrDecode is returned when a response body is not the JSON it should be.
	ErrDecode = errors.New("could not decode response")
)

// NewHTTPClient creates the HTTP client used when none is supplied. It sets
// no Timeout of its own; requests are bounded by the deadline of their
// context, see [WithTimeout].
func NewHTTPClient() *http.Client {
	return &http.Client{}
}

// WithTimeout derives a context that expires after d. A non-positive d
// falls back to [DefaultTimeout]. The caller must read the response body
// before calling cancel.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

// URLEncode percent-encodes a string for use in URLs.
// This is a convenience wrapper around [url.QueryEscape].
func URLEncode(s string) string { return url.QueryEscape(s) }
