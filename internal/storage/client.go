package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	CategoryUnauthorized  = "unauthorized"
	CategoryRateLimited   = "rate_limited"
	CategoryNotFound      = "not_found"
	CategoryTimeout       = "timeout"
	CategoryUpstreamError = "upstream_error"
)

// Error is a sanitized provider failure. Response bodies and credentials
// are never included.
type Error struct {
	Provider string
	Category string
	Status   int
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s upload failed: %s (status %d)", e.Provider, e.Category, e.Status)
	}
	return fmt.Sprintf("%s upload failed: %s", e.Provider, e.Category)
}

func (e *Error) Unwrap() error { return ErrUploadFailed }

// CategoryOf returns the failure category of an upload error, or "".
func CategoryOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &http.Client{Timeout: timeout}
}

// send executes req and returns the body of a 2xx response. Failures are
// reduced to a sanitized *Error.
func send(client *http.Client, provider string, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{Provider: provider, Category: transportCategory(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{Provider: provider, Category: transportCategory(err)}
	}
	if resp.StatusCode >= 300 {
		return nil, &Error{Provider: provider, Category: statusCategory(resp.StatusCode), Status: resp.StatusCode}
	}
	return body, nil
}

func transportCategory(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTimeout
	}
	return CategoryUpstreamError
}

func statusCategory(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return CategoryUnauthorized
	case status == http.StatusNotFound:
		return CategoryNotFound
	case status == http.StatusTooManyRequests:
		return CategoryRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return CategoryTimeout
	default:
		return CategoryUpstreamError
	}
}
