package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
)

// Failure categories carried by *Error. They are safe to show to users.
const (
	CategoryUnauthorized  = "unauthorized"
	CategoryRateLimited   = "rate_limited"
	CategoryNotFound      = "not_found"
	CategoryTimeout       = "timeout"
	CategoryUpstreamError = "upstream_error"
	// CategoryTooDeep means the block tree nests deeper than the exporter
	// follows.
	CategoryTooDeep = "too_deep"
)

// maxResponseBytes caps how much of a single upstream response is read.
const maxResponseBytes = 64 << 20

// Error is a sanitized upstream failure. It names the source and a coarse
// category and never carries upstream response bodies or credentials.
type Error struct {
	Source   string
	Category string
	Status   int
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s export failed: %s (status %d)", e.Source, e.Category, e.Status)
	}
	return fmt.Sprintf("%s export failed: %s", e.Source, e.Category)
}

func (e *Error) Unwrap() error { return ErrExportFailed }

// CategoryOf returns the failure category of an export error, or "" when
// err is not one.
func CategoryOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}

type apiClient struct {
	source     string
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(source, baseURL string, timeout time.Duration) *apiClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &apiClient{
		source:     source,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// do issues a request and returns the raw response body of a 2xx response.
// Every failure is returned as a sanitized *Error.
func (c *apiClient) do(ctx context.Context, method, path string, query url.Values, header http.Header, body any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", c.source, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, &Error{Source: c.source, Category: CategoryUpstreamError}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Source: c.source, Category: transportCategory(err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Source: c.source, Category: transportCategory(err)}
	}
	if resp.StatusCode >= 300 {
		return nil, &Error{Source: c.source, Category: statusCategory(resp.StatusCode, data), Status: resp.StatusCode}
	}
	return data, nil
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

// statusCategory classifies a non-2xx response. Notion reports a machine
// readable "code" which is preferred over the bare status.
func statusCategory(status int, body []byte) string {
	switch gjson.GetBytes(body, "code").String() {
	case "unauthorized", "restricted_resource":
		return CategoryUnauthorized
	case "object_not_found":
		return CategoryNotFound
	case "rate_limited":
		return CategoryRateLimited
	}

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

// decodeList decodes a JSON array of upstream objects.
func (c *apiClient) decodeList(data []byte) ([]Object, error) {
	arr := gjson.ParseBytes(data)
	if !arr.IsArray() {
		return nil, &Error{Source: c.source, Category: CategoryUpstreamError}
	}
	out := make([]Object, 0, len(arr.Array()))
	for _, item := range arr.Array() {
		obj, err := decodeObject([]byte(item.Raw))
		if err != nil {
			return nil, &Error{Source: c.source, Category: CategoryUpstreamError}
		}
		out = append(out, obj)
	}
	return out, nil
}
