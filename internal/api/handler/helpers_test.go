package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"

	mw "github.com/edvin/backupvault/internal/api/middleware"
)

const (
	testUserID   = "7d1d4a3e-2f4b-4c1a-9f5e-8b2c3d4e5f60"
	testWSID     = "0b0f6a1c-3c7a-4b5e-8f41-2d9a1e6c7b10"
	testConfigID = "5e8a2d44-91c3-4f0a-b6d7-3c2e1f0a9b88"
	testBackupID = "c3b1a2d4-5e6f-4a7b-8c9d-0e1f2a3b4c5d"
)

// newRequest creates a new HTTP request with an optional JSON body.
func newRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// newRequestRaw creates a new HTTP request with a raw string body.
func newRequestRaw(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// withChiURLParam adds a chi URL parameter to the request context.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// withUser marks the request as authenticated.
func withUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(mw.WithUserID(r.Context(), userID))
}

// decodeErrorResponse parses the JSON error response body into a map.
func decodeErrorResponse(rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	return body
}
