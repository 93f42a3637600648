// Package testutil holds request and response helpers shared by handler
// tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"smartlibrary/internal/auth"
)

// TestSecret signs tokens in tests.
const TestSecret = "test-secret"

// GenerateAdminToken returns a valid admin token for a gate built with
// TestSecret.
func GenerateAdminToken() string {
	token, _ := auth.GenerateToken([]byte(TestSecret), time.Now(), time.Hour)
	return token
}

// GenerateExpiredToken returns an admin token that expired an hour ago.
func GenerateExpiredToken() string {
	token, _ := auth.GenerateToken([]byte(TestSecret), time.Now().Add(-2*time.Hour), time.Hour)
	return token
}

// NewRequest creates a new HTTP request for testing. A non-nil body is
// encoded as JSON, except []byte and string which are sent as is.
func NewRequest(method, path string, body any) *http.Request {
	var bodyBytes []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		bodyBytes = b
	case string:
		bodyBytes = []byte(b)
	default:
		bodyBytes, _ = json.Marshal(b)
	}
	if bodyBytes == nil {
		return httptest.NewRequest(method, path, nil)
	}
	r := httptest.NewRequest(method, path, bytes.NewReader(bodyBytes))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// NewRequestWithAuth creates a new HTTP request with a bearer token.
func NewRequestWithAuth(method, path string, body any, token string) *http.Request {
	r := NewRequest(method, path, body)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

// RecordResponse is a decoded JSON envelope response.
type RecordResponse struct {
	Code   int
	Header http.Header
	Raw    string
	Body   map[string]any
}

// RecordHTTPResponse decodes the recorded response.
func RecordHTTPResponse(w *httptest.ResponseRecorder) RecordResponse {
	result := w.Result()
	defer result.Body.Close()

	bodyBytes, _ := io.ReadAll(result.Body)

	var bodyMap map[string]any
	if len(bodyBytes) > 0 {
		_ = json.Unmarshal(bodyBytes, &bodyMap)
	}
	return RecordResponse{
		Code:   result.StatusCode,
		Header: result.Header,
		Raw:    string(bodyBytes),
		Body:   bodyMap,
	}
}

// Data returns the "data" object of a success envelope.
func (r RecordResponse) Data() map[string]any {
	d, _ := r.Body["data"].(map[string]any)
	return d
}

// ErrorCode returns the "error.code" of an error envelope.
func (r RecordResponse) ErrorCode() string {
	e, _ := r.Body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}
