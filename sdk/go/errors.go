package gatepass

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors returned before any request is made.
var (
	// ErrNoSubject is returned when a check is attempted without a subject id.
	ErrNoSubject = errors.New("gatepass: no subject id provided")

	// ErrNoResource is returned when a check is attempted without a resource URL.
	ErrNoResource = errors.New("gatepass: no resource url provided")
)

// APIError is a non-2xx response from the Gatepass API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gatepass: %s: %s (HTTP %d)", e.Code, e.Message, e.StatusCode)
}

// errorEnvelope matches the {"error":{"code","message"}} body the API
// wraps failures in.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// parseAPIError turns a failed response into an *APIError. A body that
// is not the standard envelope, from an intercepting proxy for example,
// falls back to code "unknown" with the raw body as the message.
func parseAPIError(status int, body []byte) error {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Code != "" {
		return &APIError{StatusCode: status, Code: env.Error.Code, Message: env.Error.Message}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Code: "unknown", Message: msg}
}

// AsAPIError unwraps err as an *APIError so callers can branch on the
// status and code.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
