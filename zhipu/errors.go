package zhipu

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/i2y/bigmodel/auth"
)

// ConfigError reports a missing or malformed API key. No request is sent
// when it is returned.
type ConfigError = auth.ConfigError

// ErrNoMessages is returned when a request has an empty conversation.
var ErrNoMessages = errors.New("zhipu: at least one message is required")

// APIError is a non-2xx response. Body holds the raw response body.
type APIError struct {
	StatusCode int
	Body       []byte

	// Code and Message are taken from the body when it has the
	// {"error": ...} shape.
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("zhipu API error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("zhipu API error (status %d): %s", e.StatusCode, e.Message)
}

// newAPIError accepts both {"error":"text"} and
// {"error":{"code":"1002","message":"text"}} bodies.
func newAPIError(statusCode int, body []byte) *APIError {
	e := &APIError{StatusCode: statusCode, Body: body}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Error) > 0 {
		var text string
		var detail struct {
			Code    json.RawMessage `json:"code"`
			Message string          `json:"message"`
		}
		switch {
		case json.Unmarshal(envelope.Error, &text) == nil:
			e.Message = text
		case json.Unmarshal(envelope.Error, &detail) == nil:
			e.Code = strings.Trim(string(detail.Code), `"`)
			e.Message = detail.Message
		}
	}

	if e.Message == "" {
		if len(body) > 0 && !json.Valid(body) {
			e.Message = strings.TrimSpace(string(body))
		} else {
			e.Message = http.StatusText(statusCode)
		}
	}
	return e
}

// NetworkError is a transport failure before or during an exchange.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("zhipu: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
