package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// APIError is an upstream error response (status >= 400).
type APIError struct {
	StatusCode int
	Status     string

	// Message, Code and Details are extracted from a JSON error body when present.
	Message string
	Code    string
	Details any

	CorrelationID string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("api error: status %d", e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Code != "" {
		msg += " (code: " + e.Code + ")"
	}
	return msg
}

func (e *APIError) Retryable() bool {
	return IsRetryableStatus(e.StatusCode)
}

// TransportError is a failure before any response was received
// (connection refused, DNS failure, reset connections).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Retryable() bool {
	return true
}

// TimeoutError is returned when a single attempt exceeded its timeout.
type TimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out after %s", e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

func (e *TimeoutError) Retryable() bool {
	return true
}

func parseErrorResponse(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode:    resp.StatusCode,
		Status:        statusText(resp),
		CorrelationID: correlationFromResponse(resp),
	}

	var fields map[string]any
	if json.Unmarshal(body, &fields) == nil {
		apiErr.Message = firstString(fields, "message", "error")
		if code, ok := fields["code"]; ok && code != nil {
			apiErr.Code = fmt.Sprint(code)
		}
		apiErr.Details = fields["details"]
		if cid, ok := fields["correlation_id"].(string); ok && cid != "" {
			apiErr.CorrelationID = cid
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = apiErr.Status
	}
	return apiErr
}

func firstString(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := fields[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
