package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

const (
	msgGeneric         = "something went wrong, please try again"
	msgNetwork         = "unable to reach server, check your connection"
	msgInvalidResponse = "invalid response from server"
	msgTimeout         = "the server took too long to respond"
)

// ErrSessionExpired is returned when the access token could not be refreshed.
// Stored credentials are gone by the time it is returned; the user has to log in again.
var ErrSessionExpired = errors.New("session expired, please log in again")

// APIError is the single error shape returned by the client for HTTP and
// network failures. StatusCode is 0 when no response was received.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// Message returns the text to show a user for err.
func Message(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSessionExpired):
		return ErrSessionExpired.Error()
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	default:
		return msgGeneric
	}
}

// newAPIError builds an APIError from a non-2xx response. The body is consumed.
func newAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return &APIError{StatusCode: resp.StatusCode, Message: messageFrom(body)}
}

// messageFrom extracts a backend-supplied message, trying the message, error
// and detail fields in that order.
func messageFrom(body []byte) string {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return msgGeneric
	}
	for _, key := range []string{"message", "error", "detail"} {
		if s, ok := fields[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return msgGeneric
}
