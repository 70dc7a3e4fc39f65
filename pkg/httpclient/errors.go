package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/Swiftdaops/QuickClean/pkg/errors"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 1 << 20

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an error. When the body carries a message (see ErrorMessage) it is
// kept verbatim in an AppError so it can be shown to the customer; otherwise a
// plain error wrapping the matching sentinel is returned.
//
// The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	message := ErrorMessage(bodyBytes)
	if message == "" {
		return fmt.Errorf("%s returned status %d: %w", serviceName, resp.StatusCode, sentinelFor(resp.StatusCode))
	}
	return mapDownstreamError(resp.StatusCode, message)
}

// ErrorMessage extracts a human-readable failure message from a response body.
// The backend reports failures in several shapes, all recognised here:
//
//	{"error": "Store is closed"}
//	{"error": {"code": "X", "message": "Store is closed"}}
//	{"message": "Store is closed"}
//
// A 2xx body containing one of the first two shapes is still a failure. An
// empty string means no message was found.
func ErrorMessage(body []byte) string {
	var probe struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(body, &probe) != nil {
		return ""
	}

	if len(probe.Error) > 0 && string(probe.Error) != "null" {
		var s string
		if json.Unmarshal(probe.Error, &s) == nil && strings.TrimSpace(s) != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(probe.Error, &nested) == nil && strings.TrimSpace(nested.Message) != "" {
			return nested.Message
		}
	}
	return strings.TrimSpace(probe.Message)
}

// HasErrorField reports whether a body carries a non-empty "error" field, the
// backend's way of failing inside a 2xx response.
func HasErrorField(body []byte) bool {
	var probe struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &probe) != nil {
		return false
	}
	switch strings.TrimSpace(string(probe.Error)) {
	case "", "null", "false", `""`:
		return false
	default:
		return true
	}
}

// mapDownstreamError translates a collaborator's status code into an AppError
// carrying the collaborator's own message.
func mapDownstreamError(status int, message string) error {
	switch {
	case status == http.StatusNotFound:
		return &apperrors.AppError{Code: "NOT_FOUND", Message: message, Status: status, Err: apperrors.ErrNotFound}
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return apperrors.InvalidInput(message)
	case status == http.StatusConflict:
		return apperrors.Conflict(message)
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(message)
	case status == http.StatusForbidden:
		return apperrors.Forbidden(message)
	case status == http.StatusGone:
		return apperrors.Gone(message)
	case status == http.StatusTooManyRequests:
		return apperrors.RateLimited(message)
	case status == http.StatusServiceUnavailable:
		return apperrors.ServiceUnavailable(message, nil)
	default:
		return apperrors.Upstream(message)
	}
}

func sentinelFor(status int) error {
	switch status {
	case http.StatusNotFound:
		return apperrors.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperrors.ErrInvalidInput
	case http.StatusConflict:
		return apperrors.ErrConflict
	case http.StatusUnauthorized:
		return apperrors.ErrUnauthorized
	case http.StatusForbidden:
		return apperrors.ErrForbidden
	case http.StatusGone:
		return apperrors.ErrGone
	case http.StatusTooManyRequests:
		return apperrors.ErrRateLimited
	case http.StatusServiceUnavailable:
		return apperrors.ErrServiceUnavail
	default:
		return apperrors.ErrUpstream
	}
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
