package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrInvalidInput, ErrUnauthorized, ErrForbidden, ErrInternal,
		ErrConflict, ErrGone, ErrServiceUnavail, ErrUpstream, ErrRateLimited,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j], "sentinels %d and %d should be distinct", i, j)
		}
	}
}

func TestAppError_ErrorString(t *testing.T) {
	withInner := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: fmt.Errorf("redis down")}
	assert.Contains(t, withInner.Error(), "redis down")

	bare := &AppError{Code: "NOT_FOUND", Message: "booking not found"}
	assert.Equal(t, "NOT_FOUND: booking not found", bare.Error())
	assert.Nil(t, bare.Unwrap())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NotFound("booking", "b-1"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"invalid input", InvalidInput("Name and phone are required"), "INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput},
		{"unauthorized", Unauthorized("login required"), "UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", Forbidden("nope"), "FORBIDDEN", http.StatusForbidden, ErrForbidden},
		{"conflict", Conflict("duplicate"), "CONFLICT", http.StatusConflict, ErrConflict},
		{"gone", Gone("expired"), "GONE", http.StatusGone, ErrGone},
		{"unavailable", ServiceUnavailable("backend down", nil), "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, ErrServiceUnavail},
		{"upstream", Upstream("store closed"), "UPSTREAM_ERROR", http.StatusBadGateway, ErrUpstream},
		{"rate limited", RateLimited("slow down"), "RATE_LIMITED", http.StatusTooManyRequests, ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.True(t, errors.Is(tt.err, tt.sentinel))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestServiceUnavailable_KeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := ServiceUnavailable("backend unreachable", cause)

	assert.True(t, errors.Is(err, ErrServiceUnavail))
	assert.True(t, errors.Is(err, cause))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Store is closed", Message(Upstream("Store is closed"), "Booking failed"))
	assert.Equal(t, "Booking failed", Message(errors.New("boom"), "Booking failed"))
	assert.Equal(t, "Booking failed", Message(&AppError{Code: "X"}, "Booking failed"))
}

func TestHTTPStatus_WrappedSentinels(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("load: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("save: %w", ErrConflict), http.StatusConflict},
		{fmt.Errorf("parse: %w", ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("call: %w", ErrUpstream), http.StatusBadGateway},
		{fmt.Errorf("call: %w", ErrServiceUnavail), http.StatusServiceUnavailable},
		{errors.New("anything else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestWrap(t *testing.T) {
	err := Wrap(ErrNotFound, "load cart")
	assert.Equal(t, "load cart: resource not found", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
}
