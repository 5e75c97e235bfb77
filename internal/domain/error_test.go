package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hiddenMessage = "An internal error occurred. Please try again later."

func TestError_Error(t *testing.T) {
	upstream := errors.New("dial tcp 10.0.0.5:8080: connection refused")

	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "message only",
			err:      &Error{Code: EINVALID, Message: "Discount cannot be negative"},
			expected: "Discount cannot be negative",
		},
		{
			name:     "with op",
			err:      &Error{Code: EINVALID, Op: "pricing.allocate", Message: "Discount cannot be negative"},
			expected: "pricing.allocate: Discount cannot be negative",
		},
		{
			name:     "wrapped upstream failure",
			err:      &Error{Code: EUNAVAILABLE, Op: "posapi.update_order", Message: "Order API is unreachable", Err: upstream},
			expected: "posapi.update_order: Order API is unreachable: dial tcp 10.0.0.5:8080: connection refused",
		},
		{
			name:     "wrapped without op",
			err:      &Error{Code: EUNAVAILABLE, Message: "Order API is unreachable", Err: upstream},
			expected: "Order API is unreachable: dial tcp 10.0.0.5:8080: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestConstructors(t *testing.T) {
	upstream := errors.New("order api returned 503")

	tests := []struct {
		name    string
		err     error
		code    string
		message string
		op      string
		wraps   error
	}{
		{
			name:    "not found",
			err:     NotFound("session.get", "session", "3f7c"),
			code:    ENOTFOUND,
			message: "session not found: 3f7c",
			op:      "session.get",
		},
		{
			name:    "gone",
			err:     Gone("session.get", "Session has expired"),
			code:    EGONE,
			message: "Session has expired",
			op:      "session.get",
		},
		{
			name:    "unavailable",
			err:     Unavailable(upstream, "service.CommitSession", "Order could not be queued for saving"),
			code:    EUNAVAILABLE,
			message: "Order could not be queued for saving",
			op:      "service.CommitSession",
			wraps:   upstream,
		},
		{
			name:    "invalid",
			err:     Invalid("handler.SetOrderDiscount", "Provide either amount or percent"),
			code:    EINVALID,
			message: "Provide either amount or percent",
			op:      "handler.SetOrderDiscount",
		},
		{
			name:    "conflict",
			err:     Conflict("service.Commit", "Session has already been committed"),
			code:    ECONFLICT,
			message: "Session has already been committed",
			op:      "service.Commit",
		},
		{
			name:    "rate limited",
			err:     Errorf(ERATELIMIT, "middleware.RateLimit", "Too many requests from %s", "10.0.0.9"),
			code:    ERATELIMIT,
			message: "Too many requests from 10.0.0.9",
			op:      "middleware.RateLimit",
		},
		{
			name:    "internal hides its message",
			err:     Internal(upstream, "order.commit", "failed to encode order payload"),
			code:    EINTERNAL,
			message: hiddenMessage,
			op:      "order.commit",
			wraps:   upstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ErrorCode(tt.err))
			assert.True(t, IsCode(tt.err, tt.code))
			assert.Equal(t, tt.message, ErrorMessage(tt.err))
			assert.Equal(t, tt.op, ErrorOp(tt.err))
			if tt.wraps != nil {
				assert.ErrorIs(t, tt.err, tt.wraps)
			}
		})
	}
}

func TestErrorCode_NonDomainErrors(t *testing.T) {
	assert.Empty(t, ErrorCode(nil))
	assert.Empty(t, ErrorMessage(nil))
	assert.Empty(t, ErrorOp(nil))

	plain := errors.New("json: cannot unmarshal string")
	assert.Equal(t, EINTERNAL, ErrorCode(plain))
	assert.Equal(t, hiddenMessage, ErrorMessage(plain))
	assert.Empty(t, ErrorOp(plain))
}

func TestWrapError_KeepsSentinelMatchable(t *testing.T) {
	sentinel := &Error{Code: ECONFLICT, Message: "Session has already been committed"}

	err := WrapError(sentinel, sentinel.Code, "service.SetQuantity", sentinel.Message)
	outer := fmt.Errorf("edit rejected: %w", err)

	assert.ErrorIs(t, outer, sentinel)
	assert.Equal(t, ECONFLICT, ErrorCode(outer))
	assert.Equal(t, "service.SetQuantity", ErrorOp(outer))
	assert.Nil(t, WrapError(nil, EINTERNAL, "service.SetQuantity", "unused"))
}

func TestValidationError(t *testing.T) {
	t.Run("single field", func(t *testing.T) {
		err := NewValidationError("handler.SessionID", "id", "id must be a UUID")

		assert.Equal(t, "handler.SessionID: id: id must be a UUID", err.Error())
		assert.True(t, IsValidationError(err))
		assert.Equal(t, map[string]string{"id": "id must be a UUID"}, GetValidationFields(err))
	})

	t.Run("fields accumulate", func(t *testing.T) {
		var err error
		err = AddFieldError(err, "items[0].productId", "productId is required")
		err = AddFieldError(err, "items[1].taxRate", "Tax rate cannot be negative")

		fields := GetValidationFields(err)
		require.Len(t, fields, 2)
		assert.Equal(t, "Tax rate cannot be negative", fields["items[1].taxRate"])
		assert.Equal(t, "validation failed for 2 fields", err.Error())
	})

	t.Run("domain errors are not validation errors", func(t *testing.T) {
		err := Invalid("pricing.allocate", "Discount cannot be negative")

		assert.False(t, IsValidationError(err))
		assert.Nil(t, GetValidationFields(err))
		assert.False(t, IsValidationError(nil))
	})
}
