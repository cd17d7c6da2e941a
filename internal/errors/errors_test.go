package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/plus-me/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := ValidationError("invalid input")

	assert.Equal(t, TypeValidation, err.Type)
	assert.Equal(t, "invalid input", err.Message)
	assert.Nil(t, err.Cause)
	assert.NotNil(t, err.Context)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
	assert.Contains(t, err.Error(), "validation")
	assert.Contains(t, err.Error(), "invalid input")
}

func TestPermissionError(t *testing.T) {
	err := PermissionError("not enough reputation")

	assert.Equal(t, TypePermission, err.Type)
	assert.Equal(t, http.StatusForbidden, err.HTTPStatus())
	assert.Contains(t, err.Error(), "permission")
	assert.Contains(t, err.Error(), "not enough reputation")
}

func TestNotFoundError(t *testing.T) {
	err := NotFoundError("question not found")

	assert.Equal(t, TypeNotFound, err.Type)
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus())
	assert.Contains(t, err.Error(), "not_found")
}

func TestRateLimitedError(t *testing.T) {
	err := RateLimitedError("too many votes")

	assert.Equal(t, TypeRateLimited, err.Type)
	assert.Equal(t, http.StatusTooManyRequests, err.HTTPStatus())
}

func TestInternalError(t *testing.T) {
	cause := fmt.Errorf("database connection failed")
	err := InternalError("failed to save vote", cause)

	assert.Equal(t, TypeInternal, err.Type)
	assert.Equal(t, cause, err.Cause)
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus())
	assert.Contains(t, err.Error(), "database connection failed")
}

func TestInternalErrorWithoutCause(t *testing.T) {
	err := InternalError("something went wrong", nil)

	assert.Nil(t, err.Cause)
	assert.NotContains(t, err.Error(), "<nil>")
}

func TestWithContextChaining(t *testing.T) {
	err := ValidationError("invalid input").
		WithContext("user_id", "123").
		WithContext("question_id", "q-456")

	assert.Len(t, err.Context, 2)
	assert.Equal(t, "123", err.Context["user_id"])
	assert.Equal(t, "q-456", err.Context["question_id"])
}

func TestWithContextNilMap(t *testing.T) {
	err := &Error{
		Type:    TypeValidation,
		Message: "test",
		Context: nil,
	}

	err = err.WithContext("key", "value")

	assert.NotNil(t, err.Context)
	assert.Equal(t, "value", err.Context["key"])
}

func TestToResponse(t *testing.T) {
	err := PermissionError("question is already closed").
		WithContext("question_id", "abc")

	resp := err.ToResponse()

	assert.Equal(t, "question is already closed", resp.Error)
	assert.Equal(t, TypePermission, resp.Type)
	assert.Equal(t, "abc", resp.Context["question_id"])
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := InternalError("wrapped", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestErrorsAs(t *testing.T) {
	err := ValidationError("test")

	var target *Error
	require.True(t, errors.As(err, &target))
	assert.Equal(t, TypeValidation, target.Type)
}

func TestAsStructuredErrorWithStructuredError(t *testing.T) {
	original := ValidationError("original")
	result := AsStructuredError(original)

	assert.Equal(t, original, result)
}

func TestAsStructuredErrorWithStandardError(t *testing.T) {
	original := fmt.Errorf("standard error")
	result := AsStructuredError(original)

	assert.Equal(t, TypeInternal, result.Type)
	assert.Equal(t, "internal server error", result.Message)
	assert.Equal(t, original, result.Cause)
}

func TestFromDomain(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantType   ErrorType
		wantStatus int
	}{
		{"question not found", domain.ErrQuestionNotFound, TypeNotFound, http.StatusNotFound},
		{"user not found", domain.ErrUserNotFound, TypeNotFound, http.StatusNotFound},
		{"tag not found", domain.ErrTagNotFound, TypeNotFound, http.StatusNotFound},
		{"closed question", domain.ErrQuestionClosed, TypePermission, http.StatusForbidden},
		{"insufficient reputation", domain.ErrInsufficientReputation, TypePermission, http.StatusForbidden},
		{"not owner", domain.ErrNotOwner, TypePermission, http.StatusForbidden},
		{"rate limited", domain.ErrRateLimited, TypeRateLimited, http.StatusTooManyRequests},
		{"unknown", fmt.Errorf("boom"), TypeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			structured := FromDomain(tt.err)
			assert.Equal(t, tt.wantType, structured.Type)
			assert.Equal(t, tt.wantStatus, structured.HTTPStatus())
		})
	}
}

func TestFromDomainWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("loading question: %w", domain.ErrQuestionNotFound)
	assert.Equal(t, TypeNotFound, FromDomain(wrapped).Type)
}
