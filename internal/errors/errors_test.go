package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := Forbidden("librarian role required")

	assert.True(t, Is(err, ErrForbidden))
	assert.False(t, Is(err, ErrUnauthorized))
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, CodeBackend, "list books")

	assert.Equal(t, "list books: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrBackend)
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("service: %w", NotFound("task not found"))

	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
	assert.Equal(t, CodeInternal, CodeOf(fmt.Errorf("plain")))
	assert.Equal(t, "task not found", MessageOf(wrapped))
	assert.Equal(t, "plain", MessageOf(fmt.Errorf("plain")))
}

func TestCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Code
	}{
		{http.StatusUnauthorized, CodeUnauthorized},
		{http.StatusForbidden, CodeForbidden},
		{http.StatusNotFound, CodeNotFound},
		{http.StatusConflict, CodeConflict},
		{http.StatusUnprocessableEntity, CodeValidation},
		{http.StatusServiceUnavailable, CodeBackend},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CodeForStatus(tt.status), "status %d", tt.status)
	}
}

func TestCode_HTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, CodeBackend.HTTPStatus())
	assert.Equal(t, http.StatusTooManyRequests, CodeRateLimited.HTTPStatus())
	assert.Equal(t, http.StatusConflict, CodeBusy.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, Code("UNKNOWN").HTTPStatus())
}
