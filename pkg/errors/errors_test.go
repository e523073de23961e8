package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{NotFound("missing"), http.StatusNotFound},
		{Unauthorized("nope"), http.StatusUnauthorized},
		{Forbidden("pending"), http.StatusForbidden},
		{Conflict("dup"), http.StatusConflict},
		{Internal(fmt.Errorf("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.HTTPStatus(), tt.err.Message)
	}
}

func TestAsUnwrapsChain(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NotFound("Consultation not found"))

	appErr, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "Consultation not found", appErr.Message)
	assert.True(t, Is(wrapped, ErrNotFound))
	assert.False(t, Is(wrapped, ErrConflict))

	_, ok = As(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestInternalHidesCause(t *testing.T) {
	err := Internal(fmt.Errorf("connection reset"))
	assert.Equal(t, "internal server error", err.Message)
	assert.Contains(t, err.Error(), "connection reset")
}
