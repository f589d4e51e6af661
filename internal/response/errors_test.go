package response

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeInternal, http.StatusInternalServerError},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, StatusFor(tt.code))
		})
	}
}

func TestInternalErrorIsSanitized(t *testing.T) {
	cause := errors.New("pq: relation \"chat_rooms\" does not exist")
	appErr := NewInternalError("create room", cause)

	assert.Equal(t, InternalMessage, appErr.PublicMessage())
	assert.ErrorIs(t, appErr, cause)
	assert.Contains(t, appErr.Error(), "does not exist")
}

func TestAsAppError(t *testing.T) {
	assert.Nil(t, AsAppError(nil))

	forbidden := NewForbiddenError("nope")
	wrapped := fmt.Errorf("send: %w", forbidden)
	got := AsAppError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, ErrCodeForbidden, got.Code)
	assert.Equal(t, "nope", got.PublicMessage())

	plain := AsAppError(errors.New("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, http.StatusInternalServerError, plain.Status())
}
