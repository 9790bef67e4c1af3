package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("transition: %w", NewInvalidTransition(1, 2))

	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.False(t, errors.Is(err, ErrTerminalStateConflict))
}

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"domain error passes through", NewStaleTicketVersion(3), CodeStaleTicketVersion, http.StatusConflict},
		{"wrapped domain error", fmt.Errorf("outer: %w", NewTicketNotFound(3)), CodeTicketNotFound, http.StatusNotFound},
		{"no rows", fmt.Errorf("get: %w", pgx.ErrNoRows), CodeNotFound, http.StatusNotFound},
		{"anything else", errors.New("boom"), CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDomainError(tt.err)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantStatus, got.HTTPStatus)
		})
	}
	assert.Nil(t, ToDomainError(nil))
}

func TestInternalErrorKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := NewInternalError(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}
