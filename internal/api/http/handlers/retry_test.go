package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

func TestRetryPolicyReplaysStaleVersion(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, Base: time.Millisecond}

	calls := 0
	err := policy.do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return apperrors.NewStaleTicketVersion(7)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = policy.do(context.Background(), func(context.Context) error {
		calls++
		return apperrors.NewStaleTicketVersion(7)
	})
	assert.ErrorIs(t, err, apperrors.ErrStaleTicketVersion)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyPassesOtherErrors(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, Base: time.Millisecond}
	boom := errors.New("boom")

	calls := 0
	err := policy.do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)

	calls = 0
	err = RetryPolicy{}.do(context.Background(), func(context.Context) error {
		calls++
		return apperrors.NewStaleTicketVersion(1)
	})
	assert.ErrorIs(t, err, apperrors.ErrStaleTicketVersion)
	assert.Equal(t, 1, calls)
}
