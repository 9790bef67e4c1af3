package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

func TestTicket_ApplyRole(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	ticket := &Ticket{CreatedAt: t0}
	require.NoError(t, ticket.ApplyRole(RoleInProgress, t0))
	require.NoError(t, ticket.ApplyRole(RoleInProgress, t1))
	require.NotNil(t, ticket.AcceptedAt)
	assert.Equal(t, t0, *ticket.AcceptedAt, "accepted_at is set once")

	require.NoError(t, ticket.ApplyRole(RoleCompleted, t1))
	assert.Equal(t, RoleCompleted, ticket.TerminalRole())

	err := ticket.ApplyRole(RoleCanceled, t1)
	assert.True(t, errors.Is(err, apperrors.ErrTerminalStateConflict))
	assert.Nil(t, ticket.CanceledAt)

	require.NoError(t, ticket.ApplyRole(RoleCompleted, t1.Add(time.Minute)), "re-entering the same terminal role is allowed")
	assert.Equal(t, t1, *ticket.CompletedAt)
}

func TestTicket_ApplyRoleIgnoresPlainStatuses(t *testing.T) {
	ticket := &Ticket{}
	require.NoError(t, ticket.ApplyRole(RoleNone, time.Now()))
	require.NoError(t, ticket.ApplyRole(RoleInitial, time.Now()))
	assert.Nil(t, ticket.AcceptedAt)
	assert.Equal(t, RoleNone, ticket.TerminalRole())
}

func TestTicket_CloneIsDeep(t *testing.T) {
	user := int64(7)
	now := time.Now()
	orig := &Ticket{CurrentTargetUserID: &user, AcceptedAt: &now}
	c := orig.Clone()
	*c.CurrentTargetUserID = 8
	*c.AcceptedAt = now.Add(time.Hour)

	assert.Equal(t, int64(7), *orig.CurrentTargetUserID)
	assert.Equal(t, now, *orig.AcceptedAt)
}
