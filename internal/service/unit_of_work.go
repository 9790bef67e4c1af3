package service

import (
	"context"
	"errors"

	"github.com/spec-kit/helpdesk-workflow/internal/lock"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

// ticketUnit runs one ticket mutation under the ticket lock and inside a
// single transaction.
type ticketUnit struct {
	store  repository.Store
	locker lock.TicketLocker
}

func (u ticketUnit) run(ctx context.Context, ticketID int64, fn func(ctx context.Context, repos repository.Repositories) error) error {
	if u.locker != nil {
		release, err := u.locker.Acquire(ctx, ticketID)
		if err != nil {
			if errors.Is(err, lock.ErrLockTimeout) {
				return apperrors.NewStaleTicketVersion(ticketID)
			}
			return err
		}
		defer release()
	}
	return u.store.InTx(ctx, fn)
}
