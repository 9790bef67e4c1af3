package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

// RetryPolicy bounds how often a mutation that lost an optimistic version
// race is replayed.
type RetryPolicy struct {
	MaxRetries int
	Base       time.Duration
}

// do runs op and replays it on StaleTicketVersion only. Every other error is
// returned as is.
func (p RetryPolicy) do(ctx context.Context, op func(ctx context.Context) error) error {
	if p.MaxRetries <= 0 {
		return op(ctx)
	}
	base := p.Base
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	backoff := retry.WithMaxRetries(uint64(p.MaxRetries), retry.NewExponential(base))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := op(ctx)
		if errors.Is(err, apperrors.ErrStaleTicketVersion) {
			return retry.RetryableError(err)
		}
		return err
	})
}
