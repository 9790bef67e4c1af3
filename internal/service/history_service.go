package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/blake2b"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

// HistoryRecorder appends audit entries and checks the trail for tampering.
type HistoryRecorder struct {
	store repository.Store
	now   func() time.Time
}

// NewHistoryRecorder creates the recorder. Reads go through store; writes use
// the repository handed to Record so they join the caller's transaction.
func NewHistoryRecorder(store repository.Store, now func() time.Time) *HistoryRecorder {
	if now == nil {
		now = time.Now
	}
	return &HistoryRecorder{store: store, now: now}
}

// Record appends entry with the next sequence number and its chained digest.
func (h *HistoryRecorder) Record(ctx context.Context, history repository.TicketUpdateRepository, entry *domain.TicketUpdate) error {
	last, err := history.Last(ctx, entry.TicketID)
	if err != nil {
		return fmt.Errorf("load last history entry: %w", err)
	}
	var prev []byte
	entry.Sequence = 1
	if last != nil {
		entry.Sequence = last.Sequence + 1
		prev = last.Digest
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = h.now()
	}
	// postgres keeps microseconds; the digest must survive a round trip
	entry.CreatedAt = entry.CreatedAt.UTC().Truncate(time.Microsecond)
	entry.Digest = chainDigest(prev, *entry)
	return history.Append(ctx, entry)
}

// RecentStatusChangeTimestamp returns when the ticket last entered a status,
// or nil when no such entry exists.
func (h *HistoryRecorder) RecentStatusChangeTimestamp(ctx context.Context, history repository.TicketUpdateRepository, ticketID int64) (*time.Time, error) {
	entry, err := history.LatestStatusEntry(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	at := entry.CreatedAt
	return &at, nil
}

// List returns the ticket's history ordered by sequence.
func (h *HistoryRecorder) List(ctx context.Context, tenantID, ticketID int64) ([]domain.TicketUpdate, error) {
	repos := h.store.Repos()
	if _, err := loadTicket(ctx, repos, tenantID, ticketID); err != nil {
		return nil, err
	}
	return repos.History.ListByTicket(ctx, ticketID)
}

// Verify recomputes the digest chain and reports the first broken link.
func (h *HistoryRecorder) Verify(ctx context.Context, tenantID, ticketID int64) error {
	entries, err := h.List(ctx, tenantID, ticketID)
	if err != nil {
		return err
	}
	var prev []byte
	for i, entry := range entries {
		if entry.Sequence != int64(i+1) {
			return apperrors.NewHistoryIntegrity(ticketID, entry.Sequence, "sequence gap")
		}
		if !bytes.Equal(chainDigest(prev, entry), entry.Digest) {
			return apperrors.NewHistoryIntegrity(ticketID, entry.Sequence, "digest mismatch")
		}
		prev = entry.Digest
	}
	return nil
}

// Reconcile reports a ticket whose current status is not backed by the
// latest status entry of its history.
func (h *HistoryRecorder) Reconcile(ctx context.Context, tenantID, ticketID int64) error {
	repos := h.store.Repos()
	ticket, err := loadTicket(ctx, repos, tenantID, ticketID)
	if err != nil {
		return err
	}
	entry, err := repos.History.LatestStatusEntry(ctx, ticketID)
	if err != nil {
		return err
	}
	if entry == nil {
		return apperrors.NewHistoryIntegrity(ticketID, 0, "no status entry")
	}
	if entry.ToStatusID == nil || *entry.ToStatusID != ticket.StatusID {
		return apperrors.NewHistoryIntegrity(ticketID, entry.Sequence, "status not recorded")
	}
	return nil
}

func chainDigest(prev []byte, entry domain.TicketUpdate) []byte {
	payload := append(append([]byte{}, prev...), entry.Canonical()...)
	sum := blake2b.Sum256(payload)
	return sum[:]
}

func loadTicket(ctx context.Context, repos repository.Repositories, tenantID, ticketID int64) (*domain.Ticket, error) {
	ticket, err := repos.Tickets.GetByID(ctx, tenantID, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewTicketNotFound(ticketID)
		}
		return nil, err
	}
	return ticket, nil
}
