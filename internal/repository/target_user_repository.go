package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// TargetUserRepository stores assignee chains.
type TargetUserRepository interface {
	// ReplaceChain deletes every row of the ticket and inserts chain.
	ReplaceChain(ctx context.Context, ticketID int64, chain domain.AssignmentChain) error
	ListByTicket(ctx context.Context, ticketID int64) (domain.AssignmentChain, error)
	ListByTickets(ctx context.Context, ticketIDs []int64) (map[int64]domain.AssignmentChain, error)
}

type targetUserRepository struct {
	db Querier
}

// NewTargetUserRepository builds repository.
func NewTargetUserRepository(db Querier) TargetUserRepository {
	return &targetUserRepository{db: db}
}

func (r *targetUserRepository) ReplaceChain(ctx context.Context, ticketID int64, chain domain.AssignmentChain) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM ticket_target_users WHERE ticket_id=$1`, ticketID); err != nil {
		return err
	}
	const insert = `
        INSERT INTO ticket_target_users (ticket_id, user_id, sort_order, consumed_at)
        VALUES ($1,$2,$3,$4)`
	for _, entry := range chain {
		if _, err := r.db.Exec(ctx, insert, ticketID, entry.UserID, entry.Order, entry.ConsumedAt); err != nil {
			return mapWriteError(err)
		}
	}
	return nil
}

func (r *targetUserRepository) ListByTicket(ctx context.Context, ticketID int64) (domain.AssignmentChain, error) {
	chains, err := r.ListByTickets(ctx, []int64{ticketID})
	if err != nil {
		return nil, err
	}
	return chains[ticketID], nil
}

func (r *targetUserRepository) ListByTickets(ctx context.Context, ticketIDs []int64) (map[int64]domain.AssignmentChain, error) {
	const query = `
        SELECT ticket_id, user_id, sort_order, consumed_at
        FROM ticket_target_users WHERE ticket_id = ANY($1)
        ORDER BY ticket_id, sort_order ASC`
	rows, err := r.db.Query(ctx, query, ticketIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64]domain.AssignmentChain, len(ticketIDs))
	for rows.Next() {
		var entry domain.TicketTargetUser
		if err := rows.Scan(&entry.TicketID, &entry.UserID, &entry.Order, &entry.ConsumedAt); err != nil {
			return nil, err
		}
		result[entry.TicketID] = append(result[entry.TicketID], entry)
	}
	return result, rows.Err()
}
