package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// ReasonRepository stores cancel, reject and correction justifications.
type ReasonRepository interface {
	Create(ctx context.Context, reason *domain.TicketReason) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketReason, error)
}

type reasonRepository struct {
	db Querier
}

// NewReasonRepository builds repository.
func NewReasonRepository(db Querier) ReasonRepository {
	return &reasonRepository{db: db}
}

func (r *reasonRepository) Create(ctx context.Context, reason *domain.TicketReason) error {
	const query = `
        INSERT INTO ticket_reasons (tenant_id, ticket_id, kind, reason, created_by_id, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		reason.TenantID,
		reason.TicketID,
		string(reason.Kind),
		reason.Reason,
		reason.CreatedByID,
		reason.CreatedAt,
	).Scan(&reason.ID)
}

func (r *reasonRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketReason, error) {
	const query = `
        SELECT id, tenant_id, ticket_id, kind, reason, created_by_id, created_at
        FROM ticket_reasons WHERE ticket_id=$1 ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketReason
	for rows.Next() {
		var reason domain.TicketReason
		var kind string
		if err := rows.Scan(&reason.ID, &reason.TenantID, &reason.TicketID, &kind, &reason.Reason, &reason.CreatedByID, &reason.CreatedAt); err != nil {
			return nil, err
		}
		reason.Kind = domain.ReasonKind(kind)
		result = append(result, reason)
	}
	return result, rows.Err()
}
