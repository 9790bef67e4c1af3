package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// TicketUpdateRepository stores audit entries. Rows are never updated.
type TicketUpdateRepository interface {
	Append(ctx context.Context, update *domain.TicketUpdate) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketUpdate, error)
	// Last returns the entry with the highest sequence, or nil when the
	// ticket has no history.
	Last(ctx context.Context, ticketID int64) (*domain.TicketUpdate, error)
	// LatestStatusEntry returns the newest creation or status_change entry,
	// or nil when there is none.
	LatestStatusEntry(ctx context.Context, ticketID int64) (*domain.TicketUpdate, error)
}

type ticketUpdateRepository struct {
	db Querier
}

// NewTicketUpdateRepository builds repository.
func NewTicketUpdateRepository(db Querier) TicketUpdateRepository {
	return &ticketUpdateRepository{db: db}
}

const updateColumns = `id, tenant_id, ticket_id, ticket_custom_id, sequence, performed_by_id, action,
               from_status_id, to_status_id, from_user_id, to_user_id, from_department_id, to_department_id,
               description, time_seconds_in_last_status, created_at, digest`

func (r *ticketUpdateRepository) Append(ctx context.Context, update *domain.TicketUpdate) error {
	const query = `
        INSERT INTO ticket_updates (tenant_id, ticket_id, ticket_custom_id, sequence, performed_by_id, action,
            from_status_id, to_status_id, from_user_id, to_user_id, from_department_id, to_department_id,
            description, time_seconds_in_last_status, created_at, digest)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
        RETURNING id`
	err := r.db.QueryRow(ctx, query,
		update.TenantID,
		update.TicketID,
		update.TicketCustomID,
		update.Sequence,
		update.PerformedByID,
		string(update.Action),
		update.FromStatusID,
		update.ToStatusID,
		update.FromUserID,
		update.ToUserID,
		update.FromDepartmentID,
		update.ToDepartmentID,
		update.Description,
		update.TimeSecondsInLastStatus,
		update.CreatedAt,
		update.Digest,
	).Scan(&update.ID)
	return mapWriteError(err)
}

func (r *ticketUpdateRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketUpdate, error) {
	query := `SELECT ` + updateColumns + ` FROM ticket_updates WHERE ticket_id=$1 ORDER BY sequence ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketUpdate
	for rows.Next() {
		update, err := scanUpdate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *update)
	}
	return result, rows.Err()
}

func (r *ticketUpdateRepository) Last(ctx context.Context, ticketID int64) (*domain.TicketUpdate, error) {
	query := `SELECT ` + updateColumns + ` FROM ticket_updates WHERE ticket_id=$1 ORDER BY sequence DESC LIMIT 1`
	return r.single(ctx, query, ticketID)
}

func (r *ticketUpdateRepository) LatestStatusEntry(ctx context.Context, ticketID int64) (*domain.TicketUpdate, error) {
	query := `SELECT ` + updateColumns + ` FROM ticket_updates
        WHERE ticket_id=$1 AND action IN ('status_change','creation')
        ORDER BY sequence DESC LIMIT 1`
	return r.single(ctx, query, ticketID)
}

func (r *ticketUpdateRepository) single(ctx context.Context, query string, ticketID int64) (*domain.TicketUpdate, error) {
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanUpdate(rows)
}

func scanUpdate(row pgx.Row) (*domain.TicketUpdate, error) {
	var update domain.TicketUpdate
	var action string
	if err := row.Scan(
		&update.ID,
		&update.TenantID,
		&update.TicketID,
		&update.TicketCustomID,
		&update.Sequence,
		&update.PerformedByID,
		&action,
		&update.FromStatusID,
		&update.ToStatusID,
		&update.FromUserID,
		&update.ToUserID,
		&update.FromDepartmentID,
		&update.ToDepartmentID,
		&update.Description,
		&update.TimeSecondsInLastStatus,
		&update.CreatedAt,
		&update.Digest,
	); err != nil {
		return nil, err
	}
	update.Action = domain.UpdateAction(action)
	return &update, nil
}
