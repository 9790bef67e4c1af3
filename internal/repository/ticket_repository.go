package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// TicketFilter captures search parameters. TenantID is mandatory.
type TicketFilter struct {
	TenantID            int64
	RequesterID         *int64
	CurrentTargetUserID *int64
	StatusIDs           []int64
	Priorities          []domain.TicketPriority
	SearchTerm          *string
	CreatedFrom         *time.Time
	CreatedTo           *time.Time
	Limit               int
	Offset              int
	// AfterID switches to keyset paging in id order; Offset is ignored.
	AfterID             *int64
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// UpdateWorkflow writes the workflow fields and bumps Version. It returns
	// ErrVersionConflict when the stored version differs from expectedVersion.
	UpdateWorkflow(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) error
	GetByID(ctx context.Context, tenantID, id int64) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	db Querier
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db Querier) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, tenant_id, custom_id, title, description, status_id, current_target_user_id,
               reviewer_id, requester_id, priority, is_private, created_at, updated_at, accepted_at,
               due_at, completed_at, canceled_at, rejected_at, version`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (tenant_id, custom_id, title, description, status_id, current_target_user_id,
            reviewer_id, requester_id, priority, is_private, created_at, updated_at, accepted_at, due_at, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,1)
        RETURNING id, version`
	err := r.db.QueryRow(ctx, query,
		ticket.TenantID,
		ticket.CustomID,
		ticket.Title,
		ticket.Description,
		ticket.StatusID,
		ticket.CurrentTargetUserID,
		ticket.ReviewerID,
		ticket.RequesterID,
		string(ticket.Priority),
		ticket.IsPrivate,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.AcceptedAt,
		ticket.DueAt,
	).Scan(&ticket.ID, &ticket.Version)
	return mapWriteError(err)
}

func (r *ticketRepository) UpdateWorkflow(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) error {
	const query = `
        UPDATE tickets SET status_id=$1, current_target_user_id=$2, reviewer_id=$3, accepted_at=$4,
            completed_at=$5, canceled_at=$6, rejected_at=$7, updated_at=$8, version=version+1
        WHERE id=$9 AND tenant_id=$10 AND version=$11
        RETURNING version`
	err := r.db.QueryRow(ctx, query,
		ticket.StatusID,
		ticket.CurrentTargetUserID,
		ticket.ReviewerID,
		ticket.AcceptedAt,
		ticket.CompletedAt,
		ticket.CanceledAt,
		ticket.RejectedAt,
		ticket.UpdatedAt,
		ticket.ID,
		ticket.TenantID,
		expectedVersion,
	).Scan(&ticket.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVersionConflict
	}
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, tenantID, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 AND tenant_id=$2`
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, id, tenantID))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"tenant_id=$1"}
	args := []any{filter.TenantID}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.CurrentTargetUserID != nil {
		args = append(args, *filter.CurrentTargetUserID)
		clauses = append(clauses, fmt.Sprintf("current_target_user_id=$%d", len(args)))
	}
	if len(filter.StatusIDs) > 0 {
		args = append(args, filter.StatusIDs)
		clauses = append(clauses, fmt.Sprintf("status_id = ANY($%d)", len(args)))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, string(pr))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	page := fmt.Sprintf("ORDER BY updated_at DESC, id DESC LIMIT %d OFFSET %d", limit, offset)
	if filter.AfterID != nil {
		args = append(args, *filter.AfterID)
		clauses = append(clauses, fmt.Sprintf("id > $%d", len(args)))
		page = fmt.Sprintf("ORDER BY id LIMIT %d", limit)
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s %s`,
		ticketColumns, strings.Join(clauses, " AND "), page)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	var priority string
	if err := row.Scan(
		&ticket.ID,
		&ticket.TenantID,
		&ticket.CustomID,
		&ticket.Title,
		&ticket.Description,
		&ticket.StatusID,
		&ticket.CurrentTargetUserID,
		&ticket.ReviewerID,
		&ticket.RequesterID,
		&priority,
		&ticket.IsPrivate,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.AcceptedAt,
		&ticket.DueAt,
		&ticket.CompletedAt,
		&ticket.CanceledAt,
		&ticket.RejectedAt,
		&ticket.Version,
	); err != nil {
		return nil, err
	}
	ticket.Priority = domain.TicketPriority(priority)
	return &ticket, nil
}
