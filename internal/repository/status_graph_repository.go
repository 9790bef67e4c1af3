package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// StatusGraphRepository persists columns, statuses and actions.
type StatusGraphRepository interface {
	CreateColumn(ctx context.Context, col *domain.StatusColumn) error
	UpdateColumn(ctx context.Context, col *domain.StatusColumn) error
	GetColumn(ctx context.Context, id int64) (*domain.StatusColumn, error)
	ListColumns(ctx context.Context, tenantID int64) ([]domain.StatusColumn, error)

	CreateStatus(ctx context.Context, status *domain.TicketStatus) error
	UpdateStatus(ctx context.Context, status *domain.TicketStatus) error
	GetStatus(ctx context.Context, id int64) (*domain.TicketStatus, error)
	ListStatuses(ctx context.Context, tenantID int64) ([]domain.TicketStatus, error)

	CreateAction(ctx context.Context, action *domain.StatusAction) error
	GetAction(ctx context.Context, id int64) (*domain.StatusAction, error)
	DeleteAction(ctx context.Context, tenantID, id int64) error
	ListActions(ctx context.Context, tenantID int64) ([]domain.StatusAction, error)
}

type statusGraphRepository struct {
	db Querier
}

// NewStatusGraphRepository builds the repository.
func NewStatusGraphRepository(db Querier) StatusGraphRepository {
	return &statusGraphRepository{db: db}
}

func (r *statusGraphRepository) CreateColumn(ctx context.Context, col *domain.StatusColumn) error {
	const query = `
        INSERT INTO status_columns (tenant_id, name, column_index, is_default, is_disableable, is_active)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	err := r.db.QueryRow(ctx, query,
		col.TenantID,
		col.Name,
		col.Index,
		col.IsDefault,
		col.IsDisableable,
		col.IsActive,
	).Scan(&col.ID, &col.CreatedAt)
	return mapWriteError(err)
}

func (r *statusGraphRepository) UpdateColumn(ctx context.Context, col *domain.StatusColumn) error {
	const query = `
        UPDATE status_columns SET name=$1, column_index=$2, is_active=$3
        WHERE id=$4 AND tenant_id=$5`
	cmd, err := r.db.Exec(ctx, query, col.Name, col.Index, col.IsActive, col.ID, col.TenantID)
	if err != nil {
		return mapWriteError(err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *statusGraphRepository) GetColumn(ctx context.Context, id int64) (*domain.StatusColumn, error) {
	const query = `
        SELECT id, tenant_id, name, column_index, is_default, is_disableable, is_active, created_at
        FROM status_columns WHERE id=$1`
	var col domain.StatusColumn
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&col.ID,
		&col.TenantID,
		&col.Name,
		&col.Index,
		&col.IsDefault,
		&col.IsDisableable,
		&col.IsActive,
		&col.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &col, nil
}

func (r *statusGraphRepository) ListColumns(ctx context.Context, tenantID int64) ([]domain.StatusColumn, error) {
	const query = `
        SELECT id, tenant_id, name, column_index, is_default, is_disableable, is_active, created_at
        FROM status_columns WHERE tenant_id=$1 ORDER BY column_index ASC`
	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StatusColumn
	for rows.Next() {
		var col domain.StatusColumn
		if err := rows.Scan(&col.ID, &col.TenantID, &col.Name, &col.Index, &col.IsDefault, &col.IsDisableable, &col.IsActive, &col.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, col)
	}
	return result, rows.Err()
}

func (r *statusGraphRepository) CreateStatus(ctx context.Context, status *domain.TicketStatus) error {
	const query = `
        INSERT INTO ticket_statuses (tenant_id, status_key, name, status_column_id, is_default, role)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	err := r.db.QueryRow(ctx, query,
		status.TenantID,
		status.Key,
		status.Name,
		status.StatusColumnID,
		status.IsDefault,
		string(status.Role),
	).Scan(&status.ID, &status.CreatedAt)
	return mapWriteError(err)
}

func (r *statusGraphRepository) UpdateStatus(ctx context.Context, status *domain.TicketStatus) error {
	const query = `
        UPDATE ticket_statuses SET name=$1, status_column_id=$2, role=$3
        WHERE id=$4 AND tenant_id=$5`
	cmd, err := r.db.Exec(ctx, query, status.Name, status.StatusColumnID, string(status.Role), status.ID, status.TenantID)
	if err != nil {
		return mapWriteError(err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *statusGraphRepository) GetStatus(ctx context.Context, id int64) (*domain.TicketStatus, error) {
	const query = `
        SELECT id, tenant_id, status_key, name, status_column_id, is_default, role, created_at
        FROM ticket_statuses WHERE id=$1`
	return scanStatus(r.db.QueryRow(ctx, query, id))
}

func (r *statusGraphRepository) ListStatuses(ctx context.Context, tenantID int64) ([]domain.TicketStatus, error) {
	const query = `
        SELECT id, tenant_id, status_key, name, status_column_id, is_default, role, created_at
        FROM ticket_statuses WHERE tenant_id=$1 ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketStatus
	for rows.Next() {
		status, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *status)
	}
	return result, rows.Err()
}

func (r *statusGraphRepository) CreateAction(ctx context.Context, action *domain.StatusAction) error {
	const query = `
        INSERT INTO status_actions (tenant_id, from_status_id, to_status_id, title, action_key)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	err := r.db.QueryRow(ctx, query,
		action.TenantID,
		action.FromStatusID,
		action.ToStatusID,
		action.Title,
		action.Key,
	).Scan(&action.ID, &action.CreatedAt)
	return mapWriteError(err)
}

func (r *statusGraphRepository) GetAction(ctx context.Context, id int64) (*domain.StatusAction, error) {
	const query = `
        SELECT id, tenant_id, from_status_id, to_status_id, title, action_key, created_at
        FROM status_actions WHERE id=$1`
	var action domain.StatusAction
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&action.ID,
		&action.TenantID,
		&action.FromStatusID,
		&action.ToStatusID,
		&action.Title,
		&action.Key,
		&action.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &action, nil
}

func (r *statusGraphRepository) DeleteAction(ctx context.Context, tenantID, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM status_actions WHERE id=$1 AND tenant_id=$2`, id, tenantID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *statusGraphRepository) ListActions(ctx context.Context, tenantID int64) ([]domain.StatusAction, error) {
	const query = `
        SELECT id, tenant_id, from_status_id, to_status_id, title, action_key, created_at
        FROM status_actions WHERE tenant_id=$1 ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StatusAction
	for rows.Next() {
		var action domain.StatusAction
		if err := rows.Scan(&action.ID, &action.TenantID, &action.FromStatusID, &action.ToStatusID, &action.Title, &action.Key, &action.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, action)
	}
	return result, rows.Err()
}

func scanStatus(row pgx.Row) (*domain.TicketStatus, error) {
	var status domain.TicketStatus
	var role string
	if err := row.Scan(
		&status.ID,
		&status.TenantID,
		&status.Key,
		&status.Name,
		&status.StatusColumnID,
		&status.IsDefault,
		&role,
		&status.CreatedAt,
	); err != nil {
		return nil, err
	}
	status.Role = domain.StatusRole(role)
	return &status, nil
}
