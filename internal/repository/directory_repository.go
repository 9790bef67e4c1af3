package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// DirectoryRepository reads the local mirror of the identity directory.
type DirectoryRepository interface {
	// Lookup returns the users found among ids regardless of tenant; callers
	// compare TenantID themselves.
	Lookup(ctx context.Context, ids []int64) (map[int64]domain.DirectoryUser, error)
	Upsert(ctx context.Context, user domain.DirectoryUser) error
}

type directoryRepository struct {
	db Querier
}

// NewDirectoryRepository returns a Postgres-backed implementation.
func NewDirectoryRepository(db Querier) DirectoryRepository {
	return &directoryRepository{db: db}
}

func (r *directoryRepository) Lookup(ctx context.Context, ids []int64) (map[int64]domain.DirectoryUser, error) {
	const query = `
        SELECT id, tenant_id, department_id, display_name
        FROM directory_users WHERE id = ANY($1)`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64]domain.DirectoryUser, len(ids))
	for rows.Next() {
		var user domain.DirectoryUser
		if err := rows.Scan(&user.ID, &user.TenantID, &user.DepartmentID, &user.DisplayName); err != nil {
			return nil, err
		}
		result[user.ID] = user
	}
	return result, rows.Err()
}

func (r *directoryRepository) Upsert(ctx context.Context, user domain.DirectoryUser) error {
	const query = `
        INSERT INTO directory_users (id, tenant_id, department_id, display_name)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (id) DO UPDATE SET tenant_id=EXCLUDED.tenant_id,
            department_id=EXCLUDED.department_id, display_name=EXCLUDED.display_name`
	_, err := r.db.Exec(ctx, query, user.ID, user.TenantID, user.DepartmentID, user.DisplayName)
	return err
}
