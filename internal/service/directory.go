package service

import (
	"context"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

// UserDirectory resolves opaque user ids to tenancy and department.
type UserDirectory interface {
	// Lookup returns the known users among ids. A user registered under a
	// different tenant fails with CrossTenantReference; unknown ids are
	// simply absent from the result.
	Lookup(ctx context.Context, tenantID int64, ids []int64) (map[int64]domain.DirectoryUser, error)
}

type directory struct {
	repo repository.DirectoryRepository
}

// NewUserDirectory wraps a directory repository.
func NewUserDirectory(repo repository.DirectoryRepository) UserDirectory {
	return &directory{repo: repo}
}

func (d *directory) Lookup(ctx context.Context, tenantID int64, ids []int64) (map[int64]domain.DirectoryUser, error) {
	if len(ids) == 0 {
		return map[int64]domain.DirectoryUser{}, nil
	}
	users, err := d.repo.Lookup(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if user, ok := users[id]; ok && user.TenantID != tenantID {
			return nil, apperrors.NewCrossTenantReference("user", id)
		}
	}
	return users, nil
}

// departmentsOf maps user ids to their department, skipping users without one.
func departmentsOf(users map[int64]domain.DirectoryUser) map[int64]int64 {
	out := make(map[int64]int64, len(users))
	for id, user := range users {
		if user.DepartmentID != nil {
			out[id] = *user.DepartmentID
		}
	}
	return out
}

func departmentOf(users map[int64]domain.DirectoryUser, userID *int64) *int64 {
	if userID == nil {
		return nil
	}
	user, ok := users[*userID]
	if !ok || user.DepartmentID == nil {
		return nil
	}
	dept := *user.DepartmentID
	return &dept
}
