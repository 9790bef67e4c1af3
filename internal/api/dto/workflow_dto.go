package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// CreateColumnRequest payload.
type CreateColumnRequest struct {
	Name          string `json:"name" validate:"required,max=100"`
	IsDisableable bool   `json:"is_disableable"`
}

// SetColumnActiveRequest toggles a column.
type SetColumnActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// CreateStatusRequest payload.
type CreateStatusRequest struct {
	ColumnID int64  `json:"column_id" validate:"required,gt=0"`
	Key      string `json:"key" validate:"required,max=64"`
	Name     string `json:"name" validate:"required,max=100"`
	Role     string `json:"role" validate:"omitempty,oneof=initial in_progress completed canceled rejected"`
}

// RenameStatusRequest payload. The key is immutable.
type RenameStatusRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// CreateActionRequest payload. A missing to_status_id makes a same-status
// action.
type CreateActionRequest struct {
	FromStatusID int64  `json:"from_status_id" validate:"required,gt=0"`
	ToStatusID   *int64 `json:"to_status_id" validate:"omitempty,gt=0"`
	Title        string `json:"title" validate:"required,max=100"`
	Key          string `json:"key" validate:"max=64"`
}

// ColumnResponse is a column with its statuses.
type ColumnResponse struct {
	ID            int64            `json:"id"`
	Name          string           `json:"name"`
	Index         int              `json:"index"`
	IsDefault     bool             `json:"is_default"`
	IsDisableable bool             `json:"is_disableable"`
	IsActive      bool             `json:"is_active"`
	Statuses      []StatusResponse `json:"statuses,omitempty"`
}

// StatusResponse describes a workflow node.
type StatusResponse struct {
	ID        int64  `json:"id"`
	Key       string `json:"key"`
	Name      string `json:"name"`
	ColumnID  int64  `json:"column_id"`
	IsDefault bool   `json:"is_default"`
	Role      string `json:"role,omitempty"`
}

// ActionResponse describes a workflow edge.
type ActionResponse struct {
	ID           int64     `json:"id"`
	FromStatusID int64     `json:"from_status_id"`
	ToStatusID   int64     `json:"to_status_id"`
	SameStatus   bool      `json:"same_status"`
	Title        string    `json:"title"`
	Key          string    `json:"key,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewColumnResponse maps a column and its statuses.
func NewColumnResponse(col domain.StatusColumn, statuses []domain.TicketStatus) ColumnResponse {
	resp := ColumnResponse{
		ID:            col.ID,
		Name:          col.Name,
		Index:         col.Index,
		IsDefault:     col.IsDefault,
		IsDisableable: col.IsDisableable,
		IsActive:      col.IsActive,
	}
	for _, status := range statuses {
		resp.Statuses = append(resp.Statuses, NewStatusResponse(status))
	}
	return resp
}

// NewStatusResponse maps a status, reporting its effective role.
func NewStatusResponse(s domain.TicketStatus) StatusResponse {
	return StatusResponse{
		ID:        s.ID,
		Key:       s.Key,
		Name:      s.Name,
		ColumnID:  s.StatusColumnID,
		IsDefault: s.IsDefault,
		Role:      string(s.EffectiveRole()),
	}
}

// NewActionResponse maps an action.
func NewActionResponse(a domain.StatusAction) ActionResponse {
	return ActionResponse{
		ID:           a.ID,
		FromStatusID: a.FromStatusID,
		ToStatusID:   a.TargetStatusID(),
		SameStatus:   a.ToStatusID == nil,
		Title:        a.Title,
		Key:          a.Key,
		CreatedAt:    a.CreatedAt,
	}
}
