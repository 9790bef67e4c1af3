package dto

import (
	"encoding/hex"
	"time"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// CreateTicketRequest payload. Chain size is checked by the engine so the
// caller gets INVALID_CHAIN_SIZE rather than a generic validation error.
type CreateTicketRequest struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Description string     `json:"description" validate:"max=10000"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	IsPrivate   bool       `json:"is_private"`
	DueAt       *time.Time `json:"due_at"`
	ReviewerID  *int64     `json:"reviewer_id" validate:"omitempty,gt=0"`
	AssigneeIDs []int64    `json:"assignee_ids" validate:"dive,gt=0"`
}

// TransitionRequest moves a ticket along an action edge.
type TransitionRequest struct {
	ToStatusID  int64  `json:"to_status_id" validate:"required,gt=0"`
	Description string `json:"description" validate:"max=2000"`
}

// ReasonRequest carries the justification of cancel, reject and correction.
type ReasonRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// CommentRequest payload.
type CommentRequest struct {
	Body string `json:"body" validate:"required,max=10000"`
}

// AssigneesRequest replaces the chain.
type AssigneesRequest struct {
	UserIDs []int64 `json:"user_ids" validate:"dive,gt=0"`
}

// TicketResponse is the ticket as exposed over HTTP.
type TicketResponse struct {
	ID                  int64      `json:"id"`
	TenantID            int64      `json:"tenant_id"`
	CustomID            string     `json:"custom_id"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	StatusID            int64      `json:"status_id"`
	CurrentTargetUserID *int64     `json:"current_target_user_id"`
	ReviewerID          *int64     `json:"reviewer_id"`
	RequesterID         int64      `json:"requester_id"`
	Priority            string     `json:"priority"`
	IsPrivate           bool       `json:"is_private"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	AcceptedAt          *time.Time `json:"accepted_at"`
	DueAt               *time.Time `json:"due_at"`
	CompletedAt         *time.Time `json:"completed_at"`
	CanceledAt          *time.Time `json:"canceled_at"`
	RejectedAt          *time.Time `json:"rejected_at"`
	Version             int64      `json:"version"`
}

// HistoryEntryResponse is one audit trail row.
type HistoryEntryResponse struct {
	Sequence                int64     `json:"sequence"`
	Action                  string    `json:"action"`
	PerformedByID           int64     `json:"performed_by_id"`
	FromStatusID            *int64    `json:"from_status_id"`
	ToStatusID              *int64    `json:"to_status_id"`
	FromUserID              *int64    `json:"from_user_id"`
	ToUserID                *int64    `json:"to_user_id"`
	FromDepartmentID        *int64    `json:"from_department_id"`
	ToDepartmentID          *int64    `json:"to_department_id"`
	Description             *string   `json:"description"`
	TimeSecondsInLastStatus *int64    `json:"time_seconds_in_last_status"`
	CreatedAt               time.Time `json:"created_at"`
	Digest                  string    `json:"digest"`
}

// ChainEntryResponse is one step of the assignee chain.
type ChainEntryResponse struct {
	UserID     int64      `json:"user_id"`
	Order      int        `json:"order"`
	ConsumedAt *time.Time `json:"consumed_at"`
}

// ReasonResponse is a stored cancel, reject or correction reason.
type ReasonResponse struct {
	Kind        string    `json:"kind"`
	Reason      string    `json:"reason"`
	CreatedByID int64     `json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewTicketResponse maps the domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                  t.ID,
		TenantID:            t.TenantID,
		CustomID:            t.CustomID,
		Title:               t.Title,
		Description:         t.Description,
		StatusID:            t.StatusID,
		CurrentTargetUserID: t.CurrentTargetUserID,
		ReviewerID:          t.ReviewerID,
		RequesterID:         t.RequesterID,
		Priority:            string(t.Priority),
		IsPrivate:           t.IsPrivate,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
		AcceptedAt:          t.AcceptedAt,
		DueAt:               t.DueAt,
		CompletedAt:         t.CompletedAt,
		CanceledAt:          t.CanceledAt,
		RejectedAt:          t.RejectedAt,
		Version:             t.Version,
	}
}

// NewHistoryEntryResponse maps an audit row.
func NewHistoryEntryResponse(u domain.TicketUpdate) HistoryEntryResponse {
	return HistoryEntryResponse{
		Sequence:                u.Sequence,
		Action:                  string(u.Action),
		PerformedByID:           u.PerformedByID,
		FromStatusID:            u.FromStatusID,
		ToStatusID:              u.ToStatusID,
		FromUserID:              u.FromUserID,
		ToUserID:                u.ToUserID,
		FromDepartmentID:        u.FromDepartmentID,
		ToDepartmentID:          u.ToDepartmentID,
		Description:             u.Description,
		TimeSecondsInLastStatus: u.TimeSecondsInLastStatus,
		CreatedAt:               u.CreatedAt,
		Digest:                  hex.EncodeToString(u.Digest),
	}
}

// NewChainResponse maps the chain in order.
func NewChainResponse(chain domain.AssignmentChain) []ChainEntryResponse {
	out := make([]ChainEntryResponse, 0, len(chain))
	for _, entry := range chain.Sorted() {
		out = append(out, ChainEntryResponse{UserID: entry.UserID, Order: entry.Order, ConsumedAt: entry.ConsumedAt})
	}
	return out
}

// NewReasonResponse maps a reason record.
func NewReasonResponse(r domain.TicketReason) ReasonResponse {
	return ReasonResponse{Kind: string(r.Kind), Reason: r.Reason, CreatedByID: r.CreatedByID, CreatedAt: r.CreatedAt}
}
