package domain

import (
	"time"

	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// IsValid reports whether p is a known priority.
func (p TicketPriority) IsValid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the workflow subject.
type Ticket struct {
	ID                  int64
	TenantID            int64
	CustomID            string
	Title               string
	Description         string
	StatusID            int64
	CurrentTargetUserID *int64
	ReviewerID          *int64
	RequesterID         int64
	Priority            TicketPriority
	IsPrivate           bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
	AcceptedAt          *time.Time
	DueAt               *time.Time
	CompletedAt         *time.Time
	CanceledAt          *time.Time
	RejectedAt          *time.Time
	Version             int64
}

// Clone returns a deep copy so callers can mutate without touching the
// original.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.CurrentTargetUserID = cloneInt64(t.CurrentTargetUserID)
	c.ReviewerID = cloneInt64(t.ReviewerID)
	c.AcceptedAt = cloneTime(t.AcceptedAt)
	c.DueAt = cloneTime(t.DueAt)
	c.CompletedAt = cloneTime(t.CompletedAt)
	c.CanceledAt = cloneTime(t.CanceledAt)
	c.RejectedAt = cloneTime(t.RejectedAt)
	return &c
}

// TerminalRole reports which terminal field is set, if any.
func (t *Ticket) TerminalRole() StatusRole {
	switch {
	case t.CompletedAt != nil:
		return RoleCompleted
	case t.CanceledAt != nil:
		return RoleCanceled
	case t.RejectedAt != nil:
		return RoleRejected
	}
	return RoleNone
}

// ApplyRole updates lifecycle timestamps for entering a status with the given
// role. A ticket reaches exactly one terminal outcome.
func (t *Ticket) ApplyRole(role StatusRole, now time.Time) error {
	if role.IsTerminal() {
		current := t.TerminalRole()
		if current != RoleNone && current != role {
			return apperrors.NewTerminalStateConflict(string(current), string(role))
		}
		if current == role {
			return nil
		}
	}
	switch role {
	case RoleInProgress:
		if t.AcceptedAt == nil {
			t.AcceptedAt = &now
		}
	case RoleCompleted:
		t.CompletedAt = &now
	case RoleCanceled:
		t.CanceledAt = &now
	case RoleRejected:
		t.RejectedAt = &now
	}
	return nil
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
