package domain

import (
	"strconv"
	"strings"
	"time"
)

// UpdateAction captures what kind of event a history entry records.
type UpdateAction string

const (
	UpdateActionCreation       UpdateAction = "creation"
	UpdateActionStatusChange   UpdateAction = "status_change"
	UpdateActionCompletion     UpdateAction = "completion"
	UpdateActionUpdate         UpdateAction = "update"
	UpdateActionCancellation   UpdateAction = "cancellation"
	UpdateActionAssigneeChange UpdateAction = "assignee_change"
)

// EntersStatus reports whether the action marks the ticket entering a status,
// which resets the dwell time baseline.
func (a UpdateAction) EntersStatus() bool {
	return a == UpdateActionStatusChange || a == UpdateActionCreation
}

// TicketUpdate is an immutable audit trail entry. Sequence is strictly
// increasing per ticket and Digest chains each row to its predecessor.
type TicketUpdate struct {
	ID                      int64
	TenantID                int64
	TicketID                int64
	TicketCustomID          string
	Sequence                int64
	PerformedByID           int64
	Action                  UpdateAction
	FromStatusID            *int64
	ToStatusID              *int64
	FromUserID              *int64
	ToUserID                *int64
	FromDepartmentID        *int64
	ToDepartmentID          *int64
	Description             *string
	TimeSecondsInLastStatus *int64
	CreatedAt               time.Time
	Digest                  []byte
}

// Canonical renders every content field of the entry in a stable form; it is
// the input of the digest chain.
func (u TicketUpdate) Canonical() []byte {
	var b strings.Builder
	field := func(name, value string) {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(value)
		b.WriteByte('\n')
	}
	field("tenant", strconv.FormatInt(u.TenantID, 10))
	field("ticket", strconv.FormatInt(u.TicketID, 10))
	field("custom_id", u.TicketCustomID)
	field("seq", strconv.FormatInt(u.Sequence, 10))
	field("by", strconv.FormatInt(u.PerformedByID, 10))
	field("action", string(u.Action))
	field("from_status", optInt(u.FromStatusID))
	field("to_status", optInt(u.ToStatusID))
	field("from_user", optInt(u.FromUserID))
	field("to_user", optInt(u.ToUserID))
	field("from_dept", optInt(u.FromDepartmentID))
	field("to_dept", optInt(u.ToDepartmentID))
	if u.Description != nil {
		field("description", strconv.Quote(*u.Description))
	} else {
		field("description", "-")
	}
	field("dwell", optInt(u.TimeSecondsInLastStatus))
	field("at", u.CreatedAt.UTC().Format(time.RFC3339Nano))
	return []byte(b.String())
}

func optInt(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}

// ReasonKind tags the justification attached to a cancel, reject or
// correction transition.
type ReasonKind string

const (
	ReasonCancellation ReasonKind = "cancellation"
	ReasonDisapproval  ReasonKind = "disapproval"
	ReasonCorrection   ReasonKind = "correction"
)

// TicketReason is the justification record written with a cancel, reject or
// correction transition.
type TicketReason struct {
	ID          int64
	TenantID    int64
	TicketID    int64
	Kind        ReasonKind
	Reason      string
	CreatedByID int64
	CreatedAt   time.Time
}
