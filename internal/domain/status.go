package domain

import "time"

// StatusRole is the semantic role of a status; it decides which lifecycle
// timestamp a transition into that status touches.
type StatusRole string

const (
	RoleNone       StatusRole = ""
	RoleInitial    StatusRole = "initial"
	RoleInProgress StatusRole = "in_progress"
	RoleCompleted  StatusRole = "completed"
	RoleCanceled   StatusRole = "canceled"
	RoleRejected   StatusRole = "rejected"
)

// IsTerminal reports whether entering the role sets a terminal field.
func (r StatusRole) IsTerminal() bool {
	return r == RoleCompleted || r == RoleCanceled || r == RoleRejected
}

// IsValid reports whether r is a known role.
func (r StatusRole) IsValid() bool {
	switch r {
	case RoleNone, RoleInitial, RoleInProgress, RoleCompleted, RoleCanceled, RoleRejected:
		return true
	}
	return false
}

// Seeded status keys.
const (
	StatusKeyPending              = "pending"
	StatusKeyInProgress           = "in_progress"
	StatusKeyAwaitingVerification = "awaiting_verification"
	StatusKeyUnderVerification    = "under_verification"
	StatusKeyCompleted            = "completed"
	StatusKeyCanceled             = "canceled"
	StatusKeyReturned             = "returned"
	StatusKeyRejected             = "rejected"
)

var seededRoles = map[string]StatusRole{
	StatusKeyPending:    RoleInitial,
	StatusKeyInProgress: RoleInProgress,
	StatusKeyCompleted:  RoleCompleted,
	StatusKeyCanceled:   RoleCanceled,
	StatusKeyRejected:   RoleRejected,
}

// StatusColumn is a kanban bucket grouping one or more statuses.
type StatusColumn struct {
	ID            int64
	TenantID      int64
	Name          string
	Index         int
	IsDefault     bool
	IsDisableable bool
	IsActive      bool
	CreatedAt     time.Time
}

// TicketStatus is a node of the tenant's workflow graph.
type TicketStatus struct {
	ID             int64
	TenantID       int64
	Key            string
	Name           string
	StatusColumnID int64
	IsDefault      bool
	Role           StatusRole
	CreatedAt      time.Time
}

// EffectiveRole returns the configured role, falling back to the role implied
// by a seeded key.
func (s TicketStatus) EffectiveRole() StatusRole {
	if s.Role != RoleNone {
		return s.Role
	}
	return seededRoles[s.Key]
}

// StatusAction is a directed edge between two statuses. A nil ToStatusID is a
// same-status action such as a comment.
type StatusAction struct {
	ID           int64
	TenantID     int64
	FromStatusID int64
	ToStatusID   *int64
	Title        string
	Key          string
	CreatedAt    time.Time
}

// TargetStatusID resolves the status the action leads to.
func (a StatusAction) TargetStatusID() int64 {
	if a.ToStatusID == nil {
		return a.FromStatusID
	}
	return *a.ToStatusID
}

// SameSlot reports whether a and b may not coexist. Targeted actions are
// unique per (tenant, from, to); the key only separates same-status actions.
func (a StatusAction) SameSlot(b StatusAction) bool {
	if a.TenantID != b.TenantID || a.FromStatusID != b.FromStatusID {
		return false
	}
	switch {
	case a.ToStatusID != nil && b.ToStatusID != nil:
		return *a.ToStatusID == *b.ToStatusID
	case a.ToStatusID == nil && b.ToStatusID == nil:
		return a.Key == b.Key
	}
	return false
}

// ColumnWithStatuses is a column and the statuses it groups, in key order.
type ColumnWithStatuses struct {
	Column   StatusColumn
	Statuses []TicketStatus
}
