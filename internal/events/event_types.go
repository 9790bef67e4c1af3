package events

import (
	"time"
)

// EventType enumerates supported notification request identifiers.
type EventType string

const (
	EventTicketCreated             EventType = "ticket_created"
	EventTicketCommented           EventType = "ticket_commented"
	EventTicketStatusChanged       EventType = "ticket_status_changed"
	EventTicketCanceled            EventType = "ticket_canceled"
	EventTicketRejected            EventType = "ticket_rejected"
	EventTicketCorrectionRequested EventType = "ticket_correction_requested"
	EventTicketAssigned            EventType = "ticket_assigned"
)

// Event is a notification request emitted after a workflow change commits.
// Delivery is left to subscribers.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	TenantID       int64     `json:"tenant_id"`
	TicketID       int64     `json:"ticket_id"`
	TicketCustomID string    `json:"ticket_custom_id"`
	ActorID        int64     `json:"actor_id"`
	Recipients     []int64   `json:"recipients"`
	Timestamp      time.Time `json:"timestamp"`
	Payload        any       `json:"payload,omitempty"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title       string  `json:"title"`
	Priority    string  `json:"priority"`
	AssigneeIDs []int64 `json:"assignee_ids"`
}

// TicketStatusChangedPayload is used for status changes, cancellations,
// rejections and correction requests.
type TicketStatusChangedPayload struct {
	FromStatusID  int64  `json:"from_status_id"`
	ToStatusID    int64  `json:"to_status_id"`
	FromStatusKey string `json:"from_status_key"`
	ToStatusKey   string `json:"to_status_key"`
	Reason        string `json:"reason,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	FromUserID *int64  `json:"from_user_id,omitempty"`
	ToUserID   *int64  `json:"to_user_id,omitempty"`
	Chain      []int64 `json:"chain"`
}

// TicketCommentedPayload payload.
type TicketCommentedPayload struct {
	BodyPreview string `json:"body_preview"`
}
