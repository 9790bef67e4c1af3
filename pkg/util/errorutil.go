package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to callers.
const (
	CodeValidation            = "VALIDATION_FAILED"
	CodeNotFound              = "NOT_FOUND"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeConflict              = "CONFLICT"
	CodeInternal              = "INTERNAL_ERROR"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeTerminalStateConflict = "TERMINAL_STATE_CONFLICT"
	CodeCrossTenantReference  = "CROSS_TENANT_REFERENCE"
	CodeTicketNotFound        = "TICKET_NOT_FOUND"
	CodeStatusNotFound        = "STATUS_NOT_FOUND"
	CodeInvalidChainSize      = "INVALID_CHAIN_SIZE"
	CodeDuplicateAssignee     = "DUPLICATE_ASSIGNEE"
	CodeDuplicateAction       = "DUPLICATE_ACTION"
	CodeStaleTicketVersion    = "STALE_TICKET_VERSION"
	CodeColumnNotDisableable  = "COLUMN_NOT_DISABLEABLE"
	CodeHistoryIntegrity      = "HISTORY_INTEGRITY"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError carrying the same code, so callers can test
// against the sentinels below with errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is; never return them directly.
var (
	ErrInvalidTransition     = &DomainError{Code: CodeInvalidTransition}
	ErrTerminalStateConflict = &DomainError{Code: CodeTerminalStateConflict}
	ErrCrossTenantReference  = &DomainError{Code: CodeCrossTenantReference}
	ErrTicketNotFound        = &DomainError{Code: CodeTicketNotFound}
	ErrStatusNotFound        = &DomainError{Code: CodeStatusNotFound}
	ErrInvalidChainSize      = &DomainError{Code: CodeInvalidChainSize}
	ErrDuplicateAssignee     = &DomainError{Code: CodeDuplicateAssignee}
	ErrDuplicateAction       = &DomainError{Code: CodeDuplicateAction}
	ErrStaleTicketVersion    = &DomainError{Code: CodeStaleTicketVersion}
	ErrColumnNotDisableable  = &DomainError{Code: CodeColumnNotDisableable}
	ErrHistoryIntegrity      = &DomainError{Code: CodeHistoryIntegrity}
	ErrValidation            = &DomainError{Code: CodeValidation}
)

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInvalidTransition(fromStatusID, toStatusID int64) error {
	return NewDomainError(CodeInvalidTransition, "transition not allowed", http.StatusUnprocessableEntity,
		map[string]any{"from_status_id": fromStatusID, "to_status_id": toStatusID})
}

func NewTerminalStateConflict(current, requested string) error {
	return NewDomainError(CodeTerminalStateConflict, "ticket already reached a terminal outcome", http.StatusConflict,
		map[string]any{"current": current, "requested": requested})
}

func NewCrossTenantReference(resource string, id int64) error {
	return NewDomainError(CodeCrossTenantReference, fmt.Sprintf("%s belongs to another tenant", resource), http.StatusUnprocessableEntity,
		map[string]any{"resource": resource, "id": id})
}

func NewTicketNotFound(ticketID int64) error {
	return NewDomainError(CodeTicketNotFound, "ticket not found", http.StatusNotFound,
		map[string]any{"ticket_id": ticketID})
}

func NewStatusNotFound(ref any) error {
	return NewDomainError(CodeStatusNotFound, "status not found", http.StatusNotFound,
		map[string]any{"status": ref})
}

func NewInvalidChainSize(size, min, max int) error {
	return NewDomainError(CodeInvalidChainSize, fmt.Sprintf("assignee chain must have between %d and %d users", min, max), http.StatusBadRequest,
		map[string]any{"size": size})
}

func NewDuplicateAssignee(userID int64) error {
	return NewDomainError(CodeDuplicateAssignee, "assignee listed more than once", http.StatusBadRequest,
		map[string]any{"user_id": userID})
}

func NewDuplicateAction(fromStatusID, toStatusID int64) error {
	return NewDomainError(CodeDuplicateAction, "action already exists", http.StatusConflict,
		map[string]any{"from_status_id": fromStatusID, "to_status_id": toStatusID})
}

func NewStaleTicketVersion(ticketID int64) error {
	return NewDomainError(CodeStaleTicketVersion, "ticket was modified concurrently", http.StatusConflict,
		map[string]any{"ticket_id": ticketID})
}

func NewColumnNotDisableable(columnID int64) error {
	return NewDomainError(CodeColumnNotDisableable, "column cannot be deactivated", http.StatusConflict,
		map[string]any{"column_id": columnID})
}

func NewHistoryIntegrity(ticketID, sequence int64, reason string) error {
	return NewDomainError(CodeHistoryIntegrity, "ticket history failed integrity check", http.StatusInternalServerError,
		map[string]any{"ticket_id": ticketID, "sequence": sequence, "reason": reason})
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

