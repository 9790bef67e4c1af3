package domain

import (
	"sort"
	"time"

	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

const (
	MinChainSize = 1
	MaxChainSize = 3
)

// TicketTargetUser is one step of a ticket's assignee escalation chain.
type TicketTargetUser struct {
	TicketID   int64
	UserID     int64
	Order      int
	ConsumedAt *time.Time
}

// AssignmentChain is the ordered list of target users of a single ticket.
type AssignmentChain []TicketTargetUser

// NewAssignmentChain validates userIDs and lays them out with dense zero based
// order.
func NewAssignmentChain(ticketID int64, userIDs []int64) (AssignmentChain, error) {
	if err := ValidateChain(userIDs); err != nil {
		return nil, err
	}
	chain := make(AssignmentChain, 0, len(userIDs))
	for i, id := range userIDs {
		chain = append(chain, TicketTargetUser{TicketID: ticketID, UserID: id, Order: i})
	}
	return chain, nil
}

// ValidateChain enforces the 1..3 size bound and distinct assignees.
func ValidateChain(userIDs []int64) error {
	if len(userIDs) < MinChainSize || len(userIDs) > MaxChainSize {
		return apperrors.NewInvalidChainSize(len(userIDs), MinChainSize, MaxChainSize)
	}
	seen := make(map[int64]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, dup := seen[id]; dup {
			return apperrors.NewDuplicateAssignee(id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Sorted returns the chain ordered by Order.
func (c AssignmentChain) Sorted() AssignmentChain {
	out := make(AssignmentChain, len(c))
	copy(out, c)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Current returns the user at the lowest unconsumed order, or nil when the
// chain is exhausted.
func (c AssignmentChain) Current() *int64 {
	for _, entry := range c.Sorted() {
		if entry.ConsumedAt == nil {
			id := entry.UserID
			return &id
		}
	}
	return nil
}

// Advance consumes the current head and returns the new head.
func (c AssignmentChain) Advance(now time.Time) (AssignmentChain, *int64) {
	out := c.Sorted()
	for i := range out {
		if out[i].ConsumedAt == nil {
			consumed := now
			out[i].ConsumedAt = &consumed
			break
		}
	}
	return out, out.Current()
}

// UserIDs returns every user in chain order, consumed or not.
func (c AssignmentChain) UserIDs() []int64 {
	sorted := c.Sorted()
	ids := make([]int64, 0, len(sorted))
	for _, entry := range sorted {
		ids = append(ids, entry.UserID)
	}
	return ids
}
