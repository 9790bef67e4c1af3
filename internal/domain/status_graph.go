package domain

import (
	"errors"
	"fmt"
	"strings"
)

type edge struct {
	from int64
	to   int64
}

// TransitionIndex answers "may a ticket move from A to B" in O(1) for one
// tenant's action rows.
type TransitionIndex struct {
	tenantID int64
	edges    map[edge][]StatusAction
}

// NewTransitionIndex builds an index over the tenant's actions. Rows of other
// tenants are ignored.
func NewTransitionIndex(tenantID int64, actions []StatusAction) *TransitionIndex {
	idx := &TransitionIndex{tenantID: tenantID, edges: make(map[edge][]StatusAction, len(actions))}
	for _, action := range actions {
		if action.TenantID != tenantID {
			continue
		}
		e := edge{from: action.FromStatusID, to: action.TargetStatusID()}
		idx.edges[e] = append(idx.edges[e], action)
	}
	return idx
}

// Allowed reports whether at least one action exists for the edge.
func (idx *TransitionIndex) Allowed(fromStatusID, toStatusID int64) bool {
	if idx == nil {
		return false
	}
	return len(idx.edges[edge{from: fromStatusID, to: toStatusID}]) > 0
}

// Actions returns the actions registered for an edge.
func (idx *TransitionIndex) Actions(fromStatusID, toStatusID int64) []StatusAction {
	if idx == nil {
		return nil
	}
	return idx.edges[edge{from: fromStatusID, to: toStatusID}]
}

// Conflicts reports whether candidate would occupy the slot of an existing
// action.
func (idx *TransitionIndex) Conflicts(candidate StatusAction) bool {
	for _, existing := range idx.Actions(candidate.FromStatusID, candidate.TargetStatusID()) {
		if existing.SameSlot(candidate) {
			return true
		}
	}
	return false
}

// Outgoing lists every action leaving a status.
func (idx *TransitionIndex) Outgoing(fromStatusID int64) []StatusAction {
	if idx == nil {
		return nil
	}
	var out []StatusAction
	for e, actions := range idx.edges {
		if e.from == fromStatusID {
			out = append(out, actions...)
		}
	}
	return out
}

// WorkflowDefinition is the portable, key based form of a tenant workflow. It
// is both the provisioning seed and the YAML import format.
type WorkflowDefinition struct {
	Columns []ColumnDefinition `yaml:"columns"`
	Actions []ActionDefinition `yaml:"actions"`
}

// ColumnDefinition declares a column; its index is its position.
type ColumnDefinition struct {
	Name        string             `yaml:"name"`
	Disableable bool               `yaml:"disableable"`
	Statuses    []StatusDefinition `yaml:"statuses"`
}

// StatusDefinition declares a status inside a column.
type StatusDefinition struct {
	Key  string     `yaml:"key"`
	Name string     `yaml:"name"`
	Role StatusRole `yaml:"role,omitempty"`
}

// ActionDefinition declares an edge by status key. An empty To is a
// same-status action.
type ActionDefinition struct {
	From  string `yaml:"from"`
	To    string `yaml:"to,omitempty"`
	Title string `yaml:"title"`
	Key   string `yaml:"key,omitempty"`
}

// Validate checks key uniqueness and that every action references a declared
// status.
func (d WorkflowDefinition) Validate() error {
	if len(d.Columns) == 0 {
		return errors.New("workflow needs at least one column")
	}
	keys := map[string]struct{}{}
	for _, col := range d.Columns {
		if strings.TrimSpace(col.Name) == "" {
			return errors.New("column name required")
		}
		for _, st := range col.Statuses {
			if strings.TrimSpace(st.Key) == "" {
				return fmt.Errorf("column %q: status key required", col.Name)
			}
			if !st.Role.IsValid() {
				return fmt.Errorf("status %q: unknown role %q", st.Key, st.Role)
			}
			if _, dup := keys[st.Key]; dup {
				return fmt.Errorf("duplicate status key %q", st.Key)
			}
			keys[st.Key] = struct{}{}
		}
	}
	// key only separates same-status actions
	type actionKey struct{ from, to, key string }
	seen := map[actionKey]struct{}{}
	for _, act := range d.Actions {
		if _, ok := keys[act.From]; !ok {
			return fmt.Errorf("action %q: unknown from status %q", act.Title, act.From)
		}
		k := actionKey{from: act.From, to: act.To}
		to := act.To
		if to == "" {
			to = act.From
			k.key = act.Key
		} else if _, ok := keys[to]; !ok {
			return fmt.Errorf("action %q: unknown to status %q", act.Title, act.To)
		}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("duplicate action %s -> %s", act.From, to)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// DefaultWorkflow is the canonical workflow every tenant is provisioned with.
func DefaultWorkflow() WorkflowDefinition {
	return WorkflowDefinition{
		Columns: []ColumnDefinition{
			{Name: "Pending", Statuses: []StatusDefinition{
				{Key: StatusKeyPending, Name: "Pending"},
			}},
			{Name: "In Progress", Statuses: []StatusDefinition{
				{Key: StatusKeyInProgress, Name: "In Progress"},
				{Key: StatusKeyReturned, Name: "Returned"},
			}},
			{Name: "Awaiting Verification", Disableable: true, Statuses: []StatusDefinition{
				{Key: StatusKeyAwaitingVerification, Name: "Awaiting Verification"},
			}},
			{Name: "Under Verification", Disableable: true, Statuses: []StatusDefinition{
				{Key: StatusKeyUnderVerification, Name: "Under Verification"},
			}},
			{Name: "Completed", Statuses: []StatusDefinition{
				{Key: StatusKeyCompleted, Name: "Completed"},
				{Key: StatusKeyCanceled, Name: "Canceled"},
				{Key: StatusKeyRejected, Name: "Rejected"},
			}},
		},
		Actions: []ActionDefinition{
			{From: StatusKeyPending, To: StatusKeyInProgress, Title: "Start"},
			{From: StatusKeyInProgress, To: StatusKeyAwaitingVerification, Title: "Submit for verification"},
			{From: StatusKeyAwaitingVerification, To: StatusKeyUnderVerification, Title: "Begin verification"},
			{From: StatusKeyUnderVerification, To: StatusKeyCompleted, Title: "Approve"},
			{From: StatusKeyUnderVerification, To: StatusKeyRejected, Title: "Reject"},
			{From: StatusKeyUnderVerification, To: StatusKeyReturned, Title: "Request correction"},
			{From: StatusKeyReturned, To: StatusKeyInProgress, Title: "Resume"},
			{From: StatusKeyPending, To: StatusKeyCanceled, Title: "Cancel"},
			{From: StatusKeyInProgress, To: StatusKeyCanceled, Title: "Cancel"},
			{From: StatusKeyAwaitingVerification, To: StatusKeyCanceled, Title: "Cancel"},
			{From: StatusKeyUnderVerification, To: StatusKeyCanceled, Title: "Cancel"},
		},
	}
}
