package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

// StatusGraphService owns the per-tenant workflow graph.
type StatusGraphService struct {
	store  repository.Store
	logger *zap.Logger
}

// NewStatusGraphService constructs the service.
func NewStatusGraphService(store repository.Store, logger *zap.Logger) *StatusGraphService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusGraphService{store: store, logger: logger}
}

// StatusInput describes a new status.
type StatusInput struct {
	TenantID int64
	ColumnID int64
	Key      string
	Name     string
	Role     domain.StatusRole
}

// ActionInput describes a new edge. A nil ToStatusID is a same-status action.
type ActionInput struct {
	TenantID     int64
	FromStatusID int64
	ToStatusID   *int64
	Title        string
	Key          string
}

// ListColumns returns the tenant's columns by index with their statuses.
func (s *StatusGraphService) ListColumns(ctx context.Context, tenantID int64, activeOnly bool) ([]domain.ColumnWithStatuses, error) {
	repos := s.store.Repos()
	columns, err := repos.Graph.ListColumns(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	statuses, err := repos.Graph.ListStatuses(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	byColumn := map[int64][]domain.TicketStatus{}
	for _, st := range statuses {
		byColumn[st.StatusColumnID] = append(byColumn[st.StatusColumnID], st)
	}
	result := make([]domain.ColumnWithStatuses, 0, len(columns))
	for _, col := range columns {
		if activeOnly && !col.IsActive {
			continue
		}
		group := byColumn[col.ID]
		sort.Slice(group, func(i, j int) bool { return group[i].Key < group[j].Key })
		result = append(result, domain.ColumnWithStatuses{Column: col, Statuses: group})
	}
	return result, nil
}

// IsTransitionAllowed reports whether an action exists for the edge. Both
// statuses must belong to the tenant.
func (s *StatusGraphService) IsTransitionAllowed(ctx context.Context, tenantID, fromStatusID, toStatusID int64) (bool, error) {
	repos := s.store.Repos()
	for _, id := range []int64{fromStatusID, toStatusID} {
		if _, err := s.status(ctx, repos, tenantID, id); err != nil {
			return false, err
		}
	}
	return s.allowed(ctx, repos, tenantID, fromStatusID, toStatusID)
}

func (s *StatusGraphService) allowed(ctx context.Context, repos repository.Repositories, tenantID, fromStatusID, toStatusID int64) (bool, error) {
	idx, err := s.index(ctx, repos, tenantID)
	if err != nil {
		return false, err
	}
	return idx.Allowed(fromStatusID, toStatusID), nil
}

func (s *StatusGraphService) index(ctx context.Context, repos repository.Repositories, tenantID int64) (*domain.TransitionIndex, error) {
	actions, err := repos.Graph.ListActions(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	return domain.NewTransitionIndex(tenantID, actions), nil
}

// Outgoing lists the actions available from a status.
func (s *StatusGraphService) Outgoing(ctx context.Context, tenantID, fromStatusID int64) ([]domain.StatusAction, error) {
	repos := s.store.Repos()
	if _, err := s.status(ctx, repos, tenantID, fromStatusID); err != nil {
		return nil, err
	}
	idx, err := s.index(ctx, repos, tenantID)
	if err != nil {
		return nil, err
	}
	out := idx.Outgoing(fromStatusID)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// status loads a status and enforces tenancy.
func (s *StatusGraphService) status(ctx context.Context, repos repository.Repositories, tenantID, statusID int64) (*domain.TicketStatus, error) {
	st, err := repos.Graph.GetStatus(ctx, statusID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewStatusNotFound(statusID)
		}
		return nil, err
	}
	if st.TenantID != tenantID {
		return nil, apperrors.NewCrossTenantReference("status", statusID)
	}
	return st, nil
}

// statusByRole finds the tenant status playing role, preferring the seeded key
// for that role.
func (s *StatusGraphService) statusByRole(ctx context.Context, repos repository.Repositories, tenantID int64, role domain.StatusRole) (*domain.TicketStatus, error) {
	statuses, err := repos.Graph.ListStatuses(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var found *domain.TicketStatus
	for i := range statuses {
		if statuses[i].EffectiveRole() != role {
			continue
		}
		if found == nil || statuses[i].Key == string(role) || (role == domain.RoleInitial && statuses[i].IsDefault) {
			found = &statuses[i]
		}
	}
	if found == nil {
		return nil, apperrors.NewStatusNotFound(string(role))
	}
	return found, nil
}

func (s *StatusGraphService) statusByKey(ctx context.Context, repos repository.Repositories, tenantID int64, key string) (*domain.TicketStatus, error) {
	statuses, err := repos.Graph.ListStatuses(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for i := range statuses {
		if statuses[i].Key == key {
			return &statuses[i], nil
		}
	}
	return nil, apperrors.NewStatusNotFound(key)
}

// CreateColumn appends a column after the last index.
func (s *StatusGraphService) CreateColumn(ctx context.Context, tenantID int64, name string, disableable bool) (*domain.StatusColumn, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("column name required", nil)
	}
	var col *domain.StatusColumn
	err := s.store.InTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		created, err := s.createColumn(ctx, repos, tenantID, name, disableable)
		col = created
		return err
	})
	return col, err
}

func (s *StatusGraphService) createColumn(ctx context.Context, repos repository.Repositories, tenantID int64, name string, disableable bool) (*domain.StatusColumn, error) {
	existing, err := repos.Graph.ListColumns(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	next := 0
	for _, c := range existing {
		if c.Index >= next {
			next = c.Index + 1
		}
	}
	col := &domain.StatusColumn{
		TenantID:      tenantID,
		Name:          name,
		Index:         next,
		IsDefault:     len(existing) == 0,
		IsDisableable: disableable,
		IsActive:      true,
	}
	if err := repos.Graph.CreateColumn(ctx, col); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("column index already taken", map[string]any{"index": next})
		}
		return nil, err
	}
	return col, nil
}

// SetColumnActive toggles a column. Columns that are not disableable can
// never be deactivated.
func (s *StatusGraphService) SetColumnActive(ctx context.Context, tenantID, columnID int64, active bool) (*domain.StatusColumn, error) {
	var col *domain.StatusColumn
	err := s.store.InTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		found, err := s.column(ctx, repos, tenantID, columnID)
		if err != nil {
			return err
		}
		if !active && !found.IsDisableable {
			return apperrors.NewColumnNotDisableable(columnID)
		}
		found.IsActive = active
		if err := repos.Graph.UpdateColumn(ctx, found); err != nil {
			return err
		}
		col = found
		return nil
	})
	return col, err
}

func (s *StatusGraphService) column(ctx context.Context, repos repository.Repositories, tenantID, columnID int64) (*domain.StatusColumn, error) {
	col, err := repos.Graph.GetColumn(ctx, columnID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("column", map[string]any{"column_id": columnID})
		}
		return nil, err
	}
	if col.TenantID != tenantID {
		return nil, apperrors.NewCrossTenantReference("column", columnID)
	}
	return col, nil
}

// CreateStatus adds a status to a column.
func (s *StatusGraphService) CreateStatus(ctx context.Context, input StatusInput) (*domain.TicketStatus, error) {
	var status *domain.TicketStatus
	err := s.store.InTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		created, err := s.createStatus(ctx, repos, input)
		status = created
		return err
	})
	return status, err
}

func (s *StatusGraphService) createStatus(ctx context.Context, repos repository.Repositories, input StatusInput) (*domain.TicketStatus, error) {
	key := strings.TrimSpace(input.Key)
	if key == "" {
		return nil, apperrors.NewValidationError("status key required", nil)
	}
	if !input.Role.IsValid() {
		return nil, apperrors.NewValidationError("unknown status role", map[string]any{"role": input.Role})
	}
	if _, err := s.column(ctx, repos, input.TenantID, input.ColumnID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = key
	}
	status := &domain.TicketStatus{
		TenantID:       input.TenantID,
		Key:            key,
		Name:           name,
		StatusColumnID: input.ColumnID,
		IsDefault:      input.Role == domain.RoleInitial || (input.Role == domain.RoleNone && key == domain.StatusKeyPending),
		Role:           input.Role,
	}
	if err := repos.Graph.CreateStatus(ctx, status); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("status key already exists", map[string]any{"key": key})
		}
		return nil, err
	}
	return status, nil
}

// RenameStatus changes the display name. The key never changes.
func (s *StatusGraphService) RenameStatus(ctx context.Context, tenantID, statusID int64, name string) (*domain.TicketStatus, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("status name required", nil)
	}
	var status *domain.TicketStatus
	err := s.store.InTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		found, err := s.status(ctx, repos, tenantID, statusID)
		if err != nil {
			return err
		}
		found.Name = name
		if err := repos.Graph.UpdateStatus(ctx, found); err != nil {
			return err
		}
		status = found
		return nil
	})
	return status, err
}

// CreateAction adds an edge. Both ends must be statuses of the tenant.
func (s *StatusGraphService) CreateAction(ctx context.Context, input ActionInput) (*domain.StatusAction, error) {
	var action *domain.StatusAction
	err := s.store.InTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		created, err := s.createAction(ctx, repos, input)
		action = created
		return err
	})
	return action, err
}

func (s *StatusGraphService) createAction(ctx context.Context, repos repository.Repositories, input ActionInput) (*domain.StatusAction, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("action title required", nil)
	}
	if _, err := s.status(ctx, repos, input.TenantID, input.FromStatusID); err != nil {
		return nil, err
	}
	if input.ToStatusID != nil {
		if _, err := s.status(ctx, repos, input.TenantID, *input.ToStatusID); err != nil {
			return nil, err
		}
	}
	action := &domain.StatusAction{
		TenantID:     input.TenantID,
		FromStatusID: input.FromStatusID,
		ToStatusID:   input.ToStatusID,
		Title:        title,
		Key:          strings.TrimSpace(input.Key),
	}
	idx, err := s.index(ctx, repos, input.TenantID)
	if err != nil {
		return nil, err
	}
	if idx.Conflicts(*action) {
		return nil, apperrors.NewDuplicateAction(action.FromStatusID, action.TargetStatusID())
	}
	if err := repos.Graph.CreateAction(ctx, action); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewDuplicateAction(action.FromStatusID, action.TargetStatusID())
		}
		return nil, err
	}
	return action, nil
}

// DeleteAction removes an edge of the tenant.
func (s *StatusGraphService) DeleteAction(ctx context.Context, tenantID, actionID int64) error {
	return s.store.InTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		action, err := repos.Graph.GetAction(ctx, actionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("action", map[string]any{"action_id": actionID})
			}
			return err
		}
		if action.TenantID != tenantID {
			return apperrors.NewCrossTenantReference("action", actionID)
		}
		return repos.Graph.DeleteAction(ctx, tenantID, actionID)
	})
}

// SeedDefaults provisions the canonical workflow. A tenant that already has
// statuses is left untouched and false is returned.
func (s *StatusGraphService) SeedDefaults(ctx context.Context, tenantID int64) (bool, error) {
	seeded := false
	err := s.store.InTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		existing, err := repos.Graph.ListStatuses(ctx, tenantID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return nil
		}
		if err := s.apply(ctx, repos, tenantID, domain.DefaultWorkflow()); err != nil {
			return err
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if seeded {
		s.logger.Info("tenant workflow seeded", zap.Int64("tenant_id", tenantID))
	}
	return seeded, nil
}

// ImportDefinition merges a YAML workflow definition into the tenant graph.
// Columns match by name and statuses by key; missing ones are created and
// already present actions are skipped. The whole import is one transaction.
func (s *StatusGraphService) ImportDefinition(ctx context.Context, tenantID int64, raw []byte) error {
	var def domain.WorkflowDefinition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return apperrors.NewValidationError("invalid workflow yaml", map[string]any{"error": err.Error()})
	}
	if err := def.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	err := s.store.InTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return s.apply(ctx, repos, tenantID, def)
	})
	if err != nil {
		return err
	}
	s.logger.Info("workflow definition imported",
		zap.Int64("tenant_id", tenantID),
		zap.Int("columns", len(def.Columns)),
		zap.Int("actions", len(def.Actions)))
	return nil
}

func (s *StatusGraphService) apply(ctx context.Context, repos repository.Repositories, tenantID int64, def domain.WorkflowDefinition) error {
	columns, err := repos.Graph.ListColumns(ctx, tenantID)
	if err != nil {
		return err
	}
	statuses, err := repos.Graph.ListStatuses(ctx, tenantID)
	if err != nil {
		return err
	}
	columnByName := map[string]int64{}
	for _, c := range columns {
		columnByName[c.Name] = c.ID
	}
	statusByKey := map[string]int64{}
	for _, st := range statuses {
		statusByKey[st.Key] = st.ID
	}

	for _, colDef := range def.Columns {
		colID, ok := columnByName[colDef.Name]
		if !ok {
			col, err := s.createColumn(ctx, repos, tenantID, colDef.Name, colDef.Disableable)
			if err != nil {
				return err
			}
			colID = col.ID
			columnByName[colDef.Name] = colID
		}
		for _, stDef := range colDef.Statuses {
			if _, ok := statusByKey[stDef.Key]; ok {
				continue
			}
			st, err := s.createStatus(ctx, repos, StatusInput{
				TenantID: tenantID,
				ColumnID: colID,
				Key:      stDef.Key,
				Name:     stDef.Name,
				Role:     stDef.Role,
			})
			if err != nil {
				return err
			}
			statusByKey[stDef.Key] = st.ID
		}
	}

	idx, err := s.index(ctx, repos, tenantID)
	if err != nil {
		return err
	}
	for _, actDef := range def.Actions {
		fromID, ok := statusByKey[actDef.From]
		if !ok {
			return apperrors.NewStatusNotFound(actDef.From)
		}
		var toID *int64
		if actDef.To != "" {
			id, ok := statusByKey[actDef.To]
			if !ok {
				return apperrors.NewStatusNotFound(actDef.To)
			}
			toID = &id
		}
		candidate := domain.StatusAction{TenantID: tenantID, FromStatusID: fromID, ToStatusID: toID, Title: actDef.Title, Key: actDef.Key}
		if idx.Conflicts(candidate) {
			continue
		}
		if _, err := s.createAction(ctx, repos, ActionInput{
			TenantID:     tenantID,
			FromStatusID: fromID,
			ToStatusID:   toID,
			Title:        actDef.Title,
			Key:          actDef.Key,
		}); err != nil {
			return err
		}
	}
	return nil
}

// ExportDefinition renders the tenant graph as YAML.
func (s *StatusGraphService) ExportDefinition(ctx context.Context, tenantID int64) ([]byte, error) {
	columns, err := s.ListColumns(ctx, tenantID, false)
	if err != nil {
		return nil, err
	}
	actions, err := s.store.Repos().Graph.ListActions(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	keyByID := map[int64]string{}
	def := domain.WorkflowDefinition{}
	for _, group := range columns {
		colDef := domain.ColumnDefinition{Name: group.Column.Name, Disableable: group.Column.IsDisableable}
		for _, st := range group.Statuses {
			keyByID[st.ID] = st.Key
			colDef.Statuses = append(colDef.Statuses, domain.StatusDefinition{Key: st.Key, Name: st.Name, Role: st.Role})
		}
		def.Columns = append(def.Columns, colDef)
	}
	for _, action := range actions {
		actDef := domain.ActionDefinition{From: keyByID[action.FromStatusID], Title: action.Title, Key: action.Key}
		if action.ToStatusID != nil {
			actDef.To = keyByID[*action.ToStatusID]
		}
		def.Actions = append(def.Actions, actDef)
	}
	return yaml.Marshal(def)
}
