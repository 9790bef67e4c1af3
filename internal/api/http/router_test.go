package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-workflow/internal/auth"
	"github.com/spec-kit/helpdesk-workflow/internal/config"
	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/events"
	"github.com/spec-kit/helpdesk-workflow/internal/lock"
	"github.com/spec-kit/helpdesk-workflow/internal/observability"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
	"github.com/spec-kit/helpdesk-workflow/internal/service"
)

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	store := repository.NewMemoryStore()
	dept := func(v int64) *int64 { return &v }
	users := service.NewUserDirectory(repository.NewMemoryDirectory(
		domain.DirectoryUser{ID: 10, TenantID: 1, DepartmentID: dept(100)},
		domain.DirectoryUser{ID: 11, TenantID: 1, DepartmentID: dept(200)},
		domain.DirectoryUser{ID: 20, TenantID: 2},
	))

	graph := service.NewStatusGraphService(store, logger)
	assignment := service.NewAssignmentService(service.AssignmentDependencies{Store: store, Directory: users})
	history := service.NewHistoryRecorder(store, nil)
	workflow := service.NewWorkflowService(service.WorkflowDependencies{
		Store:      store,
		Locker:     lock.NewLocalLocker(time.Second),
		Graph:      graph,
		Assignment: assignment,
		History:    history,
		Directory:  users,
		Dispatcher: events.NewInMemoryDispatcher(),
		Metrics:    metrics,
		Logger:     logger,
	})
	stats := service.NewStatsService(service.StatsDependencies{Store: store, Directory: users, Logger: logger})

	tokens := auth.NewTokenManager(config.AuthConfig{JWTSecret: "test-secret", Issuer: "helpdesk-test", TokenTTLMinutes: 5})
	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:   handlers.NewHealthHandler("helpdesk", "test", map[string]handlers.Pinger{"postgres": nil}, metrics),
		Workflow: handlers.NewWorkflowHandler(graph),
		Tickets: handlers.NewTicketsHandler(handlers.TicketsDependencies{
			Workflow:   workflow,
			Assignment: assignment,
			History:    history,
			Retry:      handlers.RetryPolicy{MaxRetries: 1, Base: time.Millisecond},
		}),
		Stats:          handlers.NewStatsHandler(stats),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return &testServer{app: app, tokens: tokens}
}

func (s *testServer) token(t *testing.T, actor domain.Actor) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken(actor)
	require.NoError(t, err)
	return token
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func TestHealthIsPublic(t *testing.T) {
	srv := newTestServer(t)

	status, _ := srv.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = srv.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestAuthentication(t *testing.T) {
	srv := newTestServer(t)

	status, env := srv.do(t, fiber.MethodGet, "/tickets", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, _ = srv.do(t, fiber.MethodGet, "/tickets", "not-a-jwt", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	agent := srv.token(t, domain.Actor{UserID: 10, TenantID: 1})
	status, env = srv.do(t, fiber.MethodPost, "/workflow/seed", agent, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, env = srv.do(t, fiber.MethodGet, "/nope", agent, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestTicketWorkflowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.token(t, domain.Actor{UserID: 1, TenantID: 1, IsAdmin: true})
	agent := srv.token(t, domain.Actor{UserID: 10, TenantID: 1})
	stranger := srv.token(t, domain.Actor{UserID: 20, TenantID: 2})

	status, _ := srv.do(t, fiber.MethodPost, "/workflow/seed", admin, nil)
	require.Equal(t, fiber.StatusCreated, status)
	status, _ = srv.do(t, fiber.MethodPost, "/workflow/seed", admin, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, env := srv.do(t, fiber.MethodGet, "/workflow/columns", agent, nil)
	require.Equal(t, fiber.StatusOK, status)
	var columns []struct {
		Name     string `json:"name"`
		Statuses []struct {
			ID  int64  `json:"id"`
			Key string `json:"key"`
		} `json:"statuses"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &columns))
	require.Len(t, columns, 5)
	statusIDs := map[string]int64{}
	for _, col := range columns {
		for _, st := range col.Statuses {
			statusIDs[st.Key] = st.ID
		}
	}
	require.Len(t, statusIDs, 8)

	status, env = srv.do(t, fiber.MethodPost, "/tickets", agent, map[string]any{"assignee_ids": []int64{10}})
	assert.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Contains(t, env.Error.Details, "title")

	status, env = srv.do(t, fiber.MethodPost, "/tickets", agent, map[string]any{"title": "Disk full", "assignee_ids": []int64{10, 10}})
	assert.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "DUPLICATE_ASSIGNEE", env.Error.Code)

	status, env = srv.do(t, fiber.MethodPost, "/tickets", agent, map[string]any{"title": "Disk full", "priority": "HIGH", "assignee_ids": []int64{10, 11}})
	require.Equal(t, fiber.StatusCreated, status)
	var ticket struct {
		ID       int64  `json:"id"`
		StatusID int64  `json:"status_id"`
		Priority string `json:"priority"`
		Version  int64  `json:"version"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &ticket))
	assert.Equal(t, statusIDs[domain.StatusKeyPending], ticket.StatusID)
	assert.Equal(t, "HIGH", ticket.Priority)
	base := "/tickets/" + strconv.FormatInt(ticket.ID, 10)

	status, env = srv.do(t, fiber.MethodPost, base+"/transition", agent, map[string]any{"to_status_id": statusIDs[domain.StatusKeyCompleted]})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)

	status, env = srv.do(t, fiber.MethodPost, base+"/transition", agent, map[string]any{"to_status_id": statusIDs[domain.StatusKeyInProgress]})
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &ticket))
	assert.Equal(t, statusIDs[domain.StatusKeyInProgress], ticket.StatusID)
	assert.Equal(t, int64(2), ticket.Version)

	status, env = srv.do(t, fiber.MethodPost, base+"/cancel", agent, map[string]any{})
	assert.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Details, "reason")

	status, _ = srv.do(t, fiber.MethodPost, base+"/comments", agent, map[string]any{"body": "looking"})
	assert.Equal(t, fiber.StatusCreated, status)

	status, env = srv.do(t, fiber.MethodGet, base+"/history?verify=true", agent, nil)
	require.Equal(t, fiber.StatusOK, status)
	var entries []struct {
		Sequence int64  `json:"sequence"`
		Action   string `json:"action"`
		Digest   string `json:"digest"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, "creation", entries[0].Action)
	assert.Equal(t, "status_change", entries[1].Action)
	assert.Equal(t, "update", entries[2].Action)
	assert.Len(t, entries[2].Digest, 64)

	status, env = srv.do(t, fiber.MethodGet, base, stranger, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "TICKET_NOT_FOUND", env.Error.Code)

	status, env = srv.do(t, fiber.MethodGet, base+"/stats", agent, nil)
	require.Equal(t, fiber.StatusOK, status)
	var row domain.StatsRow
	require.NoError(t, json.Unmarshal(env.Data, &row))
	assert.Equal(t, []int64{100, 200}, row.DepartmentIDs)
	assert.Equal(t, domain.StatusKeyInProgress, row.StatusKey)
}
