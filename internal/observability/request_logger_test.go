package observability

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLoggerRecordsRequests(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	metrics := NewMetrics()

	app := fiber.New()
	app.Use(RequestLogger(zap.New(core), metrics))
	app.Get("/tickets/:id", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusBadGateway)
	})

	req := httptest.NewRequest(fiber.MethodGet, "/tickets/5", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "req-1", resp.Header.Get(RequestIDHeader))

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/boom", nil), -1)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Requests["/tickets/:id|GET|200"])
	assert.Equal(t, int64(1), snap.Requests["/boom|GET|502"])
	assert.Contains(t, snap.LatencyMillis, "/boom|GET|502")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordTransition(1, 2, 3)
	m.RecordTransition(1, 2, 3)
	m.RecordConflict("INVALID_TRANSITION")
	m.RecordError("/tickets", "POST", "VALIDATION_FAILED")

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Transitions["1|2->3"])
	assert.Equal(t, int64(1), snap.Conflicts["INVALID_TRANSITION"])
	assert.Equal(t, int64(1), snap.Errors["/tickets|POST|VALIDATION_FAILED"])

	var nilMetrics *Metrics
	nilMetrics.RecordConflict("x")
	assert.Empty(t, nilMetrics.Snapshot().Conflicts)
}
