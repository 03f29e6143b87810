package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/itsm-sla/internal/api/http/handlers"
	"github.com/spec-kit/itsm-sla/internal/config"
	"github.com/spec-kit/itsm-sla/internal/events"
	"github.com/spec-kit/itsm-sla/internal/observability"
	"github.com/spec-kit/itsm-sla/internal/repository/memstore"
	"github.com/spec-kit/itsm-sla/internal/service"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testApp struct {
	app   *fiber.App
	clock *testClock
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := zaptest.NewLogger(t)
	clock := &testClock{now: time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)}
	store := memstore.New()
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	resolver := service.NewSLAResolver(store, logger, clock.Now)
	slaService := service.NewSLAService(service.SLADependencies{
		Store: store, Resolver: resolver, Dispatcher: dispatcher, Metrics: metrics, Logger: logger, Now: clock.Now,
	})
	assignment := service.NewAssignmentService(service.AssignmentDependencies{
		Store: store, Dispatcher: dispatcher, Metrics: metrics, Logger: logger, Now: clock.Now,
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		Store: store, SLA: slaService, Assignment: assignment, Dispatcher: dispatcher, Logger: logger, Now: clock.Now,
	})
	notifications := service.NewNotificationService(service.NotificationDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Config:     config.NotificationConfig{EmailFrom: "noreply@company.com"},
		Metrics:    metrics,
		Logger:     logger,
		Now:        clock.Now,
	})
	_, err := service.NewSeeder(resolver, assignment, logger).Seed(context.Background())
	require.NoError(t, err)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:        handlers.NewHealthHandler("itsm-sla", "test", nil, nil),
		Tickets:       handlers.NewTicketsHandler(tickets),
		SLA:           handlers.NewSLAHandler(slaService, resolver),
		Assignment:    handlers.NewAssignmentHandler(assignment),
		Users:         handlers.NewUsersHandler(assignment),
		Notifications: handlers.NewNotificationsHandler(notifications),
		Metrics:       metrics,
	})
	return &testApp{app: app, clock: clock}
}

// do sends body as JSON (or verbatim when it is a string) and decodes the
// JSON response.
func (a *testApp) do(t *testing.T, method, path string, body any, headers ...string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", body)
	return d
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func (a *testApp) groupID(t *testing.T, name string) string {
	t.Helper()
	status, body := a.do(t, fiber.MethodGet, "/assignment-groups", nil)
	require.Equal(t, fiber.StatusOK, status)
	groups, ok := body["data"].([]any)
	require.True(t, ok)
	assert.Len(t, groups, 10)
	for _, g := range groups {
		group := g.(map[string]any)
		if group["name"] == name {
			return group["id"].(string)
		}
	}
	t.Fatalf("group %q not listed", name)
	return ""
}

func TestHealthRoutes(t *testing.T) {
	a := newTestApp(t)

	status, body := a.do(t, fiber.MethodGet, "/health/live", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = a.do(t, fiber.MethodGet, "/health/ready", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, map[string]any{"postgres": "disabled", "redis": "disabled"}, body["dependencies"])
}

func TestMetricsRoute(t *testing.T) {
	a := newTestApp(t)
	a.do(t, fiber.MethodGet, "/health/live", nil)

	resp, err := a.app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "itsm_http_requests_total")
}

func TestTicketRoutes_IntakeAndLifecycle(t *testing.T) {
	a := newTestApp(t)
	network := a.groupID(t, "Network Operations")

	status, body := a.do(t, fiber.MethodPost, "/users", map[string]any{"full_name": "Mo Agent", "email": "mo@company.com"})
	require.Equal(t, fiber.StatusCreated, status)
	mo := data(t, body)["id"].(string)

	status, _ = a.do(t, fiber.MethodPost, "/assignment-groups/"+network+"/members", map[string]any{"user_id": mo})
	require.Equal(t, fiber.StatusCreated, status)

	status, body = a.do(t, fiber.MethodPost, "/tickets", map[string]any{
		"title":       "VPN keeps dropping",
		"description": "Reported by jane.doe@company.com from home",
		"category":    "Network",
		"subcategory": "VPN",
		"auto_assign": true,
	})
	require.Equal(t, fiber.StatusCreated, status)
	created := data(t, body)
	ticket := created["ticket"].(map[string]any)
	ticketID := ticket["id"].(string)
	assert.Equal(t, "medium", ticket["priority"])
	assert.Equal(t, "submitted", ticket["status"])
	assignment := created["assignment"].(map[string]any)
	assert.Equal(t, "Network Operations", assignment["group_name"])
	assert.Equal(t, mo, assignment["assigned_user_id"])
	assert.Equal(t, "2024-01-08T14:00:00Z", created["sla"].(map[string]any)["response_due_at"])
	assert.Equal(t, "jane.doe@company.com", created["affected"].(map[string]any)["user"])

	status, body = a.do(t, fiber.MethodGet, "/tickets/"+ticketID, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, network, data(t, body)["assignment_group_id"])

	a.clock.Advance(30 * time.Minute)
	status, body = a.do(t, fiber.MethodPatch, "/tickets/"+ticketID+"/status",
		map[string]any{"status": "in_progress"}, "X-Actor-ID", mo)
	require.Equal(t, fiber.StatusOK, status)
	update := data(t, body)
	assert.Equal(t, "in_progress", update["ticket"].(map[string]any)["status"])
	assert.Equal(t, "2024-01-08T10:30:00Z", update["sla"].(map[string]any)["response_met_at"])

	status, body = a.do(t, fiber.MethodGet, "/tickets/"+ticketID+"/sla", nil)
	require.Equal(t, fiber.StatusOK, status)
	report := data(t, body)
	assert.Equal(t, "Medium SLA", report["sla_name"])
	assert.Equal(t, "active", report["status"])
	assert.Nil(t, report["response"].(map[string]any)["minutes_remaining"])

	status, body = a.do(t, fiber.MethodGet, "/tickets/"+ticketID+"/history", nil)
	require.Equal(t, fiber.StatusOK, status)
	history := body["data"].([]any)
	require.NotEmpty(t, history)
	last := history[len(history)-1].(map[string]any)
	assert.Equal(t, "STATUS_CHANGE", last["change_type"])
	assert.Equal(t, "AGENT", last["changed_by_type"])
	assert.Equal(t, mo, last["changed_by_id"])

	status, body = a.do(t, fiber.MethodGet, "/assignment-groups/"+network+"/workload", nil)
	require.Equal(t, fiber.StatusOK, status)
	workload := data(t, body)
	assert.EqualValues(t, 1, workload["total_members"])
	assert.EqualValues(t, 1, workload["total_open_tickets"])

	status, body = a.do(t, fiber.MethodPost, "/tickets/"+ticketID+"/reassign", map[string]any{"group_name": "Infrastructure"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Infrastructure", data(t, body)["group_name"])
	assert.Nil(t, data(t, body)["assigned_user_id"])
}

func TestTicketRoutes_Errors(t *testing.T) {
	a := newTestApp(t)

	status, body := a.do(t, fiber.MethodPost, "/tickets", "{")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = a.do(t, fiber.MethodPost, "/tickets", map[string]any{"category": "Network"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = a.do(t, fiber.MethodGet, "/tickets/missing", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, body = a.do(t, fiber.MethodPost, "/tickets", map[string]any{"title": "Laptop screen cracked", "category": "Hardware"})
	require.Equal(t, fiber.StatusCreated, status)
	ticketID := data(t, body)["ticket"].(map[string]any)["id"].(string)

	status, body = a.do(t, fiber.MethodPatch, "/tickets/"+ticketID+"/status", map[string]any{"status": "closed"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "INVALID_STATE", errorCode(body))

	status, body = a.do(t, fiber.MethodPost, "/tickets/"+ticketID+"/reassign", map[string]any{})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
}

func TestSLARoutes_PauseResumeAndSweeps(t *testing.T) {
	a := newTestApp(t)

	status, body := a.do(t, fiber.MethodPost, "/tickets", map[string]any{
		"title":    "Laptop will not boot",
		"category": "Hardware",
		"priority": "critical",
	})
	require.Equal(t, fiber.StatusCreated, status)
	created := data(t, body)
	ticketID := created["ticket"].(map[string]any)["id"].(string)
	assert.Equal(t, "2024-01-08T10:30:00Z", created["sla"].(map[string]any)["response_due_at"])
	base := "/tickets/" + ticketID + "/sla"

	a.clock.Advance(5 * time.Minute)
	status, body = a.do(t, fiber.MethodPost, base+"/pause", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "paused", data(t, body)["status"])

	status, body = a.do(t, fiber.MethodPost, base+"/pause", nil)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "INVALID_STATE", errorCode(body))

	a.clock.Advance(10 * time.Minute)
	status, body = a.do(t, fiber.MethodPost, base+"/resume", nil)
	require.Equal(t, fiber.StatusOK, status)
	resumed := data(t, body)
	assert.EqualValues(t, 10, resumed["total_pause_minutes"])
	assert.Equal(t, "2024-01-08T10:40:00Z", resumed["response_due_at"])

	a.clock.Advance(45 * time.Minute)
	status, body = a.do(t, fiber.MethodPost, "/sla/sweeps/breaches", nil)
	require.Equal(t, fiber.StatusOK, status)
	sweep := data(t, body)
	assert.EqualValues(t, 1, sweep["processed"])
	breaches := sweep["breaches"].([]any)
	require.Len(t, breaches, 1)
	breach := breaches[0].(map[string]any)
	assert.Equal(t, "response", breach["sla_type"])
	assert.EqualValues(t, 20, breach["minutes_overdue"])

	status, body = a.do(t, fiber.MethodPost, "/sla/sweeps/warnings?threshold=150", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = a.do(t, fiber.MethodGet, base, nil)
	require.Equal(t, fiber.StatusOK, status)
	report := data(t, body)
	assert.Equal(t, "Critical SLA", report["sla_name"])
	assert.Equal(t, true, report["response"].(map[string]any)["breached"])

	status, body = a.do(t, fiber.MethodPost, base+"/cancel", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "cancelled", data(t, body)["status"])
}

func TestSLARoutes_Definitions(t *testing.T) {
	a := newTestApp(t)

	status, body := a.do(t, fiber.MethodGet, "/sla/definitions", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 4)

	def := map[string]any{
		"name":                  "Network High",
		"priority":              "high",
		"category":              "Network",
		"response_time_minutes": 15,
		"resolution_time_hours": 2,
	}
	status, body = a.do(t, fiber.MethodPost, "/sla/definitions", def)
	require.Equal(t, fiber.StatusCreated, status)
	assert.EqualValues(t, 80, data(t, body)["warning_threshold_percent"])

	status, body = a.do(t, fiber.MethodPost, "/sla/definitions", def)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(body))
}

func TestAdminRoutes(t *testing.T) {
	a := newTestApp(t)

	status, body := a.do(t, fiber.MethodPost, "/assignment-groups", map[string]any{"name": "Facilities"})
	require.Equal(t, fiber.StatusCreated, status)
	groupID := data(t, body)["id"].(string)

	status, body = a.do(t, fiber.MethodPost, "/category-mappings", map[string]any{
		"category":          "Building",
		"group_id":          groupID,
		"priority_override": "low",
	})
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "low", data(t, body)["priority_override"])

	status, body = a.do(t, fiber.MethodPost, "/users", map[string]any{"full_name": "", "email": "nope"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = a.do(t, fiber.MethodPost, "/notifications/process-pending", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 0, data(t, body)["processed"])
}
