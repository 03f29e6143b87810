package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/itsm-sla/internal/config"
	"github.com/spec-kit/itsm-sla/internal/domain"
	"github.com/spec-kit/itsm-sla/internal/events"
	"github.com/spec-kit/itsm-sla/internal/webhook"
)

const muleURL = "http://mule.test"

type postCall struct {
	url     string
	payload any
}

type fakePoster struct {
	mu    sync.Mutex
	calls []postCall
	fail  map[string]bool
}

func (p *fakePoster) Post(_ context.Context, url string, payload any) (webhook.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, postCall{url: url, payload: payload})
	body, _ := payload.(map[string]any)
	if number, _ := body["ticket_number"].(string); p.fail[number] {
		return webhook.Result{StatusCode: 502, Error: "bad gateway", Attempts: 3}, errors.New("status 502")
	}
	return webhook.Result{Success: true, StatusCode: 200, Response: `{"ok":true}`, Attempts: 1}, nil
}

type fakeQueue struct {
	mu   sync.Mutex
	ids  []string
	full bool
}

func (q *fakeQueue) Enqueue(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.ids = append(q.ids, id)
	return true
}

func (q *fakeQueue) drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := q.ids
	q.ids = nil
	return ids
}

func notifier(t *testing.T, h *harness, poster WebhookPoster) *NotificationService {
	t.Helper()
	return NewNotificationService(NotificationDependencies{
		Store:      h.store,
		Webhook:    poster,
		Dispatcher: h.dispatcher,
		Config:     config.NotificationConfig{EmailFrom: "noreply@company.com", MuleSoftURL: muleURL},
		Metrics:    h.metrics,
		Logger:     zaptest.NewLogger(t),
		Now:        h.clock.Now,
	})
}

func TestSend_RecordsAndEnqueues(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	n := notifier(t, h, &fakePoster{})
	queue := &fakeQueue{}
	n.SetQueue(queue)

	sent, err := n.Send(ctx, SendInput{Type: domain.NotificationTicketCreated, Subject: "hello", WebhookURL: strPtr(muleURL + "/hook")})
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationStatusPending, sent.Status)
	assert.NotNil(t, sent.Payload)
	assert.Equal(t, []string{sent.ID}, queue.drain())

	queue.full = true
	dropped, err := n.Send(ctx, SendInput{Type: domain.NotificationTicketCreated})
	require.NoError(t, err)
	stored, err := h.store.Notifications().GetByID(ctx, dropped.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationStatusPending, stored.Status)

	_, err = n.Send(ctx, SendInput{})
	assert.Error(t, err)
}

func TestDeliver_Outcomes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	poster := &fakePoster{fail: map[string]bool{"TKT-BAD": true}}
	n := notifier(t, h, poster)

	send := func(in SendInput) string {
		t.Helper()
		in.Type = domain.NotificationSLAWarning
		created, err := n.Send(ctx, in)
		require.NoError(t, err)
		return created.ID
	}
	hook := strPtr(muleURL + "/api/webhooks/sla-notification")

	t.Run("webhook accepted", func(t *testing.T) {
		id := send(SendInput{WebhookURL: hook, Payload: map[string]any{"ticket_number": "TKT-OK"}})
		h.clock.Advance(time.Second)
		delivered, err := n.Deliver(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationStatusSent, delivered.Status)
		require.NotNil(t, delivered.SentAt)
		assert.Equal(t, h.clock.Now(), *delivered.SentAt)
		assert.Equal(t, 200, delivered.WebhookResponse["status_code"])

		again, err := n.Deliver(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationStatusSent, again.Status)
		assert.Len(t, poster.calls, 1)
	})

	t.Run("webhook rejected", func(t *testing.T) {
		id := send(SendInput{WebhookURL: hook, Payload: map[string]any{"ticket_number": "TKT-BAD"}})
		delivered, err := n.Deliver(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationStatusFailed, delivered.Status)
		assert.Equal(t, 1, delivered.RetryCount)
		require.NotNil(t, delivered.ErrorMessage)
		assert.Contains(t, *delivered.ErrorMessage, "webhook unavailable")
		assert.Equal(t, "bad gateway", delivered.WebhookResponse["error"])

		delivered, err = n.Deliver(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 2, delivered.RetryCount)
	})

	t.Run("direct recipient", func(t *testing.T) {
		id := send(SendInput{RecipientEmail: strPtr("agent@company.com")})
		delivered, err := n.Deliver(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationStatusSent, delivered.Status)
		assert.NotNil(t, delivered.SentAt)
		assert.Nil(t, delivered.WebhookResponse)
	})

	t.Run("no channel", func(t *testing.T) {
		id := send(SendInput{})
		delivered, err := n.Deliver(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.NotificationStatusFailed, delivered.Status)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := n.Deliver(ctx, "missing")
		assert.Error(t, err)
	})
}

func TestDeliver_WithoutWebhookClient(t *testing.T) {
	h := newHarness(t)
	n := notifier(t, h, nil)
	created, err := n.Send(context.Background(), SendInput{Type: domain.NotificationSLABreach, WebhookURL: strPtr(muleURL)})
	require.NoError(t, err)

	delivered, err := n.Deliver(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationStatusFailed, delivered.Status)
}

func TestProcessPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	poster := &fakePoster{fail: map[string]bool{"TKT-2": true}}
	n := notifier(t, h, poster)

	for _, number := range []string{"TKT-1", "TKT-2", "TKT-3"} {
		_, err := n.Send(ctx, SendInput{
			Type:       domain.NotificationTicketCreated,
			WebhookURL: strPtr(muleURL),
			Payload:    map[string]any{"ticket_number": number},
		})
		require.NoError(t, err)
		h.clock.Advance(time.Second)
	}

	result, err := n.ProcessPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 2, result.Success)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error, "status 502")

	// Failed notifications are not pending any more.
	result, err = n.ProcessPending(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
}

func TestHandlers_SLABreachPayload(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	n := notifier(t, h, &fakePoster{})
	queue := &fakeQueue{}
	n.SetQueue(queue)
	n.RegisterHandlers()

	ticket, timer := h.timer(t, domain.PriorityCritical)
	h.clock.Advance(5 * time.Hour)
	_, err := h.sla.SweepBreaches(ctx)
	require.NoError(t, err)

	ids := queue.drain()
	require.Len(t, ids, 2)
	first, err := h.store.Notifications().GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationSLABreach, first.Type)
	assert.Equal(t, "SLA BREACH: "+ticket.TicketNumber+" - Response SLA breached", first.Subject)
	require.NotNil(t, first.WebhookURL)
	assert.Equal(t, muleURL+"/api/webhooks/sla-notification", *first.WebhookURL)
	assert.Equal(t, timer.ID, *first.SLAID)
	assert.Equal(t, "sla_breach", first.Payload["event_type"])
	assert.Equal(t, "response", first.Payload["sla_type"])
	assert.Equal(t, 270, first.Payload["minutes_overdue"])
	assert.Equal(t, "2024-01-08T15:00:00Z", first.Payload["timestamp"])
}

func TestHandlers_SLAWarningPayload(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	n := notifier(t, h, &fakePoster{})
	queue := &fakeQueue{}
	n.SetQueue(queue)
	n.RegisterHandlers()

	ticket, _ := h.timer(t, domain.PriorityCritical)
	h.clock.Advance(25 * time.Minute)
	_, err := h.sla.SweepWarnings(ctx, 0)
	require.NoError(t, err)

	ids := queue.drain()
	require.Len(t, ids, 1)
	warning, err := h.store.Notifications().GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "SLA Warning: "+ticket.TicketNumber+" - Response SLA at 83%", warning.Subject)
	assert.Equal(t, 83.3, warning.Payload["percent_elapsed"])
	assert.Equal(t, 5, warning.Payload["minutes_remaining"])
}

func TestHandlers_TicketLifecycle(t *testing.T) {
	h := seeded(t)
	ctx := context.Background()
	n := notifier(t, h, &fakePoster{})
	queue := &fakeQueue{}
	n.SetQueue(queue)
	n.RegisterHandlers()

	requester := h.agent(t, "olga")
	created, err := h.tickets.CreateTicket(ctx, CreateTicketInput{
		Title:       "Cannot open shared drive",
		Category:    "Access",
		Subcategory: "Access Request",
		RequesterID: &requester.ID,
	})
	require.NoError(t, err)

	// The group-only assignment produces no notification.
	ids := queue.drain()
	require.Len(t, ids, 1)
	intake, err := h.store.Notifications().GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationTicketCreated, intake.Type)
	assert.Equal(t, muleURL+"/api/webhooks/ticket-notification", *intake.WebhookURL)
	assert.Equal(t, "submitted", intake.Payload["status"])
	assert.Equal(t, "2024-01-08T14:00:00Z", intake.Payload["sla_response_due"])
	assert.Equal(t, created.Ticket.TicketNumber, intake.Payload["ticket_number"])

	pat := h.agent(t, "pat")
	_, err = h.assignment.Reassign(ctx, ReassignInput{TicketID: created.Ticket.ID, UserID: &pat.ID})
	require.NoError(t, err)
	ids = queue.drain()
	require.Len(t, ids, 1)
	assigned, err := h.store.Notifications().GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationTicketAssigned, assigned.Type)
	assert.Equal(t, "pat@company.com", *assigned.RecipientEmail)
	assert.Equal(t, "Access Management", assigned.Payload["assignment_group"])

	_, err = h.tickets.UpdateStatus(ctx, created.Ticket.ID, domain.TicketStatusResolved, events.Actor{Type: domain.ActorTypeAgent, ID: &pat.ID})
	require.NoError(t, err)
	ids = queue.drain()
	require.Len(t, ids, 1)
	resolved, err := h.store.Notifications().GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationTicketResolved, resolved.Type)
	assert.Equal(t, requester.ID, *resolved.RecipientID)
	assert.Equal(t, false, resolved.Payload["resolution_breached"])
}
