package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/itsm-sla/internal/domain"
	"github.com/spec-kit/itsm-sla/internal/events"
	"github.com/spec-kit/itsm-sla/internal/observability"
	"github.com/spec-kit/itsm-sla/internal/repository"
	"github.com/spec-kit/itsm-sla/internal/repository/memstore"
)

// monday is 2024-01-08 10:00 UTC, inside business hours.
var monday = time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) ofType(t events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

type harness struct {
	store      repository.Store
	mem        *memstore.Store
	clock      *fakeClock
	dispatcher events.Dispatcher
	recorder   *recorder
	metrics    *observability.Metrics
	resolver   *SLAResolver
	sla        *SLAService
	assignment *AssignmentService
	tickets    *TicketService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessOn(t, memstore.New())
}

// newHarnessOn wires the services over store with an in-memory dispatcher
// whose events are recorded.
func newHarnessOn(t *testing.T, store repository.Store) *harness {
	t.Helper()
	d := events.NewInMemoryDispatcher()
	rec := &recorder{}
	for _, et := range []events.EventType{
		events.EventTicketCreated, events.EventTicketAssigned, events.EventTicketResolved,
		events.EventSLAWarning, events.EventSLABreached,
	} {
		d.Subscribe(et, rec.handle)
	}
	h := buildHarness(t, store, d)
	h.recorder = rec
	return h
}

func buildHarness(t *testing.T, store repository.Store, d events.Dispatcher) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	clock := newClock(monday)
	metrics := observability.NewMetrics()
	resolver := NewSLAResolver(store, logger, clock.Now)
	sla := NewSLAService(SLADependencies{
		Store: store, Resolver: resolver, Dispatcher: d, Metrics: metrics, Logger: logger, Now: clock.Now,
	})
	assignment := NewAssignmentService(AssignmentDependencies{
		Store: store, Dispatcher: d, Metrics: metrics, Logger: logger, Now: clock.Now,
	})
	tickets := NewTicketService(TicketDependencies{
		Store: store, SLA: sla, Assignment: assignment, Dispatcher: d, Logger: logger, Now: clock.Now,
	})
	h := &harness{
		store:      store,
		clock:      clock,
		dispatcher: d,
		metrics:    metrics,
		resolver:   resolver,
		sla:        sla,
		assignment: assignment,
		tickets:    tickets,
	}
	if mem, ok := store.(*memstore.Store); ok {
		h.mem = mem
	}
	return h
}

func (h *harness) ticket(t *testing.T, priority domain.Priority, category string) *domain.Ticket {
	t.Helper()
	now := h.clock.Now()
	ticket := &domain.Ticket{
		ID:           uuid.NewString(),
		TicketNumber: generateTicketNumber(),
		Title:        "Printer on fire",
		Type:         domain.TicketTypeIncident,
		Status:       domain.TicketStatusSubmitted,
		Priority:     priority,
		Category:     category,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, h.store.Tickets().Create(context.Background(), ticket))
	return ticket
}

func (h *harness) timer(t *testing.T, priority domain.Priority) (*domain.Ticket, *domain.TicketSLA) {
	t.Helper()
	ticket := h.ticket(t, priority, "Hardware")
	timer, err := h.sla.CreateTimer(context.Background(), CreateTimerInput{
		TicketID: ticket.ID,
		Priority: priority,
		Category: strPtr(ticket.Category),
	})
	require.NoError(t, err)
	return ticket, timer
}

func (h *harness) agent(t *testing.T, name string) *domain.User {
	t.Helper()
	user, err := h.assignment.CreateUser(context.Background(), CreateUserInput{
		FullName: name,
		Email:    name + "@company.com",
	})
	require.NoError(t, err)
	return user
}

func (h *harness) group(t *testing.T, name string, agents ...*domain.User) *domain.AssignmentGroup {
	t.Helper()
	ctx := context.Background()
	group, err := h.assignment.CreateGroup(ctx, CreateGroupInput{Name: name})
	require.NoError(t, err)
	for _, a := range agents {
		_, err := h.assignment.AddMember(ctx, group.ID, a.ID)
		require.NoError(t, err)
		h.clock.Advance(time.Second)
	}
	return group
}

func (h *harness) members(t *testing.T, groupID string) map[string]domain.AssignmentGroupMember {
	t.Helper()
	list, err := h.store.Assignments().ListMembers(context.Background(), groupID, false)
	require.NoError(t, err)
	out := make(map[string]domain.AssignmentGroupMember, len(list))
	for _, m := range list {
		out[m.UserName] = m
	}
	return out
}
