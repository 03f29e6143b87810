package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/itsm-sla/internal/domain"
	"github.com/spec-kit/itsm-sla/internal/events"
	"github.com/spec-kit/itsm-sla/internal/repository"
	"github.com/spec-kit/itsm-sla/internal/repository/memstore"
	apperrors "github.com/spec-kit/itsm-sla/pkg/util/errorutil"
)

// failingStore fails every timer insert made inside a transaction.
type failingStore struct {
	repository.Store
}

func (s failingStore) ExecTx(ctx context.Context, fn func(repository.Store) error) error {
	return s.Store.ExecTx(ctx, func(tx repository.Store) error {
		return fn(failingStore{tx})
	})
}

func (s failingStore) Timers() repository.TicketSLARepository {
	return failingTimers{s.Store.Timers()}
}

type failingTimers struct {
	repository.TicketSLARepository
}

func (failingTimers) Create(context.Context, *domain.TicketSLA) error {
	return errors.New("disk full")
}

func TestCreateTicket_Intake(t *testing.T) {
	h := seeded(t)
	ctx := context.Background()
	requester := h.agent(t, "jane")
	mo := h.agent(t, "mo")
	network, err := h.store.Assignments().FindActiveGroupByName(ctx, "Network Operations")
	require.NoError(t, err)
	_, err = h.assignment.AddMember(ctx, network.ID, mo.ID)
	require.NoError(t, err)

	result, err := h.tickets.CreateTicket(ctx, CreateTicketInput{
		Title:           "VPN keeps dropping",
		Description:     "Reported by jane.doe@company.com from home",
		Category:        "Network",
		Subcategory:     "VPN",
		RequesterID:     &requester.ID,
		AutoAssignAgent: true,
	})
	require.NoError(t, err)

	ticket := result.Ticket
	assert.Equal(t, domain.PriorityMedium, ticket.Priority)
	assert.Equal(t, domain.TicketTypeIncident, ticket.Type)
	assert.Equal(t, domain.TicketStatusSubmitted, ticket.Status)
	assert.Equal(t, "Network", ticket.Category)
	assert.Equal(t, "VPN", ticket.Subcategory)
	assert.Regexp(t, `^TKT-[0-9A-F]{8}$`, ticket.TicketNumber)
	assert.Equal(t, "jane.doe@company.com", result.Entities.User)

	assert.Equal(t, "Network Operations", result.Assignment.GroupName)
	require.NotNil(t, result.Assignment.AssignedUserID)
	assert.Equal(t, mo.ID, *result.Assignment.AssignedUserID)

	require.NotNil(t, result.SLA)
	assert.Equal(t, time.Date(2024, 1, 8, 14, 0, 0, 0, time.UTC), result.SLA.ResponseDueAt)

	stored, err := h.tickets.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, network.ID, *stored.AssignmentGroupID)
	assert.Equal(t, mo.ID, *stored.AssignedToID)

	emitted := h.recorder.all()
	require.Len(t, emitted, 2)
	assert.Equal(t, events.EventTicketCreated, emitted[0].Type)
	assert.Equal(t, events.EventTicketAssigned, emitted[1].Type)
	assert.Equal(t, domain.ActorTypeUser, emitted[0].Actor.Type)
	assert.NotEmpty(t, emitted[0].ID)
}

func TestCreateTicket_DetectsPriority(t *testing.T) {
	h := seeded(t)
	result, err := h.tickets.CreateTicket(context.Background(), CreateTicketInput{
		Title:       "Production down: server payroll01 unreachable",
		Category:    "System",
		Subcategory: "Alert",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityCritical, result.Ticket.Priority)
	assert.Equal(t, "Infrastructure", result.Assignment.GroupName)
	assert.Equal(t, monday.Add(30*time.Minute), result.SLA.ResponseDueAt)
	assert.Equal(t, "payroll01", result.Entities.CI)
}

func TestCreateTicket_MappingPriorityOverride(t *testing.T) {
	h := seeded(t)
	ctx := context.Background()
	security, err := h.store.Assignments().FindActiveGroupByName(ctx, "Security Operations")
	require.NoError(t, err)
	_, err = h.assignment.CreateMapping(ctx, CreateMappingInput{
		Category:         "Security",
		Subcategory:      strPtr("Phishing"),
		GroupID:          security.ID,
		PriorityOverride: priorityPtr(domain.PriorityCritical),
	})
	require.NoError(t, err)

	in := CreateTicketInput{Title: "Suspicious mail", Category: "Security", Subcategory: "Phishing"}
	result, err := h.tickets.CreateTicket(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityCritical, result.Ticket.Priority)
	assert.Equal(t, monday.Add(4*time.Hour), result.SLA.ResolutionDueAt)

	assigned := h.recorder.ofType(events.EventTicketAssigned)
	require.Len(t, assigned, 1)
	assert.Equal(t, domain.PriorityCritical, assigned[0].Payload.(events.TicketAssignedPayload).Priority)

	// A caller supplied priority is never overridden.
	in.PriorityHint = priorityPtr(domain.PriorityLow)
	result, err = h.tickets.CreateTicket(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityLow, result.Ticket.Priority)
}

func TestCreateTicket_RollsBackOnTimerFailure(t *testing.T) {
	h := newHarnessOn(t, failingStore{memstore.New()})
	ctx := context.Background()
	nia := h.agent(t, "nia")
	group := h.group(t, "IT Service Desk", nia)

	_, err := h.tickets.CreateTicket(ctx, CreateTicketInput{
		Title:           "Keyboard missing keys",
		Category:        "General",
		Subcategory:     "Other",
		AutoAssignAgent: true,
	})
	require.Error(t, err)

	assert.Zero(t, h.members(t, group.ID)["nia"].AssignmentCount)
	open, err := h.store.Tickets().CountOpenByAssignee(ctx, nia.ID)
	require.NoError(t, err)
	assert.Zero(t, open)
	assert.Empty(t, h.recorder.all())
}

func TestCreateTicket_Validation(t *testing.T) {
	h := seeded(t)
	ctx := context.Background()

	_, err := h.tickets.CreateTicket(ctx, CreateTicketInput{Title: "  "})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	bogus := domain.Priority("p1")
	_, err = h.tickets.CreateTicket(ctx, CreateTicketInput{Title: "x", PriorityHint: &bogus})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = h.tickets.CreateTicket(ctx, CreateTicketInput{Title: "x", RequesterID: strPtr("missing")})
	assert.True(t, apperrors.IsNotFound(err))
	assert.Empty(t, h.recorder.all())
}

func TestUpdateStatus_DrivesTimer(t *testing.T) {
	h := seeded(t)
	ctx := context.Background()
	created, err := h.tickets.CreateTicket(ctx, CreateTicketInput{
		Title:        "Mail server unreachable",
		Category:     "System",
		Subcategory:  "Alert",
		PriorityHint: priorityPtr(domain.PriorityCritical),
	})
	require.NoError(t, err)
	id := created.Ticket.ID
	agent := events.Actor{Type: domain.ActorTypeAgent, ID: strPtr("agent-1")}

	h.clock.Advance(10 * time.Minute)
	update, err := h.tickets.UpdateStatus(ctx, id, domain.TicketStatusInProgress, agent)
	require.NoError(t, err)
	require.NotNil(t, update.SLA.ResponseMetAt)
	assert.False(t, update.SLA.ResponseBreached)

	h.clock.Advance(10 * time.Minute)
	update, err = h.tickets.UpdateStatus(ctx, id, domain.TicketStatusPendingUser, agent)
	require.NoError(t, err)
	assert.Equal(t, domain.SLAStatusPaused, update.SLA.Status)

	h.clock.Advance(30 * time.Minute)
	update, err = h.tickets.UpdateStatus(ctx, id, domain.TicketStatusInProgress, agent)
	require.NoError(t, err)
	assert.Equal(t, domain.SLAStatusActive, update.SLA.Status)
	assert.Equal(t, 30, update.SLA.TotalPauseMinutes)
	assert.Equal(t, monday.Add(10*time.Minute), *update.SLA.ResponseMetAt)
	assert.Equal(t, created.SLA.ResolutionDueAt.Add(30*time.Minute), update.SLA.ResolutionDueAt)

	h.clock.Advance(10 * time.Minute)
	update, err = h.tickets.UpdateStatus(ctx, id, domain.TicketStatusResolved, agent)
	require.NoError(t, err)
	assert.Equal(t, domain.SLAStatusAchieved, update.SLA.Status)
	resolved := h.recorder.ofType(events.EventTicketResolved)
	require.Len(t, resolved, 1)
	assert.False(t, resolved[0].Payload.(events.TicketResolvedPayload).ResolutionBreached)

	update, err = h.tickets.UpdateStatus(ctx, id, domain.TicketStatusClosed, agent)
	require.NoError(t, err)
	assert.Nil(t, update.SLA)
	assert.Equal(t, domain.TicketStatusClosed, update.Ticket.Status)

	_, err = h.tickets.UpdateStatus(ctx, id, domain.TicketStatusInProgress, agent)
	assert.True(t, apperrors.IsInvalidState(err))

	history, err := h.tickets.ListHistory(ctx, id)
	require.NoError(t, err)
	var statusChanges int
	for _, entry := range history {
		if entry.ChangeType == domain.ChangeTypeStatus {
			statusChanges++
			assert.Equal(t, domain.ActorTypeAgent, entry.ChangedByType)
		}
	}
	assert.Equal(t, 5, statusChanges)
}

func TestUpdateStatus_ResolvedFromPendingUserIgnoresPause(t *testing.T) {
	h := seeded(t)
	ctx := context.Background()
	created, err := h.tickets.CreateTicket(ctx, CreateTicketInput{
		Title:        "Mail server unreachable",
		Category:     "System",
		Subcategory:  "Alert",
		PriorityHint: priorityPtr(domain.PriorityCritical),
	})
	require.NoError(t, err)
	id := created.Ticket.ID
	agent := events.Actor{Type: domain.ActorTypeAgent, ID: strPtr("agent-1")}

	h.clock.Advance(10 * time.Minute)
	_, err = h.tickets.UpdateStatus(ctx, id, domain.TicketStatusPendingUser, agent)
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	update, err := h.tickets.UpdateStatus(ctx, id, domain.TicketStatusResolved, agent)
	require.NoError(t, err)
	assert.Equal(t, domain.SLAStatusAchieved, update.SLA.Status)
	assert.False(t, update.SLA.ResponseBreached)
	assert.False(t, update.SLA.ResolutionBreached)
	assert.Equal(t, 60, update.SLA.TotalPauseMinutes)
}

func TestUpdateStatus_CancelStopsTimer(t *testing.T) {
	h := seeded(t)
	ctx := context.Background()
	created, err := h.tickets.CreateTicket(ctx, CreateTicketInput{Title: "Duplicate request", Category: "General", Subcategory: "Other"})
	require.NoError(t, err)

	update, err := h.tickets.UpdateStatus(ctx, created.Ticket.ID, domain.TicketStatusCancelled, events.Actor{})
	require.NoError(t, err)
	assert.Equal(t, domain.SLAStatusCancelled, update.SLA.Status)

	h.clock.Advance(100 * time.Hour)
	sweep, err := h.sla.SweepBreaches(ctx)
	require.NoError(t, err)
	assert.Empty(t, sweep.Breaches)
}

func TestUpdateStatus_WithoutTimer(t *testing.T) {
	h := newHarness(t)
	ticket := h.ticket(t, domain.PriorityLow, "General")

	update, err := h.tickets.UpdateStatus(context.Background(), ticket.ID, domain.TicketStatusInProgress, events.SystemActor)
	require.NoError(t, err)
	assert.Nil(t, update.SLA)
	assert.Equal(t, domain.TicketStatusInProgress, update.Ticket.Status)

	_, err = h.tickets.UpdateStatus(context.Background(), ticket.ID, "reopened", events.SystemActor)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	_, err = h.tickets.UpdateStatus(context.Background(), "missing", domain.TicketStatusResolved, events.SystemActor)
	assert.True(t, apperrors.IsNotFound(err))
}
