//go:build integration

package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/itsm-sla/internal/domain"
	"github.com/spec-kit/itsm-sla/internal/events"
	"github.com/spec-kit/itsm-sla/internal/persistence"
	"github.com/spec-kit/itsm-sla/internal/repository"
)

// postgresHarness wires the services over a migrated Postgres. TEST_POSTGRES_DSN
// points at an existing database; otherwise a container is started.
func postgresHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image: "postgres:16-alpine",
				Env: map[string]string{
					"POSTGRES_PASSWORD": "test",
					"POSTGRES_USER":     "test",
					"POSTGRES_DB":       "itsm",
				},
				ExposedPorts: []string{"5432/tcp"},
				WaitingFor: wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60 * time.Second),
			},
			Started: true,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = container.Terminate(context.Background()) })

		host, err := container.Host(ctx)
		require.NoError(t, err)
		port, err := container.MappedPort(ctx, "5432")
		require.NoError(t, err)
		dsn = fmt.Sprintf("postgres://test:test@%s:%s/itsm?sslmode=disable", host, port.Port())
	}

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.Eventually(t, func() bool { return pool.Ping(ctx) == nil }, 30*time.Second, 500*time.Millisecond)
	require.NoError(t, persistence.RunMigrations(ctx, pool, zaptest.NewLogger(t)))

	return newHarnessOn(t, repository.NewPostgresStore(pool))
}

func TestPostgres_IntakeAndPause(t *testing.T) {
	h := postgresHarness(t)
	ctx := context.Background()
	_, err := NewSeeder(h.resolver, h.assignment, nil).Seed(ctx)
	require.NoError(t, err)

	mo := h.agent(t, "mo")
	network, err := h.store.Assignments().FindActiveGroupByName(ctx, "network operations")
	require.NoError(t, err)
	_, err = h.assignment.AddMember(ctx, network.ID, mo.ID)
	require.NoError(t, err)

	created, err := h.tickets.CreateTicket(ctx, CreateTicketInput{
		Title:           "VPN keeps dropping",
		Category:        "Network",
		Subcategory:     "VPN",
		AutoAssignAgent: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Network Operations", created.Assignment.GroupName)
	require.NotNil(t, created.Assignment.AssignedUserID)
	assert.Equal(t, mo.ID, *created.Assignment.AssignedUserID)
	assert.True(t, created.SLA.ResponseDueAt.Equal(time.Date(2024, 1, 8, 14, 0, 0, 0, time.UTC)))

	agentActor := events.Actor{Type: domain.ActorTypeAgent, ID: &mo.ID}
	_, err = h.tickets.UpdateStatus(ctx, created.Ticket.ID, domain.TicketStatusPendingUser, agentActor)
	require.NoError(t, err)
	h.clock.Advance(30 * time.Minute)
	update, err := h.tickets.UpdateStatus(ctx, created.Ticket.ID, domain.TicketStatusInProgress, agentActor)
	require.NoError(t, err)
	assert.Equal(t, domain.SLAStatusActive, update.SLA.Status)
	assert.Equal(t, 30, update.SLA.TotalPauseMinutes)

	report, err := h.sla.GetStatus(ctx, created.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "Medium SLA", report.SLAName)
	assert.Equal(t, 30, report.PausedMinutes)

	history, err := h.tickets.ListHistory(ctx, created.Ticket.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, history)

	open, err := h.store.Tickets().CountOpenByAssignee(ctx, mo.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, open)
}

func TestPostgres_RoundRobinUnderContention(t *testing.T) {
	h := postgresHarness(t)
	group := h.group(t, "Infrastructure", h.agent(t, "dana"), h.agent(t, "eli"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.assignment.NextAgent(context.Background(), group.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	members := h.members(t, group.ID)
	assert.Equal(t, 10, members["dana"].AssignmentCount)
	assert.Equal(t, 10, members["eli"].AssignmentCount)
}

func TestPostgres_BreachSweepFlagsBothLegs(t *testing.T) {
	h := postgresHarness(t)
	ctx := context.Background()
	_, timer := h.timer(t, domain.PriorityCritical)

	h.clock.Advance(5 * time.Hour)
	result, err := h.sla.SweepBreaches(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	require.Len(t, result.Breaches, 2)
	assert.Equal(t, 270, result.Breaches[0].MinutesOverdue)
	assert.Equal(t, 60, result.Breaches[1].MinutesOverdue)

	stored, err := h.store.Timers().GetByTicket(ctx, timer.TicketID)
	require.NoError(t, err)
	assert.Equal(t, domain.SLAStatusBreached, stored.Status)
	assert.True(t, stored.ResponseBreachNotified)
	assert.True(t, stored.ResolutionBreachNotified)

	again, err := h.sla.SweepBreaches(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Breaches)
}

func TestPostgres_InactiveDefinitionDoesNotBlockDefault(t *testing.T) {
	h := postgresHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.SLADefinitions().Create(ctx, &domain.SLADefinition{
		ID:                  "retired-low",
		Name:                "Old Low",
		Priority:            domain.PriorityLow,
		ResponseTimeMinutes: 600,
		ResolutionTimeHours: 96,
		CreatedAt:           monday,
		UpdatedAt:           monday,
	}))

	def, err := h.resolver.Resolve(ctx, domain.PriorityLow, nil)
	require.NoError(t, err)
	assert.Equal(t, "Low SLA", def.Name)
	assert.True(t, def.IsActive)
}

func TestPostgres_ExecTxRollsBack(t *testing.T) {
	h := postgresHarness(t)
	ctx := context.Background()

	err := h.store.ExecTx(ctx, func(tx repository.Store) error {
		if err := tx.Users().Create(ctx, &domain.User{
			ID: "u-rollback", FullName: "Ghost", Email: "ghost@company.com", IsActive: true, CreatedAt: monday,
		}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	_, err = h.store.Users().GetByID(ctx, "u-rollback")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
