package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/itsm-sla/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness rule.
	ErrConflict = errors.New("record already exists")
)

// Store groups the repositories and runs units of work atomically.
type Store interface {
	Users() UserRepository
	Tickets() TicketRepository
	SLADefinitions() SLADefinitionRepository
	Timers() TicketSLARepository
	Assignments() AssignmentRepository
	Notifications() NotificationRepository
	History() TicketHistoryRepository

	// ExecTx runs fn against a transactional view of the store. Returning an
	// error rolls back every write made through that view.
	ExecTx(ctx context.Context, fn func(Store) error) error
}

// UserRepository stores requesters and agents.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	CountOpenByAssignee(ctx context.Context, userID string) (int, error)
}

// SLADefinitionRepository stores SLA policies.
type SLADefinitionRepository interface {
	Create(ctx context.Context, def *domain.SLADefinition) error
	// CreateIfAbsent inserts def unless a definition already holds its
	// (priority, category) key, in which case it reports false.
	CreateIfAbsent(ctx context.Context, def *domain.SLADefinition) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.SLADefinition, error)
	// FindActive matches priority and category exactly; a nil category only
	// matches wildcard definitions.
	FindActive(ctx context.Context, priority domain.Priority, category *string) (*domain.SLADefinition, error)
	List(ctx context.Context) ([]domain.SLADefinition, error)
}

// TicketSLARepository stores SLA timers.
type TicketSLARepository interface {
	Create(ctx context.Context, timer *domain.TicketSLA) error
	Update(ctx context.Context, timer *domain.TicketSLA) error
	// GetByTicket returns the running timer of a ticket, or its most recent one.
	GetByTicket(ctx context.Context, ticketID string) (*domain.TicketSLA, error)
	// LockByTicket is GetByTicket holding the row lock until the transaction ends.
	LockByTicket(ctx context.Context, ticketID string) (*domain.TicketSLA, error)
	LockByID(ctx context.Context, id string) (*domain.TicketSLA, error)
	ListByStatus(ctx context.Context, status domain.SLAStatus) ([]domain.TicketSLA, error)
}

// AssignmentRepository stores groups, their members and the category routing table.
type AssignmentRepository interface {
	CreateGroup(ctx context.Context, group *domain.AssignmentGroup) error
	GetGroup(ctx context.Context, id string) (*domain.AssignmentGroup, error)
	// FindActiveGroupByName matches names case-insensitively.
	FindActiveGroupByName(ctx context.Context, name string) (*domain.AssignmentGroup, error)
	ListGroups(ctx context.Context, activeOnly bool) ([]domain.AssignmentGroup, error)
	// LockGroup serializes round-robin picks within a group.
	LockGroup(ctx context.Context, groupID string) error

	AddMember(ctx context.Context, member *domain.AssignmentGroupMember) error
	ListMembers(ctx context.Context, groupID string, activeOnly bool) ([]domain.AssignmentGroupMember, error)
	// RecordAssignment increments the member's count and stamps at.
	RecordAssignment(ctx context.Context, memberID string, at time.Time) (*domain.AssignmentGroupMember, error)

	CreateMapping(ctx context.Context, mapping *domain.CategoryAssignmentMapping) error
	// FindMapping matches category and subcategory exactly; nil subcategory
	// only matches category-wide rows.
	FindMapping(ctx context.Context, category string, subcategory *string) (*domain.CategoryAssignmentMapping, error)
}

// NotificationRepository stores outbound notifications and delivery state.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	Update(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	ListByStatus(ctx context.Context, status domain.NotificationStatus, limit int) ([]domain.Notification, error)
}

// TicketHistoryRepository stores audit entries.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

// mapError translates driver errors into repository sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrConflict
		case "23503":
			// A referenced row is missing.
			return ErrNotFound
		}
	}
	return err
}
