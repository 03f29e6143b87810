// Package memstore is an in-process implementation of repository.Store. It
// backs the service when no database is configured and drives the service tests.
package memstore

import (
	"context"
	"sync"

	"github.com/spec-kit/itsm-sla/internal/domain"
	"github.com/spec-kit/itsm-sla/internal/repository"
)

type state struct {
	users         map[string]domain.User
	tickets       map[string]domain.Ticket
	definitions   map[string]domain.SLADefinition
	timers        map[string]domain.TicketSLA
	groups        map[string]domain.AssignmentGroup
	members       map[string]domain.AssignmentGroupMember
	mappings      map[string]domain.CategoryAssignmentMapping
	notifications map[string]domain.Notification
	history       []domain.TicketHistory
}

func newState() *state {
	return &state{
		users:         map[string]domain.User{},
		tickets:       map[string]domain.Ticket{},
		definitions:   map[string]domain.SLADefinition{},
		timers:        map[string]domain.TicketSLA{},
		groups:        map[string]domain.AssignmentGroup{},
		members:       map[string]domain.AssignmentGroupMember{},
		mappings:      map[string]domain.CategoryAssignmentMapping{},
		notifications: map[string]domain.Notification{},
	}
}

func (s *state) clone() *state {
	out := newState()
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.tickets {
		out.tickets[k] = v
	}
	for k, v := range s.definitions {
		out.definitions[k] = v
	}
	for k, v := range s.timers {
		out.timers[k] = v
	}
	for k, v := range s.groups {
		out.groups[k] = v
	}
	for k, v := range s.members {
		out.members[k] = v
	}
	for k, v := range s.mappings {
		out.mappings[k] = v
	}
	for k, v := range s.notifications {
		out.notifications[k] = v
	}
	out.history = append([]domain.TicketHistory(nil), s.history...)
	return out
}

// Store keeps every table in memory behind a single mutex. Transactions hold
// the mutex for their whole duration, which serializes them.
type Store struct {
	mu    sync.Mutex
	state *state
}

// New returns an empty store.
func New() *Store {
	return &Store{state: newState()}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) root() *view { return &view{store: s} }

func (s *Store) Users() repository.UserRepository       { return s.root().Users() }
func (s *Store) Tickets() repository.TicketRepository   { return s.root().Tickets() }
func (s *Store) Timers() repository.TicketSLARepository { return s.root().Timers() }
func (s *Store) SLADefinitions() repository.SLADefinitionRepository {
	return s.root().SLADefinitions()
}
func (s *Store) Assignments() repository.AssignmentRepository { return s.root().Assignments() }
func (s *Store) Notifications() repository.NotificationRepository {
	return s.root().Notifications()
}
func (s *Store) History() repository.TicketHistoryRepository { return s.root().History() }

// ExecTx runs fn with the store locked and restores the previous state if fn fails.
func (s *Store) ExecTx(ctx context.Context, fn func(repository.Store) error) error {
	return s.root().ExecTx(ctx, fn)
}

// view is the Store handed to callers. Inside ExecTx the mutex is already
// held, so locked views skip locking.
type view struct {
	store  *Store
	locked bool
}

func (v *view) run(fn func(st *state) error) error {
	if !v.locked {
		v.store.mu.Lock()
		defer v.store.mu.Unlock()
	}
	return fn(v.store.state)
}

func (v *view) Users() repository.UserRepository                   { return userRepo{v} }
func (v *view) Tickets() repository.TicketRepository               { return ticketRepo{v} }
func (v *view) SLADefinitions() repository.SLADefinitionRepository { return definitionRepo{v} }
func (v *view) Timers() repository.TicketSLARepository             { return timerRepo{v} }
func (v *view) Assignments() repository.AssignmentRepository       { return assignmentRepo{v} }
func (v *view) Notifications() repository.NotificationRepository   { return notificationRepo{v} }
func (v *view) History() repository.TicketHistoryRepository        { return historyRepo{v} }

func (v *view) ExecTx(ctx context.Context, fn func(repository.Store) error) error {
	if v.locked {
		return fn(v)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s := v.store
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(&view{store: s, locked: true}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}
