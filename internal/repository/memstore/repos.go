package memstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/itsm-sla/internal/domain"
	"github.com/spec-kit/itsm-sla/internal/repository"
)

type userRepo struct{ v *view }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	return r.v.run(func(st *state) error {
		if _, ok := st.users[user.ID]; ok {
			return repository.ErrConflict
		}
		for _, existing := range st.users {
			if strings.EqualFold(existing.Email, user.Email) {
				return repository.ErrConflict
			}
		}
		stored := *user
		stored.Email = strings.ToLower(stored.Email)
		st.users[user.ID] = stored
		return nil
	})
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	var out *domain.User
	err := r.v.run(func(st *state) error {
		user, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &user
		return nil
	})
	return out, err
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	var out *domain.User
	err := r.v.run(func(st *state) error {
		for _, user := range st.users {
			if strings.EqualFold(user.Email, email) {
				u := user
				out = &u
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

type ticketRepo struct{ v *view }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	return r.v.run(func(st *state) error {
		if _, ok := st.tickets[ticket.ID]; ok {
			return repository.ErrConflict
		}
		for _, existing := range st.tickets {
			if existing.TicketNumber == ticket.TicketNumber {
				return repository.ErrConflict
			}
		}
		st.tickets[ticket.ID] = *ticket
		return nil
	})
}

func (r ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	return r.v.run(func(st *state) error {
		if _, ok := st.tickets[ticket.ID]; !ok {
			return repository.ErrNotFound
		}
		st.tickets[ticket.ID] = *ticket
		return nil
	})
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.v.run(func(st *state) error {
		ticket, ok := st.tickets[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &ticket
		return nil
	})
	return out, err
}

func (r ticketRepo) CountOpenByAssignee(_ context.Context, userID string) (int, error) {
	count := 0
	err := r.v.run(func(st *state) error {
		for _, ticket := range st.tickets {
			if ticket.AssignedToID != nil && *ticket.AssignedToID == userID && ticket.Open() {
				count++
			}
		}
		return nil
	})
	return count, err
}

type definitionRepo struct{ v *view }

func sameCategory(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r definitionRepo) Create(_ context.Context, def *domain.SLADefinition) error {
	return r.v.run(func(st *state) error {
		if _, ok := st.definitions[def.ID]; ok {
			return repository.ErrConflict
		}
		if def.IsActive {
			for _, existing := range st.definitions {
				if existing.IsActive && existing.Priority == def.Priority && sameCategory(existing.Category, def.Category) {
					return repository.ErrConflict
				}
			}
		}
		st.definitions[def.ID] = *def
		return nil
	})
}

func (r definitionRepo) CreateIfAbsent(ctx context.Context, def *domain.SLADefinition) (bool, error) {
	err := r.Create(ctx, def)
	if errors.Is(err, repository.ErrConflict) {
		return false, nil
	}
	return err == nil, err
}

func (r definitionRepo) GetByID(_ context.Context, id string) (*domain.SLADefinition, error) {
	var out *domain.SLADefinition
	err := r.v.run(func(st *state) error {
		def, ok := st.definitions[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &def
		return nil
	})
	return out, err
}

func (r definitionRepo) FindActive(_ context.Context, priority domain.Priority, category *string) (*domain.SLADefinition, error) {
	var out *domain.SLADefinition
	err := r.v.run(func(st *state) error {
		for _, def := range st.definitions {
			if def.IsActive && def.Priority == priority && sameCategory(def.Category, category) {
				d := def
				out = &d
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r definitionRepo) List(_ context.Context) ([]domain.SLADefinition, error) {
	var out []domain.SLADefinition
	err := r.v.run(func(st *state) error {
		for _, def := range st.definitions {
			out = append(out, def)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return categoryKey(out[i].Category) < categoryKey(out[j].Category)
	})
	return out, err
}

func categoryKey(c *string) string {
	if c == nil {
		return ""
	}
	return *c
}

type timerRepo struct{ v *view }

func (r timerRepo) Create(_ context.Context, timer *domain.TicketSLA) error {
	return r.v.run(func(st *state) error {
		if _, ok := st.timers[timer.ID]; ok {
			return repository.ErrConflict
		}
		for _, existing := range st.timers {
			if existing.TicketID == timer.TicketID && existing.Status.Running() && timer.Status.Running() {
				return repository.ErrConflict
			}
		}
		st.timers[timer.ID] = *timer
		return nil
	})
}

func (r timerRepo) Update(_ context.Context, timer *domain.TicketSLA) error {
	return r.v.run(func(st *state) error {
		if _, ok := st.timers[timer.ID]; !ok {
			return repository.ErrNotFound
		}
		st.timers[timer.ID] = *timer
		return nil
	})
}

func (r timerRepo) GetByTicket(_ context.Context, ticketID string) (*domain.TicketSLA, error) {
	var out *domain.TicketSLA
	err := r.v.run(func(st *state) error {
		for _, timer := range st.timers {
			if timer.TicketID != ticketID {
				continue
			}
			if out == nil || newerTimer(timer, *out) {
				t := timer
				out = &t
			}
		}
		if out == nil {
			return repository.ErrNotFound
		}
		return nil
	})
	return out, err
}

// newerTimer prefers a running timer, then the most recently created one.
func newerTimer(a, b domain.TicketSLA) bool {
	if a.Status.Running() != b.Status.Running() {
		return a.Status.Running()
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func (r timerRepo) LockByTicket(ctx context.Context, ticketID string) (*domain.TicketSLA, error) {
	return r.GetByTicket(ctx, ticketID)
}

func (r timerRepo) LockByID(_ context.Context, id string) (*domain.TicketSLA, error) {
	var out *domain.TicketSLA
	err := r.v.run(func(st *state) error {
		timer, ok := st.timers[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &timer
		return nil
	})
	return out, err
}

func (r timerRepo) ListByStatus(_ context.Context, status domain.SLAStatus) ([]domain.TicketSLA, error) {
	var out []domain.TicketSLA
	err := r.v.run(func(st *state) error {
		for _, timer := range st.timers {
			if timer.Status == status {
				out = append(out, timer)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

type assignmentRepo struct{ v *view }

func (r assignmentRepo) CreateGroup(_ context.Context, group *domain.AssignmentGroup) error {
	return r.v.run(func(st *state) error {
		if _, ok := st.groups[group.ID]; ok {
			return repository.ErrConflict
		}
		for _, existing := range st.groups {
			if existing.Name == group.Name {
				return repository.ErrConflict
			}
		}
		st.groups[group.ID] = *group
		return nil
	})
}

func (r assignmentRepo) GetGroup(_ context.Context, id string) (*domain.AssignmentGroup, error) {
	var out *domain.AssignmentGroup
	err := r.v.run(func(st *state) error {
		group, ok := st.groups[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &group
		return nil
	})
	return out, err
}

func (r assignmentRepo) FindActiveGroupByName(_ context.Context, name string) (*domain.AssignmentGroup, error) {
	var out *domain.AssignmentGroup
	err := r.v.run(func(st *state) error {
		for _, group := range st.groups {
			if group.IsActive && strings.EqualFold(group.Name, name) {
				g := group
				out = &g
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r assignmentRepo) ListGroups(_ context.Context, activeOnly bool) ([]domain.AssignmentGroup, error) {
	var out []domain.AssignmentGroup
	err := r.v.run(func(st *state) error {
		for _, group := range st.groups {
			if activeOnly && !group.IsActive {
				continue
			}
			out = append(out, group)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (r assignmentRepo) LockGroup(_ context.Context, groupID string) error {
	return r.v.run(func(st *state) error {
		if _, ok := st.groups[groupID]; !ok {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (r assignmentRepo) AddMember(_ context.Context, member *domain.AssignmentGroupMember) error {
	return r.v.run(func(st *state) error {
		if _, ok := st.groups[member.GroupID]; !ok {
			return repository.ErrNotFound
		}
		if _, ok := st.users[member.UserID]; !ok {
			return repository.ErrNotFound
		}
		for _, existing := range st.members {
			if existing.ID == member.ID || (existing.GroupID == member.GroupID && existing.UserID == member.UserID) {
				return repository.ErrConflict
			}
		}
		stored := *member
		stored.UserName, stored.UserEmail = "", ""
		st.members[member.ID] = stored
		return nil
	})
}

// withUser fills the joined user columns.
func withUser(st *state, member domain.AssignmentGroupMember) domain.AssignmentGroupMember {
	if user, ok := st.users[member.UserID]; ok {
		member.UserName = user.FullName
		member.UserEmail = user.Email
	}
	return member
}

func (r assignmentRepo) ListMembers(_ context.Context, groupID string, activeOnly bool) ([]domain.AssignmentGroupMember, error) {
	var out []domain.AssignmentGroupMember
	err := r.v.run(func(st *state) error {
		for _, member := range st.members {
			if member.GroupID != groupID || (activeOnly && !member.IsActive) {
				continue
			}
			out = append(out, withUser(st, member))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		switch {
		case out[i].RanksBefore(out[j]):
			return true
		case out[j].RanksBefore(out[i]):
			return false
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (r assignmentRepo) RecordAssignment(_ context.Context, memberID string, at time.Time) (*domain.AssignmentGroupMember, error) {
	var out *domain.AssignmentGroupMember
	err := r.v.run(func(st *state) error {
		member, ok := st.members[memberID]
		if !ok {
			return repository.ErrNotFound
		}
		member.AssignmentCount++
		stamp := at
		member.LastAssignedAt = &stamp
		st.members[memberID] = member
		joined := withUser(st, member)
		out = &joined
		return nil
	})
	return out, err
}

func (r assignmentRepo) CreateMapping(_ context.Context, mapping *domain.CategoryAssignmentMapping) error {
	return r.v.run(func(st *state) error {
		if _, ok := st.groups[mapping.GroupID]; !ok {
			return repository.ErrNotFound
		}
		for _, existing := range st.mappings {
			if existing.ID == mapping.ID ||
				(existing.Category == mapping.Category && sameCategory(existing.Subcategory, mapping.Subcategory)) {
				return repository.ErrConflict
			}
		}
		st.mappings[mapping.ID] = *mapping
		return nil
	})
}

func (r assignmentRepo) FindMapping(_ context.Context, category string, subcategory *string) (*domain.CategoryAssignmentMapping, error) {
	var out *domain.CategoryAssignmentMapping
	err := r.v.run(func(st *state) error {
		for _, mapping := range st.mappings {
			if mapping.Category == category && sameCategory(mapping.Subcategory, subcategory) {
				m := mapping
				out = &m
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

type notificationRepo struct{ v *view }

func (r notificationRepo) Create(_ context.Context, n *domain.Notification) error {
	return r.v.run(func(st *state) error {
		if _, ok := st.notifications[n.ID]; ok {
			return repository.ErrConflict
		}
		st.notifications[n.ID] = *n
		return nil
	})
}

func (r notificationRepo) Update(_ context.Context, n *domain.Notification) error {
	return r.v.run(func(st *state) error {
		if _, ok := st.notifications[n.ID]; !ok {
			return repository.ErrNotFound
		}
		st.notifications[n.ID] = *n
		return nil
	})
}

func (r notificationRepo) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	var out *domain.Notification
	err := r.v.run(func(st *state) error {
		n, ok := st.notifications[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &n
		return nil
	})
	return out, err
}

func (r notificationRepo) ListByStatus(_ context.Context, status domain.NotificationStatus, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []domain.Notification
	err := r.v.run(func(st *state) error {
		for _, n := range st.notifications {
			if n.Status == status {
				out = append(out, n)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

type historyRepo struct{ v *view }

func (r historyRepo) Create(_ context.Context, history *domain.TicketHistory) error {
	return r.v.run(func(st *state) error {
		st.history = append(st.history, *history)
		return nil
	})
}

func (r historyRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	var out []domain.TicketHistory
	err := r.v.run(func(st *state) error {
		for _, h := range st.history {
			if h.TicketID == ticketID {
				out = append(out, h)
			}
		}
		return nil
	})
	return out, err
}
