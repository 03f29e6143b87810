package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/itsm-sla/internal/domain"
	"github.com/spec-kit/itsm-sla/internal/events"
	"github.com/spec-kit/itsm-sla/internal/observability"
	"github.com/spec-kit/itsm-sla/internal/repository"
	apperrors "github.com/spec-kit/itsm-sla/pkg/util/errorutil"
)

// DefaultFallbackGroup receives tickets whose category has no mapping.
const DefaultFallbackGroup = "IT Service Desk"

// AssignmentService routes tickets to groups and picks agents round-robin.
type AssignmentService struct {
	store         repository.Store
	events        publisher
	metrics       *observability.Metrics
	logger        *zap.Logger
	now           func() time.Time
	fallbackGroup string
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Store         repository.Store
	Dispatcher    events.Dispatcher
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	Now           func() time.Time
	FallbackGroup string
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	now := clockOrDefault(deps.Now)
	logger := loggerOrNop(deps.Logger)
	fallback := strings.TrimSpace(deps.FallbackGroup)
	if fallback == "" {
		fallback = DefaultFallbackGroup
	}
	return &AssignmentService{
		store:         deps.Store,
		events:        publisher{dispatcher: deps.Dispatcher, logger: logger, now: now},
		metrics:       deps.Metrics,
		logger:        logger,
		now:           now,
		fallbackGroup: fallback,
	}
}

// RouteInput describes a routing request.
type RouteInput struct {
	TicketID          string
	Category          string
	Subcategory       *string
	FallbackGroupName string
	AutoAssignAgent   bool
	Actor             events.Actor
}

// AssignmentResult is where a ticket ended up.
type AssignmentResult struct {
	GroupID          string
	GroupName        string
	AssignedUserID   *string
	AssignedUserName *string
	PriorityOverride *domain.Priority
}

// RouteByCategory assigns the ticket to the group mapped to its category and,
// when asked, to the next agent of that group.
func (s *AssignmentService) RouteByCategory(ctx context.Context, in RouteInput) (*AssignmentResult, error) {
	box := &outbox{}
	var result *AssignmentResult
	err := s.store.ExecTx(ctx, func(tx repository.Store) error {
		var err error
		result, err = s.route(ctx, tx, in, box)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordAssignment(result)
	s.events.flush(ctx, box)
	return result, nil
}

func (s *AssignmentService) route(ctx context.Context, tx repository.Store, in RouteInput, box *outbox) (*AssignmentResult, error) {
	ticket, err := tx.Tickets().GetByID(ctx, in.TicketID)
	if err != nil {
		return nil, repoError(err, "ticket", map[string]any{"ticket_id": in.TicketID})
	}
	group, mapping, err := s.resolveGroup(ctx, tx, in.Category, in.Subcategory, in.FallbackGroupName)
	if err != nil {
		return nil, err
	}

	result := &AssignmentResult{GroupID: group.ID, GroupName: group.Name}
	if mapping != nil {
		result.PriorityOverride = mapping.PriorityOverride
	}

	var agent *domain.AssignmentGroupMember
	if in.AutoAssignAgent {
		agent, err = s.nextAgent(ctx, tx, group.ID)
		if err != nil {
			return nil, err
		}
	}
	if agent != nil {
		result.AssignedUserID = strPtr(agent.UserID)
		result.AssignedUserName = strPtr(agent.UserName)
	}

	if err := s.applyAssignment(ctx, tx, ticket, group.ID, result.AssignedUserID, in.Actor); err != nil {
		return nil, err
	}
	box.add(assignedEvent(ticket, result, in.Actor))
	s.logger.Info("ticket routed",
		zap.String("ticket_id", ticket.ID),
		zap.String("category", in.Category),
		zap.String("group", group.Name),
		zap.Bool("agent_assigned", agent != nil))
	return result, nil
}

// resolveGroup tries the (category, subcategory) mapping, then the
// category-wide one, then the fallback group by name. Mappings pointing at an
// inactive group are skipped.
func (s *AssignmentService) resolveGroup(ctx context.Context, tx repository.Store, category string, subcategory *string, fallback string) (*domain.AssignmentGroup, *domain.CategoryAssignmentMapping, error) {
	category = strings.TrimSpace(category)
	lookups := make([]*string, 0, 2)
	if subcategory != nil && strings.TrimSpace(*subcategory) != "" {
		lookups = append(lookups, strPtr(strings.TrimSpace(*subcategory)))
	}
	lookups = append(lookups, nil)

	if category != "" {
		for _, sub := range lookups {
			mapping, err := tx.Assignments().FindMapping(ctx, category, sub)
			if isNotFound(err) {
				continue
			}
			if err != nil {
				return nil, nil, apperrors.MapError(err)
			}
			group, err := tx.Assignments().GetGroup(ctx, mapping.GroupID)
			if isNotFound(err) {
				continue
			}
			if err != nil {
				return nil, nil, apperrors.MapError(err)
			}
			if !group.IsActive {
				continue
			}
			return group, mapping, nil
		}
	}

	name := strings.TrimSpace(fallback)
	if name == "" {
		name = s.fallbackGroup
	}
	group, err := tx.Assignments().FindActiveGroupByName(ctx, name)
	if err != nil {
		return nil, nil, repoError(err, "assignment group", map[string]any{"name": name, "category": category})
	}
	return group, nil, nil
}

// NextAgent picks the least loaded active member of a group and records the
// assignment. It returns nil when the group has no active member.
func (s *AssignmentService) NextAgent(ctx context.Context, groupID string) (*domain.AssignmentGroupMember, error) {
	var member *domain.AssignmentGroupMember
	err := s.store.ExecTx(ctx, func(tx repository.Store) error {
		var err error
		member, err = s.nextAgent(ctx, tx, groupID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

func (s *AssignmentService) nextAgent(ctx context.Context, tx repository.Store, groupID string) (*domain.AssignmentGroupMember, error) {
	// The group lock serializes pick-and-increment across concurrent callers.
	if err := tx.Assignments().LockGroup(ctx, groupID); err != nil {
		return nil, repoError(err, "assignment group", map[string]any{"group_id": groupID})
	}
	members, err := tx.Assignments().ListMembers(ctx, groupID, true)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(members) == 0 {
		s.logger.Warn("assignment group has no active members", zap.String("group_id", groupID))
		return nil, nil
	}
	best := members[0]
	for _, candidate := range members[1:] {
		if candidate.RanksBefore(best) {
			best = candidate
		}
	}
	picked, err := tx.Assignments().RecordAssignment(ctx, best.ID, s.now())
	if err != nil {
		return nil, repoError(err, "assignment group member", map[string]any{"member_id": best.ID})
	}
	return picked, nil
}

// ReassignInput moves a ticket to another group, another agent, or both.
// Without a named agent the target group picks one round-robin.
type ReassignInput struct {
	TicketID  string
	GroupName *string
	UserID    *string
	Actor     events.Actor
}

// Reassign changes the group and/or agent of a ticket.
func (s *AssignmentService) Reassign(ctx context.Context, in ReassignInput) (*AssignmentResult, error) {
	if in.GroupName == nil && in.UserID == nil {
		return nil, apperrors.NewValidationError("nothing to reassign", map[string]any{
			"group_name": "group_name or user_id required",
		})
	}
	box := &outbox{}
	var result *AssignmentResult
	err := s.store.ExecTx(ctx, func(tx repository.Store) error {
		var err error
		result, err = s.reassign(ctx, tx, in, box)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordAssignment(result)
	s.events.flush(ctx, box)
	return result, nil
}

func (s *AssignmentService) recordAssignment(result *AssignmentResult) {
	s.metrics.RecordAssignment(result.GroupName, result.AssignedUserID != nil)
}

func (s *AssignmentService) reassign(ctx context.Context, tx repository.Store, in ReassignInput, box *outbox) (*AssignmentResult, error) {
	ticket, err := tx.Tickets().GetByID(ctx, in.TicketID)
	if err != nil {
		return nil, repoError(err, "ticket", map[string]any{"ticket_id": in.TicketID})
	}

	var group *domain.AssignmentGroup
	switch {
	case in.GroupName != nil:
		group, err = tx.Assignments().FindActiveGroupByName(ctx, strings.TrimSpace(*in.GroupName))
		if err != nil {
			return nil, repoError(err, "assignment group", map[string]any{"name": *in.GroupName})
		}
	case ticket.AssignmentGroupID != nil:
		group, err = tx.Assignments().GetGroup(ctx, *ticket.AssignmentGroupID)
		if err != nil {
			return nil, repoError(err, "assignment group", map[string]any{"group_id": *ticket.AssignmentGroupID})
		}
	default:
		return nil, apperrors.NewInvalidState("ticket has no assignment group", map[string]any{"ticket_id": ticket.ID})
	}
	result := &AssignmentResult{GroupID: group.ID, GroupName: group.Name}

	if in.UserID != nil {
		user, err := tx.Users().GetByID(ctx, *in.UserID)
		if err != nil {
			return nil, repoError(err, "user", map[string]any{"user_id": *in.UserID})
		}
		result.AssignedUserID = strPtr(user.ID)
		result.AssignedUserName = strPtr(user.FullName)
		if err := s.countAssignment(ctx, tx, group.ID, user.ID); err != nil {
			return nil, err
		}
	} else {
		agent, err := s.nextAgent(ctx, tx, group.ID)
		if err != nil {
			return nil, err
		}
		if agent != nil {
			result.AssignedUserID = strPtr(agent.UserID)
			result.AssignedUserName = strPtr(agent.UserName)
		}
	}

	if err := s.applyAssignment(ctx, tx, ticket, group.ID, result.AssignedUserID, in.Actor); err != nil {
		return nil, err
	}
	box.add(assignedEvent(ticket, result, in.Actor))
	return result, nil
}

// countAssignment keeps round-robin state honest when an agent is picked by
// hand: their membership in the group is charged like a round-robin pick.
func (s *AssignmentService) countAssignment(ctx context.Context, tx repository.Store, groupID, userID string) error {
	if err := tx.Assignments().LockGroup(ctx, groupID); err != nil {
		return repoError(err, "assignment group", map[string]any{"group_id": groupID})
	}
	members, err := tx.Assignments().ListMembers(ctx, groupID, true)
	if err != nil {
		return apperrors.MapError(err)
	}
	for _, member := range members {
		if member.UserID != userID {
			continue
		}
		if _, err := tx.Assignments().RecordAssignment(ctx, member.ID, s.now()); err != nil {
			return apperrors.MapError(err)
		}
		return nil
	}
	return nil
}

// applyAssignment stores the new group and agent on the ticket and audits
// what changed.
func (s *AssignmentService) applyAssignment(ctx context.Context, tx repository.Store, ticket *domain.Ticket, groupID string, userID *string, actor events.Actor) error {
	if actor.Type == "" {
		actor = events.SystemActor
	}
	now := s.now()
	oldGroup, oldAssignee := ticket.AssignmentGroupID, ticket.AssignedToID

	ticket.AssignmentGroupID = strPtr(groupID)
	if userID != nil {
		ticket.AssignedToID = strPtr(*userID)
	}
	ticket.UpdatedAt = now
	if err := tx.Tickets().Update(ctx, ticket); err != nil {
		return apperrors.MapError(err)
	}

	if !sameString(oldGroup, ticket.AssignmentGroupID) {
		entry := historyEntry(now, ticket.ID, actor, domain.ChangeTypeGroup,
			map[string]any{"assignment_group_id": oldGroup},
			map[string]any{"assignment_group_id": ticket.AssignmentGroupID})
		if err := tx.History().Create(ctx, entry); err != nil {
			return apperrors.MapError(err)
		}
	}
	if !sameString(oldAssignee, ticket.AssignedToID) {
		entry := historyEntry(now, ticket.ID, actor, domain.ChangeTypeAssignee,
			map[string]any{"assigned_to_id": oldAssignee},
			map[string]any{"assigned_to_id": ticket.AssignedToID})
		if err := tx.History().Create(ctx, entry); err != nil {
			return apperrors.MapError(err)
		}
	}
	return nil
}

func assignedEvent(ticket *domain.Ticket, result *AssignmentResult, actor events.Actor) events.Event {
	if actor.Type == "" {
		actor = events.SystemActor
	}
	return events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketAssignedPayload{
			TicketNumber:     ticket.TicketNumber,
			Priority:         ticket.Priority,
			Category:         ticket.Category,
			GroupID:          result.GroupID,
			GroupName:        result.GroupName,
			AssignedUserID:   result.AssignedUserID,
			AssignedUserName: result.AssignedUserName,
		},
	}
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// MemberWorkload is one agent's share of a group's load.
type MemberWorkload struct {
	UserID           string
	UserName         string
	TotalAssignments int
	OpenTickets      int
	LastAssignedAt   *time.Time
}

// GroupWorkload summarizes a group's active members.
type GroupWorkload struct {
	GroupID          string
	GroupName        string
	TotalMembers     int
	TotalOpenTickets int
	Members          []MemberWorkload
}

// GroupWorkload reports assignment totals and open tickets per active member.
func (s *AssignmentService) GroupWorkload(ctx context.Context, groupID string) (*GroupWorkload, error) {
	group, err := s.store.Assignments().GetGroup(ctx, groupID)
	if err != nil {
		return nil, repoError(err, "assignment group", map[string]any{"group_id": groupID})
	}
	members, err := s.store.Assignments().ListMembers(ctx, groupID, true)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	out := &GroupWorkload{
		GroupID:      group.ID,
		GroupName:    group.Name,
		TotalMembers: len(members),
		Members:      make([]MemberWorkload, 0, len(members)),
	}
	for _, member := range members {
		open, err := s.store.Tickets().CountOpenByAssignee(ctx, member.UserID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		out.Members = append(out.Members, MemberWorkload{
			UserID:           member.UserID,
			UserName:         member.UserName,
			TotalAssignments: member.AssignmentCount,
			OpenTickets:      open,
			LastAssignedAt:   member.LastAssignedAt,
		})
		out.TotalOpenTickets += open
	}
	return out, nil
}

// GroupSummary is an active group with its member count.
type GroupSummary struct {
	Group       domain.AssignmentGroup
	MemberCount int
}

// ListGroups returns the active groups.
func (s *AssignmentService) ListGroups(ctx context.Context) ([]GroupSummary, error) {
	groups, err := s.store.Assignments().ListGroups(ctx, true)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	out := make([]GroupSummary, 0, len(groups))
	for _, group := range groups {
		members, err := s.store.Assignments().ListMembers(ctx, group.ID, true)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		out = append(out, GroupSummary{Group: group, MemberCount: len(members)})
	}
	return out, nil
}
