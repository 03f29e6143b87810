package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/itsm-sla/internal/api/dto"
	"github.com/spec-kit/itsm-sla/internal/domain"
	"github.com/spec-kit/itsm-sla/internal/events"
	"github.com/spec-kit/itsm-sla/internal/service"
	apperrors "github.com/spec-kit/itsm-sla/pkg/util/errorutil"
)

const (
	headerActorType = "X-Actor-Type"
	headerActorID   = "X-Actor-ID"
)

// requestActor reads the caller from the actor headers. An id without a type
// is taken to be an agent; no headers at all means the system.
func requestActor(c *fiber.Ctx) events.Actor {
	id := strings.TrimSpace(c.Get(headerActorID))
	kind := domain.ActorType(strings.ToUpper(strings.TrimSpace(c.Get(headerActorType))))
	switch kind {
	case domain.ActorTypeUser, domain.ActorTypeAgent, domain.ActorTypeSystem:
	default:
		if id == "" {
			return events.SystemActor
		}
		kind = domain.ActorTypeAgent
	}
	actor := events.Actor{Type: kind}
	if id != "" {
		actor.ID = &id
	}
	return actor
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]any{"body": err.Error()})
	}
	return nil
}

func parseIntQuery(c *fiber.Ctx, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultVal
}

func ticketResponse(t *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:                t.ID,
		TicketNumber:      t.TicketNumber,
		Title:             t.Title,
		Description:       t.Description,
		Type:              t.Type,
		Status:            t.Status,
		Priority:          t.Priority,
		Category:          t.Category,
		Subcategory:       t.Subcategory,
		RequesterID:       t.RequesterID,
		AssignmentGroupID: t.AssignmentGroupID,
		AssignedToID:      t.AssignedToID,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

func timerResponse(t *domain.TicketSLA) *dto.TimerResponse {
	if t == nil {
		return nil
	}
	return &dto.TimerResponse{
		ID:                 t.ID,
		TicketID:           t.TicketID,
		SLADefinitionID:    t.SLADefinitionID,
		Status:             t.Status,
		ResponseDueAt:      t.ResponseDueAt,
		ResponseMetAt:      t.ResponseMetAt,
		ResponseBreached:   t.ResponseBreached,
		ResolutionDueAt:    t.ResolutionDueAt,
		ResolutionMetAt:    t.ResolutionMetAt,
		ResolutionBreached: t.ResolutionBreached,
		PauseStartAt:       t.PauseStartAt,
		TotalPauseMinutes:  t.TotalPauseMinutes,
	}
}

func assignmentResponse(a *service.AssignmentResult) *dto.AssignmentResponse {
	if a == nil {
		return nil
	}
	return &dto.AssignmentResponse{
		GroupID:          a.GroupID,
		GroupName:        a.GroupName,
		AssignedUserID:   a.AssignedUserID,
		AssignedUserName: a.AssignedUserName,
		PriorityOverride: a.PriorityOverride,
	}
}

func legResponse(l service.LegStatus) dto.LegStatusResponse {
	return dto.LegStatusResponse{
		DueAt:            l.DueAt,
		MetAt:            l.MetAt,
		Breached:         l.Breached,
		MinutesRemaining: l.MinutesRemaining,
		WarningSent:      l.WarningSent,
		BreachNotified:   l.BreachNotified,
	}
}

func definitionResponse(d *domain.SLADefinition) dto.SLADefinitionResponse {
	return dto.SLADefinitionResponse{
		ID:                      d.ID,
		Name:                    d.Name,
		Description:             d.Description,
		Priority:                d.Priority,
		Category:                d.Category,
		ResponseTimeMinutes:     d.ResponseTimeMinutes,
		ResolutionTimeHours:     d.ResolutionTimeHours,
		BusinessHoursOnly:       d.BusinessHoursOnly,
		WarningThresholdPercent: d.WarningThresholdPercent,
		IsActive:                d.IsActive,
	}
}

func groupResponse(g *domain.AssignmentGroup, memberCount *int) dto.GroupResponse {
	return dto.GroupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Email:       g.Email,
		ManagerID:   g.ManagerID,
		IsActive:    g.IsActive,
		MemberCount: memberCount,
		CreatedAt:   g.CreatedAt,
	}
}
