package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/itsm-sla/internal/api/dto"
	"github.com/spec-kit/itsm-sla/internal/domain"
	"github.com/spec-kit/itsm-sla/internal/service"
)

// SLAHandler serves SLA timer, sweep and policy endpoints.
type SLAHandler struct {
	sla      *service.SLAService
	resolver *service.SLAResolver
}

// NewSLAHandler constructs handler.
func NewSLAHandler(slaService *service.SLAService, resolver *service.SLAResolver) *SLAHandler {
	return &SLAHandler{sla: slaService, resolver: resolver}
}

// GetStatus GET /tickets/:id/sla.
func (h *SLAHandler) GetStatus(c *fiber.Ctx) error {
	report, err := h.sla.GetStatus(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SLAStatusResponse{
		SLAID:         report.SLAID,
		TicketID:      report.TicketID,
		SLAName:       report.SLAName,
		Status:        report.Status,
		Response:      legResponse(report.Response),
		Resolution:    legResponse(report.Resolution),
		PausedMinutes: report.PausedMinutes,
		PauseStartAt:  report.PauseStartAt,
		CreatedAt:     report.CreatedAt,
	}})
}

type timerAction func(ctx context.Context, ticketID string) (*domain.TicketSLA, error)

func (h *SLAHandler) transition(action timerAction) fiber.Handler {
	return func(c *fiber.Ctx) error {
		timer, err := action(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": timerResponse(timer)})
	}
}

// Pause POST /tickets/:id/sla/pause.
func (h *SLAHandler) Pause(c *fiber.Ctx) error { return h.transition(h.sla.Pause)(c) }

// Resume POST /tickets/:id/sla/resume.
func (h *SLAHandler) Resume(c *fiber.Ctx) error { return h.transition(h.sla.Resume)(c) }

// Cancel POST /tickets/:id/sla/cancel.
func (h *SLAHandler) Cancel(c *fiber.Ctx) error { return h.transition(h.sla.Cancel)(c) }

// MarkResponseMet POST /tickets/:id/sla/response-met.
func (h *SLAHandler) MarkResponseMet(c *fiber.Ctx) error {
	return h.transition(h.sla.MarkResponseMet)(c)
}

// MarkResolutionMet POST /tickets/:id/sla/resolution-met.
func (h *SLAHandler) MarkResolutionMet(c *fiber.Ctx) error {
	return h.transition(h.sla.MarkResolutionMet)(c)
}

// SweepBreaches POST /sla/sweeps/breaches.
func (h *SLAHandler) SweepBreaches(c *fiber.Ctx) error {
	result, err := h.sla.SweepBreaches(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.BreachResponse, 0, len(result.Breaches))
	for _, b := range result.Breaches {
		items = append(items, dto.BreachResponse{
			TicketID:       b.TicketID,
			TicketNumber:   b.TicketNumber,
			Title:          b.Title,
			Priority:       b.Priority,
			SLAID:          b.SLAID,
			SLAType:        b.Leg,
			DueAt:          b.DueAt,
			BreachedAt:     b.BreachedAt,
			MinutesOverdue: b.MinutesOverdue,
			AssignedTo:     b.AssignedTo,
		})
	}
	return c.JSON(fiber.Map{"data": dto.BreachSweepResponse{
		Processed: result.Processed,
		Failed:    result.Failed,
		Breaches:  items,
	}})
}

// SweepWarnings POST /sla/sweeps/warnings?threshold=80. Without a threshold
// each timer uses the one of its definition.
func (h *SLAHandler) SweepWarnings(c *fiber.Ctx) error {
	result, err := h.sla.SweepWarnings(c.UserContext(), parseIntQuery(c, "threshold", 0))
	if err != nil {
		return err
	}
	items := make([]dto.WarningResponse, 0, len(result.Warnings))
	for _, w := range result.Warnings {
		items = append(items, dto.WarningResponse{
			TicketID:         w.TicketID,
			TicketNumber:     w.TicketNumber,
			Title:            w.Title,
			Priority:         w.Priority,
			SLAID:            w.SLAID,
			SLAType:          w.Leg,
			DueAt:            w.DueAt,
			PercentElapsed:   w.PercentElapsed,
			MinutesRemaining: w.MinutesRemaining,
			AssignedTo:       w.AssignedTo,
		})
	}
	return c.JSON(fiber.Map{"data": dto.WarningSweepResponse{
		Processed: result.Processed,
		Failed:    result.Failed,
		Warnings:  items,
	}})
}

// ListDefinitions GET /sla/definitions.
func (h *SLAHandler) ListDefinitions(c *fiber.Ctx) error {
	defs, err := h.resolver.ListDefinitions(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.SLADefinitionResponse, 0, len(defs))
	for i := range defs {
		items = append(items, definitionResponse(&defs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateDefinition POST /sla/definitions.
func (h *SLAHandler) CreateDefinition(c *fiber.Ctx) error {
	var req dto.CreateSLADefinitionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	def, err := h.resolver.CreateDefinition(c.UserContext(), service.CreateDefinitionInput{
		Name:                    req.Name,
		Description:             req.Description,
		Priority:                req.Priority,
		Category:                req.Category,
		ResponseTimeMinutes:     req.ResponseTimeMinutes,
		ResolutionTimeHours:     req.ResolutionTimeHours,
		BusinessHoursOnly:       req.BusinessHoursOnly,
		WarningThresholdPercent: req.WarningThresholdPercent,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": definitionResponse(def)})
}
