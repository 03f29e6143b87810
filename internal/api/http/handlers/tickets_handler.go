package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/itsm-sla/internal/api/dto"
	"github.com/spec-kit/itsm-sla/internal/service"
)

// TicketsHandler serves ticket intake and lifecycle endpoints.
type TicketsHandler struct {
	tickets *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{tickets: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.tickets.CreateTicket(c.UserContext(), service.CreateTicketInput{
		EventType:         req.EventType,
		Title:             req.Title,
		Description:       req.Description,
		Type:              req.Type,
		Category:          req.Category,
		Subcategory:       req.Subcategory,
		PriorityHint:      req.Priority,
		RequesterID:       req.RequesterID,
		FallbackGroupName: req.FallbackGroup,
		AutoAssignAgent:   req.AutoAssign,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.CreateTicketResponse{
		Ticket:     ticketResponse(result.Ticket),
		Assignment: assignmentResponse(result.Assignment),
		SLA:        timerResponse(result.SLA),
		Affected:   dto.AffectedEntities{User: result.Entities.User, CI: result.Entities.CI},
	}})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListHistory GET /tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	entries, err := h.tickets.ListHistory(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.TicketHistoryResponse{
			ID:            e.ID,
			ChangeType:    e.ChangeType,
			ChangedByType: e.ChangedByType,
			ChangedByID:   e.ChangedByID,
			OldValue:      e.OldValue,
			NewValue:      e.NewValue,
			CreatedAt:     e.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	update, err := h.tickets.UpdateStatus(c.UserContext(), c.Params("id"), req.Status, requestActor(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StatusUpdateResponse{
		Ticket: ticketResponse(update.Ticket),
		SLA:    timerResponse(update.SLA),
	}})
}
