package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/itsm-sla/internal/api/dto"
	"github.com/spec-kit/itsm-sla/internal/service"
)

// AssignmentHandler serves group, workload and reassignment endpoints.
type AssignmentHandler struct {
	assignment *service.AssignmentService
}

// NewAssignmentHandler constructs handler.
func NewAssignmentHandler(assignmentService *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignment: assignmentService}
}

// ListGroups GET /assignment-groups.
func (h *AssignmentHandler) ListGroups(c *fiber.Ctx) error {
	groups, err := h.assignment.ListGroups(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.GroupResponse, 0, len(groups))
	for i := range groups {
		count := groups[i].MemberCount
		items = append(items, groupResponse(&groups[i].Group, &count))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Workload GET /assignment-groups/:id/workload.
func (h *AssignmentHandler) Workload(c *fiber.Ctx) error {
	workload, err := h.assignment.GroupWorkload(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	members := make([]dto.MemberWorkloadResponse, 0, len(workload.Members))
	for _, m := range workload.Members {
		members = append(members, dto.MemberWorkloadResponse{
			UserID:           m.UserID,
			UserName:         m.UserName,
			TotalAssignments: m.TotalAssignments,
			OpenTickets:      m.OpenTickets,
			LastAssignedAt:   m.LastAssignedAt,
		})
	}
	return c.JSON(fiber.Map{"data": dto.GroupWorkloadResponse{
		GroupID:          workload.GroupID,
		GroupName:        workload.GroupName,
		TotalMembers:     workload.TotalMembers,
		TotalOpenTickets: workload.TotalOpenTickets,
		Members:          members,
	}})
}

// CreateGroup POST /assignment-groups.
func (h *AssignmentHandler) CreateGroup(c *fiber.Ctx) error {
	var req dto.CreateGroupRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	group, err := h.assignment.CreateGroup(c.UserContext(), service.CreateGroupInput{
		Name:        req.Name,
		Description: req.Description,
		Email:       req.Email,
		ManagerID:   req.ManagerID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": groupResponse(group, nil)})
}

// AddMember POST /assignment-groups/:id/members.
func (h *AssignmentHandler) AddMember(c *fiber.Ctx) error {
	var req dto.AddMemberRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	member, err := h.assignment.AddMember(c.UserContext(), c.Params("id"), req.UserID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.MemberResponse{
		ID:              member.ID,
		GroupID:         member.GroupID,
		UserID:          member.UserID,
		IsActive:        member.IsActive,
		AssignmentCount: member.AssignmentCount,
		LastAssignedAt:  member.LastAssignedAt,
	}})
}

// CreateMapping POST /category-mappings.
func (h *AssignmentHandler) CreateMapping(c *fiber.Ctx) error {
	var req dto.CreateMappingRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	mapping, err := h.assignment.CreateMapping(c.UserContext(), service.CreateMappingInput{
		Category:         req.Category,
		Subcategory:      req.Subcategory,
		GroupID:          req.GroupID,
		PriorityOverride: req.PriorityOverride,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.MappingResponse{
		ID:               mapping.ID,
		Category:         mapping.Category,
		Subcategory:      mapping.Subcategory,
		GroupID:          mapping.GroupID,
		PriorityOverride: mapping.PriorityOverride,
	}})
}

// Reassign POST /tickets/:id/reassign.
func (h *AssignmentHandler) Reassign(c *fiber.Ctx) error {
	var req dto.ReassignRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.assignment.Reassign(c.UserContext(), service.ReassignInput{
		TicketID:  c.Params("id"),
		GroupName: req.GroupName,
		UserID:    req.UserID,
		Actor:     requestActor(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignmentResponse(result)})
}
