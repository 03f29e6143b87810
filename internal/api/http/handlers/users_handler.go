package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/itsm-sla/internal/api/dto"
	"github.com/spec-kit/itsm-sla/internal/service"
)

// UsersHandler registers requesters and agents.
type UsersHandler struct {
	assignment *service.AssignmentService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(assignmentService *service.AssignmentService) *UsersHandler {
	return &UsersHandler{assignment: assignmentService}
}

// Create handles POST /users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.assignment.CreateUser(c.UserContext(), service.CreateUserInput{
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.UserResponse{
			ID:        user.ID,
			FullName:  user.FullName,
			Email:     user.Email,
			IsActive:  user.IsActive,
			CreatedAt: user.CreatedAt,
		},
	})
}
