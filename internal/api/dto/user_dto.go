package dto

import (
	"time"

	"github.com/spec-kit/itsm-sla/internal/domain"
)

// CreateUserRequest payload for requesters and agents.
type CreateUserRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// UserResponse represents a user.
type UserResponse struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateGroupRequest payload.
type CreateGroupRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Email       string  `json:"email"`
	ManagerID   *string `json:"manager_id"`
}

// AddMemberRequest payload.
type AddMemberRequest struct {
	UserID string `json:"user_id"`
}

// CreateMappingRequest payload.
type CreateMappingRequest struct {
	Category         string           `json:"category"`
	Subcategory      *string          `json:"subcategory"`
	GroupID          string           `json:"group_id"`
	PriorityOverride *domain.Priority `json:"priority_override"`
}

// MappingResponse represents a routing row.
type MappingResponse struct {
	ID               string           `json:"id"`
	Category         string           `json:"category"`
	Subcategory      *string          `json:"subcategory"`
	GroupID          string           `json:"group_id"`
	PriorityOverride *domain.Priority `json:"priority_override"`
}

// MemberResponse represents a group membership.
type MemberResponse struct {
	ID              string     `json:"id"`
	GroupID         string     `json:"group_id"`
	UserID          string     `json:"user_id"`
	IsActive        bool       `json:"is_active"`
	AssignmentCount int        `json:"assignment_count"`
	LastAssignedAt  *time.Time `json:"last_assigned_at"`
}
