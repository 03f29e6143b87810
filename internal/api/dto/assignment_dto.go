package dto

import (
	"time"

	"github.com/spec-kit/itsm-sla/internal/domain"
)

// AssignmentResponse is where a ticket ended up.
type AssignmentResponse struct {
	GroupID          string           `json:"group_id"`
	GroupName        string           `json:"group_name"`
	AssignedUserID   *string          `json:"assigned_user_id"`
	AssignedUserName *string          `json:"assigned_user_name"`
	PriorityOverride *domain.Priority `json:"priority_override,omitempty"`
}

// GroupResponse represents an assignment group.
type GroupResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Email       string    `json:"email"`
	ManagerID   *string   `json:"manager_id"`
	IsActive    bool      `json:"is_active"`
	MemberCount *int      `json:"member_count,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// MemberWorkloadResponse is one agent's share of a group's load.
type MemberWorkloadResponse struct {
	UserID           string     `json:"user_id"`
	UserName         string     `json:"user_name"`
	TotalAssignments int        `json:"total_assignments"`
	OpenTickets      int        `json:"open_tickets"`
	LastAssignedAt   *time.Time `json:"last_assigned_at"`
}

// GroupWorkloadResponse summarizes a group's active members.
type GroupWorkloadResponse struct {
	GroupID          string                   `json:"group_id"`
	GroupName        string                   `json:"group_name"`
	TotalMembers     int                      `json:"total_members"`
	TotalOpenTickets int                      `json:"total_open_tickets"`
	Members          []MemberWorkloadResponse `json:"members"`
}
