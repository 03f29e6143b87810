package domain

import "time"

// AssignmentGroup is a team that tickets are routed to.
type AssignmentGroup struct {
	ID          string
	Name        string
	Description string
	Email       string
	ManagerID   *string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AssignmentGroupMember carries the round-robin fairness state of an agent
// inside a group.
type AssignmentGroupMember struct {
	ID              string
	GroupID         string
	UserID          string
	UserName        string
	UserEmail       string
	IsActive        bool
	AssignmentCount int
	LastAssignedAt  *time.Time
	CreatedAt       time.Time
}

// RanksBefore orders members for round-robin: fewest assignments first, then
// never-assigned members, then the least recently assigned.
func (m AssignmentGroupMember) RanksBefore(other AssignmentGroupMember) bool {
	if m.AssignmentCount != other.AssignmentCount {
		return m.AssignmentCount < other.AssignmentCount
	}
	switch {
	case m.LastAssignedAt == nil && other.LastAssignedAt == nil:
		return m.CreatedAt.Before(other.CreatedAt)
	case m.LastAssignedAt == nil:
		return true
	case other.LastAssignedAt == nil:
		return false
	}
	return m.LastAssignedAt.Before(*other.LastAssignedAt)
}

// CategoryAssignmentMapping routes a category (and optional subcategory) to a group.
type CategoryAssignmentMapping struct {
	ID               string
	Category         string
	Subcategory      *string
	GroupID          string
	PriorityOverride *Priority
	CreatedAt        time.Time
}
