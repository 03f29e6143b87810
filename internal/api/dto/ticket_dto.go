package dto

import (
	"time"

	"github.com/spec-kit/itsm-sla/internal/domain"
)

// CreateTicketRequest payload. Priority is a hint; without it the priority is
// detected from the title and description.
type CreateTicketRequest struct {
	EventType     string            `json:"event_type"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Type          domain.TicketType `json:"type"`
	Category      string            `json:"category"`
	Subcategory   string            `json:"subcategory"`
	Priority      *domain.Priority  `json:"priority"`
	RequesterID   *string           `json:"requester_id"`
	FallbackGroup string            `json:"fallback_group"`
	AutoAssign    bool              `json:"auto_assign"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// ReassignRequest payload. At least one field is required.
type ReassignRequest struct {
	GroupName *string `json:"group_name"`
	UserID    *string `json:"user_id"`
}

// TicketResponse represents a ticket.
type TicketResponse struct {
	ID                string              `json:"id"`
	TicketNumber      string              `json:"ticket_number"`
	Title             string              `json:"title"`
	Description       string              `json:"description"`
	Type              domain.TicketType   `json:"type"`
	Status            domain.TicketStatus `json:"status"`
	Priority          domain.Priority     `json:"priority"`
	Category          string              `json:"category"`
	Subcategory       string              `json:"subcategory"`
	RequesterID       *string             `json:"requester_id"`
	AssignmentGroupID *string             `json:"assignment_group_id"`
	AssignedToID      *string             `json:"assigned_to_id"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// AffectedEntities lists what intake found in the ticket text.
type AffectedEntities struct {
	User string `json:"user,omitempty"`
	CI   string `json:"ci,omitempty"`
}

// CreateTicketResponse is the outcome of intake.
type CreateTicketResponse struct {
	Ticket     TicketResponse      `json:"ticket"`
	Assignment *AssignmentResponse `json:"assignment"`
	SLA        *TimerResponse      `json:"sla"`
	Affected   AffectedEntities    `json:"affected"`
}

// StatusUpdateResponse is the outcome of a status change.
type StatusUpdateResponse struct {
	Ticket TicketResponse `json:"ticket"`
	SLA    *TimerResponse `json:"sla"`
}

// TicketHistoryResponse is one audit trail entry.
type TicketHistoryResponse struct {
	ID            string                  `json:"id"`
	ChangeType    domain.TicketChangeType `json:"change_type"`
	ChangedByType domain.ActorType        `json:"changed_by_type"`
	ChangedByID   *string                 `json:"changed_by_id"`
	OldValue      map[string]any          `json:"old_value"`
	NewValue      map[string]any          `json:"new_value"`
	CreatedAt     time.Time               `json:"created_at"`
}
