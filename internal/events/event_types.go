package events

import (
	"time"

	"github.com/spec-kit/itsm-sla/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated  EventType = "ticket_created"
	EventTicketAssigned EventType = "ticket_assigned"
	EventTicketResolved EventType = "ticket_resolved"
	EventSLAWarning     EventType = "sla_warning"
	EventSLABreached    EventType = "sla_breached"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type domain.ActorType `json:"type"`
	ID   *string          `json:"id,omitempty"`
}

// SystemActor is used for changes made by sweeps and automatic routing.
var SystemActor = Actor{Type: domain.ActorTypeSystem}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber string          `json:"ticket_number"`
	Title        string          `json:"title"`
	Priority     domain.Priority `json:"priority"`
	Category     string          `json:"category"`
	Subcategory  string          `json:"subcategory"`
	RequesterID  *string         `json:"requester_id,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	TicketNumber     string          `json:"ticket_number"`
	Priority         domain.Priority `json:"priority"`
	Category         string          `json:"category"`
	GroupID          string          `json:"group_id"`
	GroupName        string          `json:"group_name"`
	AssignedUserID   *string         `json:"assigned_user_id,omitempty"`
	AssignedUserName *string         `json:"assigned_user_name,omitempty"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	TicketNumber       string    `json:"ticket_number"`
	ResolvedAt         time.Time `json:"resolved_at"`
	ResolutionBreached bool      `json:"resolution_breached"`
}

// SLABreachedPayload describes one newly breached leg.
type SLABreachedPayload struct {
	SLAID          string          `json:"sla_id"`
	TicketNumber   string          `json:"ticket_number"`
	Leg            domain.SLALeg   `json:"sla_type"`
	DueAt          time.Time       `json:"due_at"`
	MinutesOverdue int             `json:"minutes_overdue"`
	Priority       domain.Priority `json:"priority"`
	Category       string          `json:"category"`
	AssignedToID   *string         `json:"assigned_to_id,omitempty"`
}

// SLAWarningPayload describes a leg that crossed its warning threshold.
type SLAWarningPayload struct {
	SLAID            string          `json:"sla_id"`
	TicketNumber     string          `json:"ticket_number"`
	Leg              domain.SLALeg   `json:"sla_type"`
	DueAt            time.Time       `json:"due_at"`
	PercentElapsed   float64         `json:"percent_elapsed"`
	MinutesRemaining int             `json:"minutes_remaining"`
	Priority         domain.Priority `json:"priority"`
	Category         string          `json:"category"`
	AssignedToID     *string         `json:"assigned_to_id,omitempty"`
}
