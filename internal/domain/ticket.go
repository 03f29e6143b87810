package domain

import (
	"fmt"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusSubmitted   TicketStatus = "submitted"
	TicketStatusInProgress  TicketStatus = "in_progress"
	TicketStatusPendingUser TicketStatus = "pending_user"
	TicketStatusResolved    TicketStatus = "resolved"
	TicketStatusClosed      TicketStatus = "closed"
	TicketStatusCancelled   TicketStatus = "cancelled"
)

// Valid reports whether s is a known ticket status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusSubmitted, TicketStatusInProgress, TicketStatusPendingUser,
		TicketStatusResolved, TicketStatusClosed, TicketStatusCancelled:
		return true
	}
	return false
}

// Priority enumerates SLA urgency.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Priorities lists every priority from most to least urgent.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ParsePriority accepts any casing of a known priority.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", raw)
	}
	return p, nil
}

// TicketType classifies the request.
type TicketType string

const (
	TicketTypeIncident       TicketType = "incident"
	TicketTypeServiceRequest TicketType = "service_request"
	TicketTypeChangeRequest  TicketType = "change_request"
	TicketTypeProblem        TicketType = "problem"
)

// Valid reports whether t is a known ticket type.
func (t TicketType) Valid() bool {
	switch t {
	case TicketTypeIncident, TicketTypeServiceRequest, TicketTypeChangeRequest, TicketTypeProblem:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                string
	TicketNumber      string
	Title             string
	Description       string
	Type              TicketType
	Status            TicketStatus
	Priority          Priority
	Category          string
	Subcategory       string
	RequesterID       *string
	AssignmentGroupID *string
	AssignedToID      *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Open reports whether the ticket still counts towards an agent's workload.
func (t Ticket) Open() bool {
	switch t.Status {
	case TicketStatusSubmitted, TicketStatusInProgress, TicketStatusPendingUser:
		return true
	}
	return false
}
