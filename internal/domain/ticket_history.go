package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeStatus   TicketChangeType = "STATUS_CHANGE"
	ChangeTypeAssignee TicketChangeType = "ASSIGNEE_CHANGE"
	ChangeTypeGroup    TicketChangeType = "GROUP_CHANGE"
	ChangeTypeCategory TicketChangeType = "CATEGORY_CHANGE"
	ChangeTypeSLA      TicketChangeType = "SLA_CHANGE"
)

// ActorType indicates who caused a change.
type ActorType string

const (
	ActorTypeUser   ActorType = "USER"
	ActorTypeAgent  ActorType = "AGENT"
	ActorTypeSystem ActorType = "SYSTEM"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID            string
	TicketID      string
	ChangedByType ActorType
	ChangedByID   *string
	ChangeType    TicketChangeType
	OldValue      map[string]any
	NewValue      map[string]any
	CreatedAt     time.Time
}
