package dto

import (
	"time"

	"github.com/spec-kit/itsm-sla/internal/domain"
)

// TimerResponse represents a ticket's SLA timer.
type TimerResponse struct {
	ID                 string           `json:"id"`
	TicketID           string           `json:"ticket_id"`
	SLADefinitionID    string           `json:"sla_definition_id"`
	Status             domain.SLAStatus `json:"status"`
	ResponseDueAt      time.Time        `json:"response_due_at"`
	ResponseMetAt      *time.Time       `json:"response_met_at"`
	ResponseBreached   bool             `json:"response_breached"`
	ResolutionDueAt    time.Time        `json:"resolution_due_at"`
	ResolutionMetAt    *time.Time       `json:"resolution_met_at"`
	ResolutionBreached bool             `json:"resolution_breached"`
	PauseStartAt       *time.Time       `json:"pause_start_at"`
	TotalPauseMinutes  int              `json:"total_pause_minutes"`
}

// LegStatusResponse reports one SLA clock.
type LegStatusResponse struct {
	DueAt            time.Time  `json:"due_at"`
	MetAt            *time.Time `json:"met_at"`
	Breached         bool       `json:"breached"`
	MinutesRemaining *int       `json:"minutes_remaining"`
	WarningSent      bool       `json:"warning_sent"`
	BreachNotified   bool       `json:"breach_notified"`
}

// SLAStatusResponse is the SLA report of a ticket.
type SLAStatusResponse struct {
	SLAID         string            `json:"sla_id"`
	TicketID      string            `json:"ticket_id"`
	SLAName       string            `json:"sla_name"`
	Status        domain.SLAStatus  `json:"status"`
	Response      LegStatusResponse `json:"response"`
	Resolution    LegStatusResponse `json:"resolution"`
	PausedMinutes int               `json:"paused_minutes"`
	PauseStartAt  *time.Time        `json:"pause_start_at"`
	CreatedAt     time.Time         `json:"created_at"`
}

// BreachResponse describes a leg flagged by a breach sweep.
type BreachResponse struct {
	TicketID       string          `json:"ticket_id"`
	TicketNumber   string          `json:"ticket_number"`
	Title          string          `json:"title"`
	Priority       domain.Priority `json:"priority"`
	SLAID          string          `json:"sla_id"`
	SLAType        domain.SLALeg   `json:"sla_type"`
	DueAt          time.Time       `json:"due_at"`
	BreachedAt     time.Time       `json:"breached_at"`
	MinutesOverdue int             `json:"minutes_overdue"`
	AssignedTo     *string         `json:"assigned_to"`
}

// BreachSweepResponse is the outcome of a breach sweep.
type BreachSweepResponse struct {
	Processed int              `json:"processed"`
	Failed    int              `json:"failed"`
	Breaches  []BreachResponse `json:"breaches"`
}

// WarningResponse describes a leg that crossed its warning threshold.
type WarningResponse struct {
	TicketID         string          `json:"ticket_id"`
	TicketNumber     string          `json:"ticket_number"`
	Title            string          `json:"title"`
	Priority         domain.Priority `json:"priority"`
	SLAID            string          `json:"sla_id"`
	SLAType          domain.SLALeg   `json:"sla_type"`
	DueAt            time.Time       `json:"due_at"`
	PercentElapsed   float64         `json:"percent_elapsed"`
	MinutesRemaining int             `json:"minutes_remaining"`
	AssignedTo       *string         `json:"assigned_to"`
}

// WarningSweepResponse is the outcome of a warning sweep.
type WarningSweepResponse struct {
	Processed int               `json:"processed"`
	Failed    int               `json:"failed"`
	Warnings  []WarningResponse `json:"warnings"`
}

// CreateSLADefinitionRequest payload.
type CreateSLADefinitionRequest struct {
	Name                    string          `json:"name"`
	Description             string          `json:"description"`
	Priority                domain.Priority `json:"priority"`
	Category                *string         `json:"category"`
	ResponseTimeMinutes     int             `json:"response_time_minutes"`
	ResolutionTimeHours     int             `json:"resolution_time_hours"`
	BusinessHoursOnly       bool            `json:"business_hours_only"`
	WarningThresholdPercent int             `json:"warning_threshold_percent"`
}

// SLADefinitionResponse represents an SLA policy.
type SLADefinitionResponse struct {
	ID                      string          `json:"id"`
	Name                    string          `json:"name"`
	Description             string          `json:"description"`
	Priority                domain.Priority `json:"priority"`
	Category                *string         `json:"category"`
	ResponseTimeMinutes     int             `json:"response_time_minutes"`
	ResolutionTimeHours     int             `json:"resolution_time_hours"`
	BusinessHoursOnly       bool            `json:"business_hours_only"`
	WarningThresholdPercent int             `json:"warning_threshold_percent"`
	IsActive                bool            `json:"is_active"`
}

// ProcessPendingResponse summarizes a delivery run.
type ProcessPendingResponse struct {
	Processed int                    `json:"processed"`
	Success   int                    `json:"success"`
	Failed    int                    `json:"failed"`
	Errors    []NotificationErrorDTO `json:"errors"`
}

// NotificationErrorDTO names an undeliverable notification.
type NotificationErrorDTO struct {
	NotificationID string `json:"notification_id"`
	Error          string `json:"error"`
}
