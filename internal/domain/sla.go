package domain

import "time"

// SLAStatus is the state of a ticket's SLA timer.
type SLAStatus string

const (
	SLAStatusActive    SLAStatus = "active"
	SLAStatusPaused    SLAStatus = "paused"
	SLAStatusBreached  SLAStatus = "breached"
	SLAStatusAchieved  SLAStatus = "achieved"
	SLAStatusCancelled SLAStatus = "cancelled"
)

var slaTransitions = map[SLAStatus][]SLAStatus{
	SLAStatusActive:    {SLAStatusPaused, SLAStatusBreached, SLAStatusAchieved, SLAStatusCancelled},
	SLAStatusPaused:    {SLAStatusActive, SLAStatusCancelled},
	SLAStatusBreached:  {},
	SLAStatusAchieved:  {},
	SLAStatusCancelled: {},
}

// Valid reports whether s is a known timer status.
func (s SLAStatus) Valid() bool {
	_, ok := slaTransitions[s]
	return ok
}

// Terminal reports whether no further transition is possible.
func (s SLAStatus) Terminal() bool {
	switch s {
	case SLAStatusBreached, SLAStatusAchieved, SLAStatusCancelled:
		return true
	}
	return false
}

// Running reports whether the timer still tracks the ticket.
func (s SLAStatus) Running() bool {
	return s == SLAStatusActive || s == SLAStatusPaused
}

// CanTransition reports whether the state machine allows s -> next.
func (s SLAStatus) CanTransition(next SLAStatus) bool {
	for _, candidate := range slaTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// SLALeg identifies one of the two independent SLA clocks.
type SLALeg string

const (
	SLALegResponse   SLALeg = "response"
	SLALegResolution SLALeg = "resolution"
)

// DefaultWarningThresholdPercent applies when a definition does not set one.
const DefaultWarningThresholdPercent = 80

// SLADefinition is a named policy for a priority and optional category.
type SLADefinition struct {
	ID                      string
	Name                    string
	Description             string
	Priority                Priority
	Category                *string
	ResponseTimeMinutes     int
	ResolutionTimeHours     int
	BusinessHoursOnly       bool
	WarningThresholdPercent int
	IsActive                bool
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// ResolutionMinutes returns the resolution budget in minutes.
func (d SLADefinition) ResolutionMinutes() int {
	return d.ResolutionTimeHours * 60
}

// TicketSLA is the SLA timer attached to a ticket. Due times are computed once
// at creation and only ever shifted by pauses.
type TicketSLA struct {
	ID                       string
	TicketID                 string
	SLADefinitionID          string
	Status                   SLAStatus
	ResponseDueAt            time.Time
	ResponseMetAt            *time.Time
	ResponseBreached         bool
	ResolutionDueAt          time.Time
	ResolutionMetAt          *time.Time
	ResolutionBreached       bool
	PauseStartAt             *time.Time
	TotalPauseMinutes        int
	ResponseWarningSent      bool
	ResolutionWarningSent    bool
	ResponseBreachNotified   bool
	ResolutionBreachNotified bool
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// DueAt returns the deadline of the given leg.
func (t TicketSLA) DueAt(leg SLALeg) time.Time {
	if leg == SLALegResponse {
		return t.ResponseDueAt
	}
	return t.ResolutionDueAt
}

// MetAt returns when the given leg was met, if it was.
func (t TicketSLA) MetAt(leg SLALeg) *time.Time {
	if leg == SLALegResponse {
		return t.ResponseMetAt
	}
	return t.ResolutionMetAt
}

// Breached reports the breach flag of the given leg.
func (t TicketSLA) Breached(leg SLALeg) bool {
	if leg == SLALegResponse {
		return t.ResponseBreached
	}
	return t.ResolutionBreached
}

// WarningSent reports the warning flag of the given leg.
func (t TicketSLA) WarningSent(leg SLALeg) bool {
	if leg == SLALegResponse {
		return t.ResponseWarningSent
	}
	return t.ResolutionWarningSent
}
