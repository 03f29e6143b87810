package service

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/itsm-sla/internal/calendar"
	"github.com/spec-kit/itsm-sla/internal/domain"
	"github.com/spec-kit/itsm-sla/internal/events"
	"github.com/spec-kit/itsm-sla/internal/observability"
	"github.com/spec-kit/itsm-sla/internal/repository"
	apperrors "github.com/spec-kit/itsm-sla/pkg/util/errorutil"
)

// SLAService owns the per-ticket SLA timer state machine and the breach and
// warning sweeps.
type SLAService struct {
	store    repository.Store
	resolver *SLAResolver
	events   publisher
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// SLADependencies bundles collaborators for the SLA service.
type SLADependencies struct {
	Store      repository.Store
	Resolver   *SLAResolver
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewSLAService constructs the service.
func NewSLAService(deps SLADependencies) *SLAService {
	now := clockOrDefault(deps.Now)
	logger := loggerOrNop(deps.Logger)
	resolver := deps.Resolver
	if resolver == nil {
		resolver = NewSLAResolver(deps.Store, logger, now)
	}
	return &SLAService{
		store:    deps.Store,
		resolver: resolver,
		events:   publisher{dispatcher: deps.Dispatcher, logger: logger, now: now},
		metrics:  deps.Metrics,
		logger:   logger,
		now:      now,
	}
}

// CreateTimerInput describes the ticket a timer is started for.
type CreateTimerInput struct {
	TicketID  string
	Priority  domain.Priority
	Category  *string
	CreatedAt time.Time
}

// CreateTimer starts the timer of a ticket against its resolved definition.
func (s *SLAService) CreateTimer(ctx context.Context, in CreateTimerInput) (*domain.TicketSLA, error) {
	var timer *domain.TicketSLA
	err := s.store.ExecTx(ctx, func(tx repository.Store) error {
		var err error
		timer, err = s.createTimer(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return timer, nil
}

func (s *SLAService) createTimer(ctx context.Context, tx repository.Store, in CreateTimerInput) (*domain.TicketSLA, error) {
	if _, err := tx.Tickets().GetByID(ctx, in.TicketID); err != nil {
		return nil, repoError(err, "ticket", map[string]any{"ticket_id": in.TicketID})
	}

	existing, err := tx.Timers().GetByTicket(ctx, in.TicketID)
	switch {
	case err == nil && existing.Status.Running():
		return nil, apperrors.NewConflict("ticket already has a running sla timer", map[string]any{
			"ticket_id": in.TicketID,
			"sla_id":    existing.ID,
		})
	case err != nil && !isNotFound(err):
		return nil, apperrors.MapError(err)
	}

	def, err := s.resolver.resolve(ctx, tx, in.Priority, in.Category)
	if err != nil {
		return nil, err
	}

	now := s.now()
	start := in.CreatedAt.UTC()
	if in.CreatedAt.IsZero() {
		start = now
	}
	timer := &domain.TicketSLA{
		ID:              uuid.NewString(),
		TicketID:        in.TicketID,
		SLADefinitionID: def.ID,
		Status:          domain.SLAStatusActive,
		ResponseDueAt:   calendar.DueTime(start, def.ResponseTimeMinutes, def.BusinessHoursOnly),
		ResolutionDueAt: calendar.DueTime(start, def.ResolutionMinutes(), def.BusinessHoursOnly),
		CreatedAt:       start,
		UpdatedAt:       now,
	}
	if err := tx.Timers().Create(ctx, timer); err != nil {
		return nil, repoError(err, "sla timer", map[string]any{"ticket_id": in.TicketID})
	}
	s.logger.Debug("sla timer created",
		zap.String("ticket_id", in.TicketID),
		zap.String("sla_id", timer.ID),
		zap.String("sla_definition_id", def.ID),
		zap.Time("response_due_at", timer.ResponseDueAt),
		zap.Time("resolution_due_at", timer.ResolutionDueAt))
	return timer, nil
}

// transition mutates a locked timer; it reports whether anything changed.
type transition func(timer *domain.TicketSLA, now time.Time) (bool, error)

// MarkResponseMet stamps the first response. Already met legs and closed
// timers are left alone.
func (s *SLAService) MarkResponseMet(ctx context.Context, ticketID string) (*domain.TicketSLA, error) {
	return s.apply(ctx, ticketID, markResponseMet)
}

// MarkResolutionMet stamps the resolution and closes the timer as achieved or
// breached.
func (s *SLAService) MarkResolutionMet(ctx context.Context, ticketID string) (*domain.TicketSLA, error) {
	return s.apply(ctx, ticketID, markResolutionMet)
}

// Pause stops the clock of an active timer.
func (s *SLAService) Pause(ctx context.Context, ticketID string) (*domain.TicketSLA, error) {
	return s.apply(ctx, ticketID, pauseTimer)
}

// Resume restarts a paused timer and shifts both deadlines by the pause.
func (s *SLAService) Resume(ctx context.Context, ticketID string) (*domain.TicketSLA, error) {
	return s.apply(ctx, ticketID, resumeTimer)
}

// Cancel closes a running timer; cancelling a closed timer is a no-op.
func (s *SLAService) Cancel(ctx context.Context, ticketID string) (*domain.TicketSLA, error) {
	return s.apply(ctx, ticketID, cancelTimer)
}

func (s *SLAService) apply(ctx context.Context, ticketID string, fn transition) (*domain.TicketSLA, error) {
	var timer *domain.TicketSLA
	err := s.store.ExecTx(ctx, func(tx repository.Store) error {
		var err error
		timer, err = s.applyIn(ctx, tx, ticketID, events.SystemActor, fn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return timer, nil
}

// applyIn runs fn against the ticket's timer under its row lock and persists
// the result together with an audit entry.
func (s *SLAService) applyIn(ctx context.Context, tx repository.Store, ticketID string, actor events.Actor, fn transition) (*domain.TicketSLA, error) {
	timer, err := tx.Timers().LockByTicket(ctx, ticketID)
	if err != nil {
		return nil, repoError(err, "sla timer", map[string]any{"ticket_id": ticketID})
	}
	now := s.now()
	before := *timer
	changed, err := fn(timer, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		return timer, nil
	}
	timer.UpdatedAt = now
	if err := tx.Timers().Update(ctx, timer); err != nil {
		return nil, apperrors.MapError(err)
	}
	if before.Status != timer.Status {
		entry := historyEntry(now, ticketID, actor, domain.ChangeTypeSLA,
			map[string]any{"sla_status": before.Status},
			map[string]any{"sla_status": timer.Status, "sla_id": timer.ID})
		if err := tx.History().Create(ctx, entry); err != nil {
			return nil, apperrors.MapError(err)
		}
	}
	return timer, nil
}

func markResponseMet(timer *domain.TicketSLA, now time.Time) (bool, error) {
	if timer.Status.Terminal() || timer.ResponseMetAt != nil {
		return false, nil
	}
	due := timer.ResponseDueAt
	// The open pause has not been folded into the deadline yet.
	if timer.Status == domain.SLAStatusPaused && timer.PauseStartAt != nil {
		due = due.Add(now.Sub(*timer.PauseStartAt))
	}
	timer.ResponseMetAt = &now
	timer.ResponseBreached = timer.ResponseBreached || now.After(due)
	return true, nil
}

func markResolutionMet(timer *domain.TicketSLA, now time.Time) (bool, error) {
	if timer.Status.Terminal() || timer.ResolutionMetAt != nil {
		return false, nil
	}
	if timer.Status == domain.SLAStatusPaused {
		foldPause(timer, now)
	}
	timer.ResolutionMetAt = &now
	timer.ResolutionBreached = now.After(timer.ResolutionDueAt)
	if timer.ResolutionBreached {
		timer.Status = domain.SLAStatusBreached
	} else {
		timer.Status = domain.SLAStatusAchieved
	}
	return true, nil
}

func pauseTimer(timer *domain.TicketSLA, now time.Time) (bool, error) {
	if timer.Status != domain.SLAStatusActive {
		return false, apperrors.NewInvalidState("only an active sla timer can be paused", map[string]any{
			"sla_id": timer.ID,
			"status": timer.Status,
		})
	}
	timer.PauseStartAt = &now
	timer.Status = domain.SLAStatusPaused
	return true, nil
}

func resumeTimer(timer *domain.TicketSLA, now time.Time) (bool, error) {
	if timer.Status != domain.SLAStatusPaused {
		return false, apperrors.NewInvalidState("only a paused sla timer can be resumed", map[string]any{
			"sla_id": timer.ID,
			"status": timer.Status,
		})
	}
	foldPause(timer, now)
	timer.Status = domain.SLAStatusActive
	return true, nil
}

func cancelTimer(timer *domain.TicketSLA, now time.Time) (bool, error) {
	if timer.Status.Terminal() {
		return false, nil
	}
	timer.PauseStartAt = nil
	timer.Status = domain.SLAStatusCancelled
	return true, nil
}

// foldPause moves the open pause into the totals and pushes both deadlines out
// by its exact length.
func foldPause(timer *domain.TicketSLA, now time.Time) {
	if timer.PauseStartAt == nil {
		return
	}
	paused := now.Sub(*timer.PauseStartAt)
	if paused < 0 {
		paused = 0
	}
	timer.TotalPauseMinutes += int(paused / time.Minute)
	timer.ResponseDueAt = timer.ResponseDueAt.Add(paused)
	timer.ResolutionDueAt = timer.ResolutionDueAt.Add(paused)
	timer.PauseStartAt = nil
}

// LegStatus reports one SLA clock.
type LegStatus struct {
	Leg              domain.SLALeg
	DueAt            time.Time
	MetAt            *time.Time
	Breached         bool
	MinutesRemaining *int
	WarningSent      bool
	BreachNotified   bool
}

// SLAStatusReport summarizes a ticket's timer.
type SLAStatusReport struct {
	SLAID         string
	TicketID      string
	SLAName       string
	Status        domain.SLAStatus
	Response      LegStatus
	Resolution    LegStatus
	PausedMinutes int
	PauseStartAt  *time.Time
	CreatedAt     time.Time
}

// GetStatus returns the timer of a ticket with time remaining per open leg.
func (s *SLAService) GetStatus(ctx context.Context, ticketID string) (*SLAStatusReport, error) {
	timer, err := s.store.Timers().GetByTicket(ctx, ticketID)
	if err != nil {
		return nil, repoError(err, "sla timer", map[string]any{"ticket_id": ticketID})
	}
	name := ""
	if def, err := s.store.SLADefinitions().GetByID(ctx, timer.SLADefinitionID); err == nil {
		name = def.Name
	} else if !isNotFound(err) {
		return nil, apperrors.MapError(err)
	}

	now := s.now()
	return &SLAStatusReport{
		SLAID:    timer.ID,
		TicketID: timer.TicketID,
		SLAName:  name,
		Status:   timer.Status,
		Response: LegStatus{
			Leg:              domain.SLALegResponse,
			DueAt:            timer.ResponseDueAt,
			MetAt:            timer.ResponseMetAt,
			Breached:         timer.ResponseBreached,
			MinutesRemaining: remaining(timer.ResponseDueAt, timer.ResponseMetAt, now),
			WarningSent:      timer.ResponseWarningSent,
			BreachNotified:   timer.ResponseBreachNotified,
		},
		Resolution: LegStatus{
			Leg:              domain.SLALegResolution,
			DueAt:            timer.ResolutionDueAt,
			MetAt:            timer.ResolutionMetAt,
			Breached:         timer.ResolutionBreached,
			MinutesRemaining: remaining(timer.ResolutionDueAt, timer.ResolutionMetAt, now),
			WarningSent:      timer.ResolutionWarningSent,
			BreachNotified:   timer.ResolutionBreachNotified,
		},
		PausedMinutes: timer.TotalPauseMinutes,
		PauseStartAt:  timer.PauseStartAt,
		CreatedAt:     timer.CreatedAt,
	}, nil
}

func remaining(due time.Time, met *time.Time, now time.Time) *int {
	if met != nil {
		return nil
	}
	minutes := wholeMinutes(due.Sub(now))
	if minutes < 0 {
		minutes = 0
	}
	return &minutes
}

func wholeMinutes(d time.Duration) int {
	return int(d / time.Minute)
}

// BreachRecord describes a leg flagged by a breach sweep.
type BreachRecord struct {
	TicketID       string
	TicketNumber   string
	Title          string
	Priority       domain.Priority
	Category       string
	SLAID          string
	Leg            domain.SLALeg
	DueAt          time.Time
	BreachedAt     time.Time
	MinutesOverdue int
	AssignedToID   *string
	AssignedTo     *string
}

// WarningRecord describes a leg that crossed its warning threshold.
type WarningRecord struct {
	TicketID         string
	TicketNumber     string
	Title            string
	Priority         domain.Priority
	Category         string
	SLAID            string
	Leg              domain.SLALeg
	DueAt            time.Time
	PercentElapsed   float64
	MinutesRemaining int
	AssignedToID     *string
	AssignedTo       *string
}

// BreachSweepResult is the outcome of SweepBreaches.
type BreachSweepResult struct {
	Breaches  []BreachRecord
	Processed int
	Failed    int
}

// WarningSweepResult is the outcome of SweepWarnings.
type WarningSweepResult struct {
	Warnings  []WarningRecord
	Processed int
	Failed    int
}

// SweepBreaches flags every overdue leg of the active timers. Each timer is
// handled in its own transaction; a failing timer is logged and counted.
func (s *SLAService) SweepBreaches(ctx context.Context) (*BreachSweepResult, error) {
	started := time.Now()
	candidates, err := s.store.Timers().ListByStatus(ctx, domain.SLAStatusActive)
	if err != nil {
		s.metrics.RecordSweep("breach", err, time.Since(started))
		return nil, apperrors.MapError(err)
	}

	result := &BreachSweepResult{Breaches: []BreachRecord{}}
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			s.metrics.RecordSweep("breach", err, time.Since(started))
			return result, err
		}
		records, err := s.sweepBreach(ctx, candidate.ID)
		if err != nil {
			result.Failed++
			s.logger.Error("breach sweep failed for timer",
				zap.String("sla_id", candidate.ID),
				zap.String("ticket_id", candidate.TicketID),
				zap.Error(err))
			continue
		}
		result.Processed++
		result.Breaches = append(result.Breaches, records...)
	}

	s.metrics.RecordSweep("breach", nil, time.Since(started))
	if len(result.Breaches) > 0 || result.Failed > 0 {
		s.logger.Info("breach sweep finished",
			zap.Int("processed", result.Processed),
			zap.Int("breaches", len(result.Breaches)),
			zap.Int("failed", result.Failed))
	}
	return result, nil
}

func (s *SLAService) sweepBreach(ctx context.Context, timerID string) ([]BreachRecord, error) {
	box := &outbox{}
	var records []BreachRecord
	err := s.store.ExecTx(ctx, func(tx repository.Store) error {
		timer, err := tx.Timers().LockByID(ctx, timerID)
		if err != nil {
			return repoError(err, "sla timer", map[string]any{"sla_id": timerID})
		}
		// Re-read under the lock: a concurrent mark-met or sweep may have won.
		if timer.Status != domain.SLAStatusActive {
			return nil
		}
		now := s.now()
		var legs []domain.SLALeg
		if timer.ResponseMetAt == nil && !timer.ResponseBreached && now.After(timer.ResponseDueAt) {
			timer.ResponseBreached = true
			timer.ResponseBreachNotified = true
			legs = append(legs, domain.SLALegResponse)
		}
		if timer.ResolutionMetAt == nil && !timer.ResolutionBreached && now.After(timer.ResolutionDueAt) {
			timer.ResolutionBreached = true
			timer.ResolutionBreachNotified = true
			timer.Status = domain.SLAStatusBreached
			legs = append(legs, domain.SLALegResolution)
		}
		if len(legs) == 0 {
			return nil
		}

		timer.UpdatedAt = now
		if err := tx.Timers().Update(ctx, timer); err != nil {
			return apperrors.MapError(err)
		}
		ticket, assignee, err := s.ticketContext(ctx, tx, timer.TicketID)
		if err != nil {
			return err
		}
		if timer.Status == domain.SLAStatusBreached {
			entry := historyEntry(now, ticket.ID, events.SystemActor, domain.ChangeTypeSLA,
				map[string]any{"sla_status": domain.SLAStatusActive},
				map[string]any{"sla_status": domain.SLAStatusBreached, "sla_id": timer.ID})
			if err := tx.History().Create(ctx, entry); err != nil {
				return apperrors.MapError(err)
			}
		}

		for _, leg := range legs {
			due := timer.DueAt(leg)
			record := BreachRecord{
				TicketID:       ticket.ID,
				TicketNumber:   ticket.TicketNumber,
				Title:          ticket.Title,
				Priority:       ticket.Priority,
				Category:       ticket.Category,
				SLAID:          timer.ID,
				Leg:            leg,
				DueAt:          due,
				BreachedAt:     now,
				MinutesOverdue: wholeMinutes(now.Sub(due)),
				AssignedToID:   ticket.AssignedToID,
				AssignedTo:     assignee,
			}
			records = append(records, record)
			box.add(events.Event{
				Type:      events.EventSLABreached,
				TicketID:  ticket.ID,
				Actor:     events.SystemActor,
				Timestamp: now,
				Payload: events.SLABreachedPayload{
					SLAID:          timer.ID,
					TicketNumber:   ticket.TicketNumber,
					Leg:            leg,
					DueAt:          due,
					MinutesOverdue: record.MinutesOverdue,
					Priority:       ticket.Priority,
					Category:       ticket.Category,
					AssignedToID:   ticket.AssignedToID,
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		s.metrics.RecordBreach(string(record.Leg))
	}
	s.events.flush(ctx, box)
	return records, nil
}

// SweepWarnings flags every open leg of the active timers whose elapsed share
// of its budget reached thresholdPercent. A non-positive threshold uses each
// timer's definition.
func (s *SLAService) SweepWarnings(ctx context.Context, thresholdPercent int) (*WarningSweepResult, error) {
	if thresholdPercent > 100 {
		return nil, apperrors.NewValidationError("invalid warning threshold", map[string]any{
			"threshold": "must be between 1 and 100",
		})
	}
	started := time.Now()
	candidates, err := s.store.Timers().ListByStatus(ctx, domain.SLAStatusActive)
	if err != nil {
		s.metrics.RecordSweep("warning", err, time.Since(started))
		return nil, apperrors.MapError(err)
	}

	result := &WarningSweepResult{Warnings: []WarningRecord{}}
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			s.metrics.RecordSweep("warning", err, time.Since(started))
			return result, err
		}
		records, err := s.sweepWarning(ctx, candidate.ID, thresholdPercent)
		if err != nil {
			result.Failed++
			s.logger.Error("warning sweep failed for timer",
				zap.String("sla_id", candidate.ID),
				zap.String("ticket_id", candidate.TicketID),
				zap.Error(err))
			continue
		}
		result.Processed++
		result.Warnings = append(result.Warnings, records...)
	}

	s.metrics.RecordSweep("warning", nil, time.Since(started))
	if len(result.Warnings) > 0 || result.Failed > 0 {
		s.logger.Info("warning sweep finished",
			zap.Int("processed", result.Processed),
			zap.Int("warnings", len(result.Warnings)),
			zap.Int("failed", result.Failed))
	}
	return result, nil
}

func (s *SLAService) sweepWarning(ctx context.Context, timerID string, thresholdPercent int) ([]WarningRecord, error) {
	box := &outbox{}
	var records []WarningRecord
	err := s.store.ExecTx(ctx, func(tx repository.Store) error {
		timer, err := tx.Timers().LockByID(ctx, timerID)
		if err != nil {
			return repoError(err, "sla timer", map[string]any{"sla_id": timerID})
		}
		if timer.Status != domain.SLAStatusActive {
			return nil
		}
		threshold, err := s.warningThreshold(ctx, tx, timer, thresholdPercent)
		if err != nil {
			return err
		}

		now := s.now()
		type hit struct {
			leg     domain.SLALeg
			percent float64
		}
		var hits []hit
		for _, leg := range []domain.SLALeg{domain.SLALegResponse, domain.SLALegResolution} {
			if timer.MetAt(leg) != nil || timer.Breached(leg) || timer.WarningSent(leg) {
				continue
			}
			percent := percentElapsed(timer.CreatedAt, timer.DueAt(leg), now)
			if percent < float64(threshold) {
				continue
			}
			if leg == domain.SLALegResponse {
				timer.ResponseWarningSent = true
			} else {
				timer.ResolutionWarningSent = true
			}
			hits = append(hits, hit{leg: leg, percent: percent})
		}
		if len(hits) == 0 {
			return nil
		}

		timer.UpdatedAt = now
		if err := tx.Timers().Update(ctx, timer); err != nil {
			return apperrors.MapError(err)
		}
		ticket, assignee, err := s.ticketContext(ctx, tx, timer.TicketID)
		if err != nil {
			return err
		}
		for _, h := range hits {
			due := timer.DueAt(h.leg)
			record := WarningRecord{
				TicketID:         ticket.ID,
				TicketNumber:     ticket.TicketNumber,
				Title:            ticket.Title,
				Priority:         ticket.Priority,
				Category:         ticket.Category,
				SLAID:            timer.ID,
				Leg:              h.leg,
				DueAt:            due,
				PercentElapsed:   math.Round(h.percent*10) / 10,
				MinutesRemaining: wholeMinutes(due.Sub(now)),
				AssignedToID:     ticket.AssignedToID,
				AssignedTo:       assignee,
			}
			records = append(records, record)
			box.add(events.Event{
				Type:      events.EventSLAWarning,
				TicketID:  ticket.ID,
				Actor:     events.SystemActor,
				Timestamp: now,
				Payload: events.SLAWarningPayload{
					SLAID:            timer.ID,
					TicketNumber:     ticket.TicketNumber,
					Leg:              h.leg,
					DueAt:            due,
					PercentElapsed:   record.PercentElapsed,
					MinutesRemaining: record.MinutesRemaining,
					Priority:         ticket.Priority,
					Category:         ticket.Category,
					AssignedToID:     ticket.AssignedToID,
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		s.metrics.RecordWarning(string(record.Leg))
	}
	s.events.flush(ctx, box)
	return records, nil
}

func (s *SLAService) warningThreshold(ctx context.Context, tx repository.Store, timer *domain.TicketSLA, override int) (int, error) {
	if override > 0 {
		return override, nil
	}
	def, err := tx.SLADefinitions().GetByID(ctx, timer.SLADefinitionID)
	switch {
	case isNotFound(err):
		return domain.DefaultWarningThresholdPercent, nil
	case err != nil:
		return 0, apperrors.MapError(err)
	case def.WarningThresholdPercent <= 0:
		return domain.DefaultWarningThresholdPercent, nil
	}
	return def.WarningThresholdPercent, nil
}

// percentElapsed is the share of [start, due] already behind now.
func percentElapsed(start, due, now time.Time) float64 {
	total := due.Sub(start)
	if total <= 0 {
		return 100
	}
	return float64(now.Sub(start)) / float64(total) * 100
}

// ticketContext loads the ticket a timer belongs to and its assignee's name.
func (s *SLAService) ticketContext(ctx context.Context, tx repository.Store, ticketID string) (*domain.Ticket, *string, error) {
	ticket, err := tx.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, repoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	if ticket.AssignedToID == nil {
		return ticket, nil, nil
	}
	user, err := tx.Users().GetByID(ctx, *ticket.AssignedToID)
	switch {
	case isNotFound(err):
		return ticket, nil, nil
	case err != nil:
		return nil, nil, apperrors.MapError(err)
	}
	return ticket, strPtr(user.FullName), nil
}
