package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/itsm-sla/internal/classifier"
	"github.com/spec-kit/itsm-sla/internal/domain"
	"github.com/spec-kit/itsm-sla/internal/events"
	"github.com/spec-kit/itsm-sla/internal/repository"
	apperrors "github.com/spec-kit/itsm-sla/pkg/util/errorutil"
)

// TicketService coordinates ticket intake and status workflows. Intake runs
// classification, routing and timer creation as one unit of work.
type TicketService struct {
	store      repository.Store
	sla        *SLAService
	assignment *AssignmentService
	events     publisher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	SLA        *SLAService
	Assignment *AssignmentService
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	now := clockOrDefault(deps.Now)
	logger := loggerOrNop(deps.Logger)
	return &TicketService{
		store:      deps.Store,
		sla:        deps.SLA,
		assignment: deps.Assignment,
		events:     publisher{dispatcher: deps.Dispatcher, logger: logger, now: now},
		logger:     logger,
		now:        now,
	}
}

// CreateTicketInput describes ticket intake.
type CreateTicketInput struct {
	EventType         string
	Title             string
	Description       string
	Type              domain.TicketType
	Category          string
	Subcategory       string
	PriorityHint      *domain.Priority
	RequesterID       *string
	FallbackGroupName string
	AutoAssignAgent   bool
}

// CreateTicketResult is everything intake produced.
type CreateTicketResult struct {
	Ticket     *domain.Ticket
	Assignment *AssignmentResult
	SLA        *domain.TicketSLA
	Entities   classifier.Entities
}

// CreateTicket persists, classifies, routes and starts the SLA timer of a new
// ticket. Any failing step rolls back the whole intake.
func (s *TicketService) CreateTicket(ctx context.Context, in CreateTicketInput) (*CreateTicketResult, error) {
	if err := validateCreateTicket(in); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	text := title + " " + description

	classified := classifier.Classify(in.EventType, title, description, in.Category, in.Subcategory)
	priority := domain.PriorityMedium
	if in.PriorityHint != nil {
		priority = *in.PriorityHint
	} else {
		priority = classifier.DetectPriority(text, priority)
	}
	ticketType := in.Type
	if ticketType == "" {
		ticketType = domain.TicketTypeIncident
	}
	actor := events.SystemActor
	if in.RequesterID != nil {
		actor = events.Actor{Type: domain.ActorTypeUser, ID: in.RequesterID}
	}

	result := &CreateTicketResult{Entities: classifier.ExtractAffectedEntities(text)}
	box := &outbox{}
	err := s.store.ExecTx(ctx, func(tx repository.Store) error {
		if in.RequesterID != nil {
			if _, err := tx.Users().GetByID(ctx, *in.RequesterID); err != nil {
				return repoError(err, "user", map[string]any{"user_id": *in.RequesterID})
			}
		}
		now := s.now()
		ticket := &domain.Ticket{
			ID:           uuid.NewString(),
			TicketNumber: generateTicketNumber(),
			Title:        title,
			Description:  description,
			Type:         ticketType,
			Status:       domain.TicketStatusSubmitted,
			Priority:     priority,
			Category:     classified.Category,
			Subcategory:  classified.Subcategory,
			RequesterID:  in.RequesterID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return repoError(err, "ticket", map[string]any{"ticket_number": ticket.TicketNumber})
		}

		routed := &outbox{}
		assignment, err := s.assignment.route(ctx, tx, RouteInput{
			TicketID:          ticket.ID,
			Category:          ticket.Category,
			Subcategory:       optionalString(ticket.Subcategory),
			FallbackGroupName: in.FallbackGroupName,
			AutoAssignAgent:   in.AutoAssignAgent,
			Actor:             actor,
		}, routed)
		if err != nil {
			return err
		}
		// A mapping may pin the priority unless the caller chose one.
		if assignment.PriorityOverride != nil && in.PriorityHint == nil && *assignment.PriorityOverride != ticket.Priority {
			ticket.Priority = *assignment.PriorityOverride
			if err := tx.Tickets().Update(ctx, ticket); err != nil {
				return apperrors.MapError(err)
			}
		}

		timer, err := s.sla.createTimer(ctx, tx, CreateTimerInput{
			TicketID:  ticket.ID,
			Priority:  ticket.Priority,
			Category:  optionalString(ticket.Category),
			CreatedAt: ticket.CreatedAt,
		})
		if err != nil {
			return err
		}

		box.add(events.Event{
			Type:     events.EventTicketCreated,
			TicketID: ticket.ID,
			Actor:    actor,
			Payload: events.TicketCreatedPayload{
				TicketNumber: ticket.TicketNumber,
				Title:        ticket.Title,
				Priority:     ticket.Priority,
				Category:     ticket.Category,
				Subcategory:  ticket.Subcategory,
				RequesterID:  ticket.RequesterID,
			},
		})
		for _, event := range routed.events {
			if payload, ok := event.Payload.(events.TicketAssignedPayload); ok {
				payload.Priority = ticket.Priority
				event.Payload = payload
			}
			box.add(event)
		}

		result.Ticket = ticket
		result.Assignment = assignment
		result.SLA = timer
		return nil
	})
	if err != nil {
		s.logger.Warn("ticket intake rolled back", zap.String("title", title), zap.Error(err))
		return nil, err
	}

	s.assignment.recordAssignment(result.Assignment)
	s.events.flush(ctx, box)
	s.logger.Info("ticket created",
		zap.String("ticket_id", result.Ticket.ID),
		zap.String("ticket_number", result.Ticket.TicketNumber),
		zap.String("category", result.Ticket.Category),
		zap.String("priority", string(result.Ticket.Priority)),
		zap.String("group", result.Assignment.GroupName))
	return result, nil
}

func validateCreateTicket(in CreateTicketInput) error {
	details := map[string]any{}
	if strings.TrimSpace(in.Title) == "" {
		details["title"] = "required"
	}
	if in.Type != "" && !in.Type.Valid() {
		details["type"] = "must be one of incident, service_request, change_request, problem"
	}
	if in.PriorityHint != nil && !in.PriorityHint.Valid() {
		details["priority"] = "must be one of critical, high, medium, low"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid ticket", details)
	}
	return nil
}

// GetTicket returns a ticket by id.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, repoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

// ListHistory returns the audit trail of a ticket.
func (s *TicketService) ListHistory(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	history, err := s.store.History().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return history, nil
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusSubmitted:   {domain.TicketStatusInProgress, domain.TicketStatusPendingUser, domain.TicketStatusResolved, domain.TicketStatusCancelled},
	domain.TicketStatusInProgress:  {domain.TicketStatusPendingUser, domain.TicketStatusResolved, domain.TicketStatusCancelled},
	domain.TicketStatusPendingUser: {domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusCancelled},
	domain.TicketStatusResolved:    {domain.TicketStatusClosed, domain.TicketStatusInProgress},
	domain.TicketStatusClosed:      {},
	domain.TicketStatusCancelled:   {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// StatusUpdate is the outcome of UpdateStatus.
type StatusUpdate struct {
	Ticket *domain.Ticket
	SLA    *domain.TicketSLA
}

// UpdateStatus moves a ticket through its lifecycle and drives its SLA timer:
// work starting meets the response, waiting on the user pauses the clock,
// resolving meets the resolution and cancelling stops the timer.
func (s *TicketService) UpdateStatus(ctx context.Context, ticketID string, next domain.TicketStatus, actor events.Actor) (*StatusUpdate, error) {
	if !next.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": next})
	}
	if actor.Type == "" {
		actor = events.SystemActor
	}
	box := &outbox{}
	out := &StatusUpdate{}
	err := s.store.ExecTx(ctx, func(tx repository.Store) error {
		ticket, err := tx.Tickets().GetByID(ctx, ticketID)
		if err != nil {
			return repoError(err, "ticket", map[string]any{"ticket_id": ticketID})
		}
		previous := ticket.Status
		if !isValidTransition(previous, next) {
			return apperrors.NewInvalidState("invalid status transition", map[string]any{
				"from": previous,
				"to":   next,
			})
		}

		now := s.now()
		ticket.Status = next
		ticket.UpdatedAt = now
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return apperrors.MapError(err)
		}
		entry := historyEntry(now, ticket.ID, actor, domain.ChangeTypeStatus,
			map[string]any{"status": previous},
			map[string]any{"status": next})
		if err := tx.History().Create(ctx, entry); err != nil {
			return apperrors.MapError(err)
		}

		timer, err := s.driveTimer(ctx, tx, ticket.ID, previous, next, actor)
		if err != nil {
			return err
		}
		if next == domain.TicketStatusResolved {
			payload := events.TicketResolvedPayload{TicketNumber: ticket.TicketNumber, ResolvedAt: now}
			if timer != nil {
				payload.ResolutionBreached = timer.ResolutionBreached
			}
			box.add(events.Event{
				Type:     events.EventTicketResolved,
				TicketID: ticket.ID,
				Actor:    actor,
				Payload:  payload,
			})
		}
		out.Ticket = ticket
		out.SLA = timer
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.events.flush(ctx, box)
	return out, nil
}

// driveTimer applies the timer transitions implied by a status change. A
// ticket without a timer is left alone.
func (s *TicketService) driveTimer(ctx context.Context, tx repository.Store, ticketID string, previous, next domain.TicketStatus, actor events.Actor) (*domain.TicketSLA, error) {
	var steps []transition
	switch next {
	case domain.TicketStatusInProgress:
		if previous == domain.TicketStatusPendingUser {
			steps = append(steps, resumeIfPaused)
		}
		steps = append(steps, markResponseMet)
	case domain.TicketStatusPendingUser:
		steps = append(steps, pauseIfActive)
	case domain.TicketStatusResolved:
		steps = append(steps, markResponseMet, markResolutionMet)
	case domain.TicketStatusCancelled:
		steps = append(steps, cancelTimer)
	}

	var timer *domain.TicketSLA
	for _, step := range steps {
		updated, err := s.sla.applyIn(ctx, tx, ticketID, actor, step)
		if apperrors.IsNotFound(err) {
			s.logger.Warn("ticket has no sla timer", zap.String("ticket_id", ticketID))
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		timer = updated
	}
	return timer, nil
}

func pauseIfActive(timer *domain.TicketSLA, now time.Time) (bool, error) {
	if timer.Status != domain.SLAStatusActive {
		return false, nil
	}
	return pauseTimer(timer, now)
}

func resumeIfPaused(timer *domain.TicketSLA, now time.Time) (bool, error) {
	if timer.Status != domain.SLAStatusPaused {
		return false, nil
	}
	return resumeTimer(timer, now)
}
