package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/itsm-sla/internal/config"
	"github.com/spec-kit/itsm-sla/internal/domain"
	"github.com/spec-kit/itsm-sla/internal/events"
	"github.com/spec-kit/itsm-sla/internal/observability"
	"github.com/spec-kit/itsm-sla/internal/repository"
	"github.com/spec-kit/itsm-sla/internal/webhook"
	apperrors "github.com/spec-kit/itsm-sla/pkg/util/errorutil"
)

// DefaultPendingBatch bounds ProcessPending when no limit is given.
const DefaultPendingBatch = 10

// WebhookPoster delivers one payload with retries.
type WebhookPoster interface {
	Post(ctx context.Context, url string, payload any) (webhook.Result, error)
}

// DeliveryQueue accepts notification ids for asynchronous delivery. Enqueue
// reports false when the queue cannot take the id right now.
type DeliveryQueue interface {
	Enqueue(id string) bool
}

// NotificationService records notifications and delivers them out of band.
type NotificationService struct {
	store      repository.Store
	poster     WebhookPoster
	queue      DeliveryQueue
	dispatcher events.Dispatcher
	cfg        config.NotificationConfig
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NotificationDependencies bundles collaborators.
type NotificationDependencies struct {
	Store      repository.Store
	Webhook    WebhookPoster
	Dispatcher events.Dispatcher
	Config     config.NotificationConfig
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{
		store:      deps.Store,
		poster:     deps.Webhook,
		dispatcher: deps.Dispatcher,
		cfg:        deps.Config,
		metrics:    deps.Metrics,
		logger:     loggerOrNop(deps.Logger),
		now:        clockOrDefault(deps.Now),
	}
}

// SetQueue attaches the asynchronous delivery queue. Without one, Send only
// records and ProcessPending delivers.
func (n *NotificationService) SetQueue(queue DeliveryQueue) {
	n.queue = queue
}

// SendInput describes a notification to record and deliver.
type SendInput struct {
	Type           domain.NotificationType
	Subject        string
	Message        string
	RecipientID    *string
	RecipientEmail *string
	TicketID       *string
	SLAID          *string
	WebhookURL     *string
	Payload        map[string]any
}

// Send records a pending notification and hands it to the delivery queue.
// It never waits for delivery.
func (n *NotificationService) Send(ctx context.Context, in SendInput) (*domain.Notification, error) {
	if strings.TrimSpace(string(in.Type)) == "" {
		return nil, apperrors.NewValidationError("invalid notification", map[string]any{"type": "required"})
	}
	payload := in.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	now := n.now()
	notification := &domain.Notification{
		ID:             uuid.NewString(),
		Type:           in.Type,
		Status:         domain.NotificationStatusPending,
		Subject:        in.Subject,
		Message:        in.Message,
		RecipientID:    in.RecipientID,
		RecipientEmail: in.RecipientEmail,
		TicketID:       in.TicketID,
		SLAID:          in.SLAID,
		WebhookURL:     in.WebhookURL,
		Payload:        payload,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := n.store.Notifications().Create(ctx, notification); err != nil {
		return nil, apperrors.MapError(err)
	}
	if n.queue != nil && !n.queue.Enqueue(notification.ID) {
		n.logger.Warn("notification queue full, left pending",
			zap.String("notification_id", notification.ID),
			zap.String("type", string(notification.Type)))
	}
	return notification, nil
}

// Deliver pushes a notification to its webhook and records the outcome.
// Delivery failures are stored on the notification, not returned.
func (n *NotificationService) Deliver(ctx context.Context, id string) (*domain.Notification, error) {
	notification, err := n.store.Notifications().GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "notification", map[string]any{"notification_id": id})
	}
	if notification.Status == domain.NotificationStatusSent {
		return notification, nil
	}

	var deliveryErr error
	switch {
	case notification.WebhookURL != nil && *notification.WebhookURL != "":
		if n.poster == nil {
			deliveryErr = apperrors.NewDependencyUnavailable("webhook", fmt.Errorf("no webhook client configured"))
			break
		}
		result, err := n.poster.Post(ctx, *notification.WebhookURL, notification.Payload)
		notification.WebhookResponse = result.AsMap()
		if err != nil {
			deliveryErr = apperrors.NewDependencyUnavailable("webhook", err)
		}
	case notification.RecipientEmail != nil || notification.RecipientID != nil:
		// Direct channels are handed to the mail relay outside this service.
		n.logger.Debug("notification recorded for direct recipient",
			zap.String("notification_id", notification.ID),
			zap.String("from", n.cfg.EmailFrom))
	default:
		deliveryErr = apperrors.NewValidationError("notification has no delivery channel", map[string]any{
			"notification_id": notification.ID,
		})
	}

	now := n.now()
	notification.UpdatedAt = now
	if deliveryErr == nil {
		notification.Status = domain.NotificationStatusSent
		notification.SentAt = &now
		notification.ErrorMessage = nil
	} else {
		notification.Status = domain.NotificationStatusFailed
		notification.RetryCount++
		notification.ErrorMessage = strPtr(deliveryErr.Error())
		n.logger.Warn("notification delivery failed",
			zap.String("notification_id", notification.ID),
			zap.String("type", string(notification.Type)),
			zap.Int("retry_count", notification.RetryCount),
			zap.Error(deliveryErr))
	}
	// Store on a fresh context: the outcome is recorded even when the
	// delivery context was cancelled mid-flight.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := n.store.Notifications().Update(storeCtx, notification); err != nil {
		return nil, apperrors.MapError(err)
	}
	n.metrics.RecordNotification(string(notification.Type), string(notification.Status))
	return notification, nil
}

// ProcessError names a notification that could not be delivered.
type ProcessError struct {
	NotificationID string
	Error          string
}

// ProcessResult summarizes a ProcessPending run.
type ProcessResult struct {
	Processed int
	Success   int
	Failed    int
	Errors    []ProcessError
}

// ProcessPending delivers up to limit pending notifications, oldest first.
func (n *NotificationService) ProcessPending(ctx context.Context, limit int) (*ProcessResult, error) {
	if limit <= 0 {
		limit = DefaultPendingBatch
	}
	pending, err := n.store.Notifications().ListByStatus(ctx, domain.NotificationStatusPending, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	result := &ProcessResult{Errors: []ProcessError{}}
	for _, item := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Processed++
		delivered, err := n.Deliver(ctx, item.ID)
		switch {
		case err != nil:
			result.Failed++
			result.Errors = append(result.Errors, ProcessError{NotificationID: item.ID, Error: err.Error()})
		case delivered.Status == domain.NotificationStatusSent:
			result.Success++
		default:
			result.Failed++
			message := "delivery failed"
			if delivered.ErrorMessage != nil {
				message = *delivered.ErrorMessage
			}
			result.Errors = append(result.Errors, ProcessError{NotificationID: item.ID, Error: message})
		}
	}
	return result, nil
}

// RegisterHandlers subscribes to the events that produce notifications.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSLAWarning, n.handleSLAWarning)
	n.dispatcher.Subscribe(events.EventSLABreached, n.handleSLABreached)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketResolved, n.handleTicketResolved)
}

func (n *NotificationService) handleSLAWarning(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.SLAWarningPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	leg := titleCase(string(p.Leg))
	_, err := n.Send(ctx, SendInput{
		Type:        domain.NotificationSLAWarning,
		Subject:     fmt.Sprintf("SLA Warning: %s - %s SLA at %.0f%%", p.TicketNumber, leg, p.PercentElapsed),
		Message:     fmt.Sprintf("%s SLA of ticket %s is %.0f%% elapsed with %d minutes remaining. Please take action to prevent SLA breach.", leg, p.TicketNumber, p.PercentElapsed, p.MinutesRemaining),
		RecipientID: p.AssignedToID,
		TicketID:    strPtr(event.TicketID),
		SLAID:       strPtr(p.SLAID),
		WebhookURL:  optionalString(n.cfg.SLAWebhookURL()),
		Payload: map[string]any{
			"event_type":        "sla_warning",
			"ticket_number":     p.TicketNumber,
			"ticket_id":         event.TicketID,
			"sla_type":          string(p.Leg),
			"percent_elapsed":   p.PercentElapsed,
			"minutes_remaining": p.MinutesRemaining,
			"priority":          string(p.Priority),
			"category":          p.Category,
			"assigned_to_id":    p.AssignedToID,
			"timestamp":         stamp(event.Timestamp),
		},
	})
	return err
}

func (n *NotificationService) handleSLABreached(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.SLABreachedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	leg := titleCase(string(p.Leg))
	_, err := n.Send(ctx, SendInput{
		Type:        domain.NotificationSLABreach,
		Subject:     fmt.Sprintf("SLA BREACH: %s - %s SLA breached", p.TicketNumber, leg),
		Message:     fmt.Sprintf("Ticket %s has breached its %s SLA and is %d minutes overdue. Immediate action required!", p.TicketNumber, p.Leg, p.MinutesOverdue),
		RecipientID: p.AssignedToID,
		TicketID:    strPtr(event.TicketID),
		SLAID:       strPtr(p.SLAID),
		WebhookURL:  optionalString(n.cfg.SLAWebhookURL()),
		Payload: map[string]any{
			"event_type":      "sla_breach",
			"ticket_number":   p.TicketNumber,
			"ticket_id":       event.TicketID,
			"sla_type":        string(p.Leg),
			"minutes_overdue": p.MinutesOverdue,
			"priority":        string(p.Priority),
			"category":        p.Category,
			"assigned_to_id":  p.AssignedToID,
			"timestamp":       stamp(event.Timestamp),
		},
	})
	return err
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	// Group-only assignments have nobody to tell.
	if p.AssignedUserID == nil {
		return nil
	}
	var email *string
	if user, err := n.store.Users().GetByID(ctx, *p.AssignedUserID); err == nil {
		email = optionalString(user.Email)
	} else if !isNotFound(err) {
		return err
	}
	_, err := n.Send(ctx, SendInput{
		Type:           domain.NotificationTicketAssigned,
		Subject:        "Ticket Assigned: " + p.TicketNumber,
		Message:        fmt.Sprintf("You have been assigned ticket %s (%s priority, %s).", p.TicketNumber, p.Priority, p.Category),
		RecipientID:    p.AssignedUserID,
		RecipientEmail: email,
		TicketID:       strPtr(event.TicketID),
		WebhookURL:     optionalString(n.cfg.TicketWebhookURL()),
		Payload: map[string]any{
			"event_type":       "ticket_assigned",
			"ticket_number":    p.TicketNumber,
			"ticket_id":        event.TicketID,
			"assigned_to_id":   p.AssignedUserID,
			"assigned_to_name": p.AssignedUserName,
			"assignment_group": p.GroupName,
			"priority":         string(p.Priority),
			"timestamp":        stamp(event.Timestamp),
		},
	})
	return err
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	payload := map[string]any{
		"event_type":         "ticket_created",
		"event_id":           event.ID,
		"ticket_number":      p.TicketNumber,
		"ticket_id":          event.TicketID,
		"title":              p.Title,
		"category":           p.Category,
		"subcategory":        p.Subcategory,
		"priority":           string(p.Priority),
		"status":             string(domain.TicketStatusSubmitted),
		"assigned_to_id":     nil,
		"sla_response_due":   nil,
		"sla_resolution_due": nil,
		"timestamp":          stamp(event.Timestamp),
	}
	if ticket, err := n.store.Tickets().GetByID(ctx, event.TicketID); err == nil {
		payload["status"] = string(ticket.Status)
		payload["assigned_to_id"] = ticket.AssignedToID
		payload["created_at"] = stamp(ticket.CreatedAt)
	}
	if timer, err := n.store.Timers().GetByTicket(ctx, event.TicketID); err == nil {
		payload["sla_response_due"] = stamp(timer.ResponseDueAt)
		payload["sla_resolution_due"] = stamp(timer.ResolutionDueAt)
	}
	_, err := n.Send(ctx, SendInput{
		Type:       domain.NotificationTicketCreated,
		Subject:    "Ticket Created: " + p.TicketNumber,
		Message:    fmt.Sprintf("Ticket %s has been created successfully.", p.TicketNumber),
		TicketID:   strPtr(event.TicketID),
		WebhookURL: optionalString(n.cfg.TicketWebhookURL()),
		Payload:    payload,
	})
	return err
}

func (n *NotificationService) handleTicketResolved(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.TicketResolvedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	var requester *string
	if ticket, err := n.store.Tickets().GetByID(ctx, event.TicketID); err == nil {
		requester = ticket.RequesterID
	}
	_, err := n.Send(ctx, SendInput{
		Type:        domain.NotificationTicketResolved,
		Subject:     "Ticket Resolved: " + p.TicketNumber,
		Message:     fmt.Sprintf("Your ticket %s has been resolved.", p.TicketNumber),
		RecipientID: requester,
		TicketID:    strPtr(event.TicketID),
		WebhookURL:  optionalString(n.cfg.TicketWebhookURL()),
		Payload: map[string]any{
			"event_type":          "ticket_resolved",
			"ticket_number":       p.TicketNumber,
			"ticket_id":           event.TicketID,
			"resolution_breached": p.ResolutionBreached,
			"resolved_at":         stamp(p.ResolvedAt),
			"timestamp":           stamp(event.Timestamp),
		},
	})
	return err
}

func unexpectedPayload(event events.Event) error {
	return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
