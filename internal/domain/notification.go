package domain

import "time"

// NotificationType enumerates what a notification is about.
type NotificationType string

const (
	NotificationSLAWarning     NotificationType = "sla_warning"
	NotificationSLABreach      NotificationType = "sla_breach"
	NotificationTicketAssigned NotificationType = "ticket_assigned"
	NotificationTicketCreated  NotificationType = "ticket_created"
	NotificationTicketResolved NotificationType = "ticket_resolved"
)

// NotificationStatus tracks delivery.
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// Notification is a recorded out-of-band message with its delivery bookkeeping.
type Notification struct {
	ID              string
	Type            NotificationType
	Status          NotificationStatus
	Subject         string
	Message         string
	RecipientID     *string
	RecipientEmail  *string
	TicketID        *string
	SLAID           *string
	WebhookURL      *string
	Payload         map[string]any
	WebhookResponse map[string]any
	RetryCount      int
	ErrorMessage    *string
	SentAt          *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
