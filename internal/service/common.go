package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/itsm-sla/internal/domain"
	"github.com/spec-kit/itsm-sla/internal/events"
	"github.com/spec-kit/itsm-sla/internal/repository"
	apperrors "github.com/spec-kit/itsm-sla/pkg/util/errorutil"
)

func utcNow() time.Time {
	return time.Now().UTC()
}

func clockOrDefault(now func() time.Time) func() time.Time {
	if now == nil {
		return utcNow
	}
	return func() time.Time { return now().UTC() }
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// repoError converts repository sentinels into domain errors.
func repoError(err error, resource string, details map[string]any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, details)
	case errors.Is(err, repository.ErrConflict):
		return apperrors.NewConflict(resource+" already exists", details)
	}
	return apperrors.MapError(err)
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

// outbox collects events raised inside a transaction so they can be
// published once it has committed.
type outbox struct {
	events []events.Event
}

func (o *outbox) add(event events.Event) {
	if o == nil {
		return
	}
	o.events = append(o.events, event)
}

// publisher stamps and dispatches events; handler errors are logged only.
type publisher struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

func (p publisher) flush(ctx context.Context, box *outbox) {
	if box == nil {
		return
	}
	for _, event := range box.events {
		p.publish(ctx, event)
	}
	box.events = nil
}

func (p publisher) publish(ctx context.Context, event events.Event) {
	if p.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if err := p.dispatcher.Publish(ctx, event); err != nil {
		p.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func generateTicketNumber() string {
	return "TKT-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func strPtr(v string) *string {
	return &v
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func historyEntry(now time.Time, ticketID string, actor events.Actor, change domain.TicketChangeType, oldValue, newValue map[string]any) *domain.TicketHistory {
	return &domain.TicketHistory{
		ID:            uuid.NewString(),
		TicketID:      ticketID,
		ChangedByType: actor.Type,
		ChangedByID:   actor.ID,
		ChangeType:    change,
		OldValue:      oldValue,
		NewValue:      newValue,
		CreatedAt:     now,
	}
}
