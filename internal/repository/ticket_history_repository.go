package repository

import (
	"context"

	"github.com/spec-kit/itsm-sla/internal/domain"
)

type ticketHistoryRepository struct {
	db DBTX
}

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (id, ticket_id, changed_by_type, changed_by_id, change_type, old_value, new_value, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.db.Exec(ctx, query,
		history.ID,
		history.TicketID,
		string(history.ChangedByType),
		history.ChangedByID,
		string(history.ChangeType),
		history.OldValue,
		history.NewValue,
		history.CreatedAt,
	)
	return mapError(err)
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, ticket_id, changed_by_type, changed_by_id, change_type, old_value, new_value, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.TicketHistory
	for rows.Next() {
		var (
			history               domain.TicketHistory
			actorType, changeType string
		)
		if err := rows.Scan(
			&history.ID,
			&history.TicketID,
			&actorType,
			&history.ChangedByID,
			&changeType,
			&history.OldValue,
			&history.NewValue,
			&history.CreatedAt,
		); err != nil {
			return nil, mapError(err)
		}
		history.ChangedByType = domain.ActorType(actorType)
		history.ChangeType = domain.TicketChangeType(changeType)
		history.CreatedAt = history.CreatedAt.UTC()
		result = append(result, history)
	}
	return result, rows.Err()
}
