package repository

import (
	"context"

	"github.com/spec-kit/itsm-sla/internal/domain"
)

type ticketRepository struct {
	db DBTX
}

const ticketColumns = `id, ticket_number, title, description, ticket_type, status, priority,
               category, subcategory, requester_id, assignment_group_id, assigned_to_id,
               created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (` + ticketColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err := r.db.Exec(ctx, query,
		ticket.ID,
		ticket.TicketNumber,
		ticket.Title,
		ticket.Description,
		string(ticket.Type),
		string(ticket.Status),
		string(ticket.Priority),
		ticket.Category,
		ticket.Subcategory,
		ticket.RequesterID,
		ticket.AssignmentGroupID,
		ticket.AssignedToID,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	return mapError(err)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, ticket_type=$3, status=$4, priority=$5,
            category=$6, subcategory=$7, assignment_group_id=$8, assigned_to_id=$9, updated_at=$10
        WHERE id=$11`
	cmd, err := r.db.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		string(ticket.Type),
		string(ticket.Status),
		string(ticket.Priority),
		ticket.Category,
		ticket.Subcategory,
		ticket.AssignmentGroupID,
		ticket.AssignedToID,
		ticket.UpdatedAt,
		ticket.ID,
	)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	var (
		ticket                       domain.Ticket
		ticketType, status, priority string
	)
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.Title,
		&ticket.Description,
		&ticketType,
		&status,
		&priority,
		&ticket.Category,
		&ticket.Subcategory,
		&ticket.RequesterID,
		&ticket.AssignmentGroupID,
		&ticket.AssignedToID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	ticket.Type = domain.TicketType(ticketType)
	ticket.Status = domain.TicketStatus(status)
	ticket.Priority = domain.Priority(priority)
	ticket.CreatedAt = ticket.CreatedAt.UTC()
	ticket.UpdatedAt = ticket.UpdatedAt.UTC()
	return &ticket, nil
}

func (r *ticketRepository) CountOpenByAssignee(ctx context.Context, userID string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM tickets
        WHERE assigned_to_id=$1 AND status IN ('submitted','in_progress','pending_user')`
	var count int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, mapError(err)
	}
	return count, nil
}
