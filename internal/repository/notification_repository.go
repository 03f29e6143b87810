package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/itsm-sla/internal/domain"
)

type notificationRepository struct {
	db DBTX
}

const notificationColumns = `id, type, status, subject, message, recipient_id, recipient_email,
               ticket_id, sla_id, webhook_url, payload, webhook_response, retry_count,
               error_message, sent_at, created_at, updated_at`

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (` + notificationColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	payload := n.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	_, err := r.db.Exec(ctx, query,
		n.ID,
		string(n.Type),
		string(n.Status),
		n.Subject,
		n.Message,
		n.RecipientID,
		n.RecipientEmail,
		n.TicketID,
		n.SLAID,
		n.WebhookURL,
		payload,
		n.WebhookResponse,
		n.RetryCount,
		n.ErrorMessage,
		n.SentAt,
		n.CreatedAt,
		n.UpdatedAt,
	)
	return mapError(err)
}

func (r *notificationRepository) Update(ctx context.Context, n *domain.Notification) error {
	const query = `
        UPDATE notifications SET status=$1, webhook_response=$2, retry_count=$3,
            error_message=$4, sent_at=$5, updated_at=$6
        WHERE id=$7`
	cmd, err := r.db.Exec(ctx, query,
		string(n.Status),
		n.WebhookResponse,
		n.RetryCount,
		n.ErrorMessage,
		n.SentAt,
		n.UpdatedAt,
		n.ID,
	)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id=$1`
	return scanNotification(r.db.QueryRow(ctx, query, id))
}

func (r *notificationRepository) ListByStatus(ctx context.Context, status domain.NotificationStatus, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + notificationColumns + `
        FROM notifications WHERE status=$1 ORDER BY created_at LIMIT $2`
	rows, err := r.db.Query(ctx, query, string(status), limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *n)
	}
	return result, rows.Err()
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var (
		n                      domain.Notification
		notificationType, stat string
	)
	if err := row.Scan(
		&n.ID,
		&notificationType,
		&stat,
		&n.Subject,
		&n.Message,
		&n.RecipientID,
		&n.RecipientEmail,
		&n.TicketID,
		&n.SLAID,
		&n.WebhookURL,
		&n.Payload,
		&n.WebhookResponse,
		&n.RetryCount,
		&n.ErrorMessage,
		&n.SentAt,
		&n.CreatedAt,
		&n.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	n.Type = domain.NotificationType(notificationType)
	n.Status = domain.NotificationStatus(stat)
	n.SentAt = utcPtr(n.SentAt)
	n.CreatedAt = n.CreatedAt.UTC()
	n.UpdatedAt = n.UpdatedAt.UTC()
	return &n, nil
}
