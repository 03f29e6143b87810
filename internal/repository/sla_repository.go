package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/itsm-sla/internal/domain"
)

type slaDefinitionRepository struct {
	db DBTX
}

const slaDefinitionColumns = `id, name, description, priority, category, response_time_minutes,
               resolution_time_hours, business_hours_only, warning_threshold_percent, is_active,
               created_at, updated_at`

func (r *slaDefinitionRepository) Create(ctx context.Context, def *domain.SLADefinition) error {
	const query = `
        INSERT INTO sla_definitions (` + slaDefinitionColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.db.Exec(ctx, query,
		def.ID,
		def.Name,
		def.Description,
		string(def.Priority),
		def.Category,
		def.ResponseTimeMinutes,
		def.ResolutionTimeHours,
		def.BusinessHoursOnly,
		def.WarningThresholdPercent,
		def.IsActive,
		def.CreatedAt,
		def.UpdatedAt,
	)
	return mapError(err)
}

func (r *slaDefinitionRepository) CreateIfAbsent(ctx context.Context, def *domain.SLADefinition) (bool, error) {
	const query = `
        INSERT INTO sla_definitions (` + slaDefinitionColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        ON CONFLICT DO NOTHING`
	cmd, err := r.db.Exec(ctx, query,
		def.ID,
		def.Name,
		def.Description,
		string(def.Priority),
		def.Category,
		def.ResponseTimeMinutes,
		def.ResolutionTimeHours,
		def.BusinessHoursOnly,
		def.WarningThresholdPercent,
		def.IsActive,
		def.CreatedAt,
		def.UpdatedAt,
	)
	if err != nil {
		return false, mapError(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *slaDefinitionRepository) GetByID(ctx context.Context, id string) (*domain.SLADefinition, error) {
	query := `SELECT ` + slaDefinitionColumns + ` FROM sla_definitions WHERE id=$1`
	return scanSLADefinition(r.db.QueryRow(ctx, query, id))
}

func (r *slaDefinitionRepository) FindActive(ctx context.Context, priority domain.Priority, category *string) (*domain.SLADefinition, error) {
	if category == nil {
		query := `SELECT ` + slaDefinitionColumns + `
            FROM sla_definitions WHERE priority=$1 AND category IS NULL AND is_active
            ORDER BY created_at LIMIT 1`
		return scanSLADefinition(r.db.QueryRow(ctx, query, string(priority)))
	}
	query := `SELECT ` + slaDefinitionColumns + `
        FROM sla_definitions WHERE priority=$1 AND category=$2 AND is_active
        ORDER BY created_at LIMIT 1`
	return scanSLADefinition(r.db.QueryRow(ctx, query, string(priority), *category))
}

func (r *slaDefinitionRepository) List(ctx context.Context) ([]domain.SLADefinition, error) {
	query := `SELECT ` + slaDefinitionColumns + ` FROM sla_definitions ORDER BY priority, category NULLS FIRST`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.SLADefinition
	for rows.Next() {
		def, err := scanSLADefinition(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *def)
	}
	return result, rows.Err()
}

func scanSLADefinition(row pgx.Row) (*domain.SLADefinition, error) {
	var (
		def      domain.SLADefinition
		priority string
	)
	if err := row.Scan(
		&def.ID,
		&def.Name,
		&def.Description,
		&priority,
		&def.Category,
		&def.ResponseTimeMinutes,
		&def.ResolutionTimeHours,
		&def.BusinessHoursOnly,
		&def.WarningThresholdPercent,
		&def.IsActive,
		&def.CreatedAt,
		&def.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	def.Priority = domain.Priority(priority)
	def.CreatedAt = def.CreatedAt.UTC()
	def.UpdatedAt = def.UpdatedAt.UTC()
	return &def, nil
}

type ticketSLARepository struct {
	db DBTX
}

const ticketSLAColumns = `id, ticket_id, sla_definition_id, status,
               response_due_at, response_met_at, response_breached,
               resolution_due_at, resolution_met_at, resolution_breached,
               pause_start_at, total_pause_minutes,
               response_warning_sent, resolution_warning_sent,
               response_breach_notified, resolution_breach_notified,
               created_at, updated_at`

func (r *ticketSLARepository) Create(ctx context.Context, timer *domain.TicketSLA) error {
	const query = `
        INSERT INTO ticket_slas (` + ticketSLAColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`
	_, err := r.db.Exec(ctx, query,
		timer.ID,
		timer.TicketID,
		timer.SLADefinitionID,
		string(timer.Status),
		timer.ResponseDueAt,
		timer.ResponseMetAt,
		timer.ResponseBreached,
		timer.ResolutionDueAt,
		timer.ResolutionMetAt,
		timer.ResolutionBreached,
		timer.PauseStartAt,
		timer.TotalPauseMinutes,
		timer.ResponseWarningSent,
		timer.ResolutionWarningSent,
		timer.ResponseBreachNotified,
		timer.ResolutionBreachNotified,
		timer.CreatedAt,
		timer.UpdatedAt,
	)
	return mapError(err)
}

func (r *ticketSLARepository) Update(ctx context.Context, timer *domain.TicketSLA) error {
	const query = `
        UPDATE ticket_slas SET status=$1,
            response_due_at=$2, response_met_at=$3, response_breached=$4,
            resolution_due_at=$5, resolution_met_at=$6, resolution_breached=$7,
            pause_start_at=$8, total_pause_minutes=$9,
            response_warning_sent=$10, resolution_warning_sent=$11,
            response_breach_notified=$12, resolution_breach_notified=$13,
            updated_at=$14
        WHERE id=$15`
	cmd, err := r.db.Exec(ctx, query,
		string(timer.Status),
		timer.ResponseDueAt,
		timer.ResponseMetAt,
		timer.ResponseBreached,
		timer.ResolutionDueAt,
		timer.ResolutionMetAt,
		timer.ResolutionBreached,
		timer.PauseStartAt,
		timer.TotalPauseMinutes,
		timer.ResponseWarningSent,
		timer.ResolutionWarningSent,
		timer.ResponseBreachNotified,
		timer.ResolutionBreachNotified,
		timer.UpdatedAt,
		timer.ID,
	)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketSLARepository) GetByTicket(ctx context.Context, ticketID string) (*domain.TicketSLA, error) {
	query := `SELECT ` + ticketSLAColumns + `
        FROM ticket_slas WHERE ticket_id=$1
        ORDER BY status IN ('active','paused') DESC, created_at DESC LIMIT 1`
	return scanTicketSLA(r.db.QueryRow(ctx, query, ticketID))
}

func (r *ticketSLARepository) LockByTicket(ctx context.Context, ticketID string) (*domain.TicketSLA, error) {
	query := `SELECT ` + ticketSLAColumns + `
        FROM ticket_slas WHERE ticket_id=$1
        ORDER BY status IN ('active','paused') DESC, created_at DESC LIMIT 1 FOR UPDATE`
	return scanTicketSLA(r.db.QueryRow(ctx, query, ticketID))
}

func (r *ticketSLARepository) LockByID(ctx context.Context, id string) (*domain.TicketSLA, error) {
	query := `SELECT ` + ticketSLAColumns + ` FROM ticket_slas WHERE id=$1 FOR UPDATE`
	return scanTicketSLA(r.db.QueryRow(ctx, query, id))
}

func (r *ticketSLARepository) ListByStatus(ctx context.Context, status domain.SLAStatus) ([]domain.TicketSLA, error) {
	query := `SELECT ` + ticketSLAColumns + ` FROM ticket_slas WHERE status=$1 ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, string(status))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.TicketSLA
	for rows.Next() {
		timer, err := scanTicketSLA(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *timer)
	}
	return result, rows.Err()
}

func scanTicketSLA(row pgx.Row) (*domain.TicketSLA, error) {
	var (
		timer  domain.TicketSLA
		status string
	)
	if err := row.Scan(
		&timer.ID,
		&timer.TicketID,
		&timer.SLADefinitionID,
		&status,
		&timer.ResponseDueAt,
		&timer.ResponseMetAt,
		&timer.ResponseBreached,
		&timer.ResolutionDueAt,
		&timer.ResolutionMetAt,
		&timer.ResolutionBreached,
		&timer.PauseStartAt,
		&timer.TotalPauseMinutes,
		&timer.ResponseWarningSent,
		&timer.ResolutionWarningSent,
		&timer.ResponseBreachNotified,
		&timer.ResolutionBreachNotified,
		&timer.CreatedAt,
		&timer.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	timer.Status = domain.SLAStatus(status)
	timer.ResponseDueAt = timer.ResponseDueAt.UTC()
	timer.ResolutionDueAt = timer.ResolutionDueAt.UTC()
	timer.ResponseMetAt = utcPtr(timer.ResponseMetAt)
	timer.ResolutionMetAt = utcPtr(timer.ResolutionMetAt)
	timer.PauseStartAt = utcPtr(timer.PauseStartAt)
	timer.CreatedAt = timer.CreatedAt.UTC()
	timer.UpdatedAt = timer.UpdatedAt.UTC()
	return &timer, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
