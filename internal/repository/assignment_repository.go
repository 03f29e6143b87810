package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/itsm-sla/internal/domain"
)

type assignmentRepository struct {
	db DBTX
}

const groupColumns = `id, name, description, email, manager_id, is_active, created_at, updated_at`

func (r *assignmentRepository) CreateGroup(ctx context.Context, group *domain.AssignmentGroup) error {
	const query = `
        INSERT INTO assignment_groups (` + groupColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.db.Exec(ctx, query,
		group.ID,
		group.Name,
		group.Description,
		group.Email,
		group.ManagerID,
		group.IsActive,
		group.CreatedAt,
		group.UpdatedAt,
	)
	return mapError(err)
}

func (r *assignmentRepository) GetGroup(ctx context.Context, id string) (*domain.AssignmentGroup, error) {
	query := `SELECT ` + groupColumns + ` FROM assignment_groups WHERE id=$1`
	return scanGroup(r.db.QueryRow(ctx, query, id))
}

func (r *assignmentRepository) FindActiveGroupByName(ctx context.Context, name string) (*domain.AssignmentGroup, error) {
	query := `SELECT ` + groupColumns + `
        FROM assignment_groups WHERE LOWER(name)=LOWER($1) AND is_active
        ORDER BY created_at LIMIT 1`
	return scanGroup(r.db.QueryRow(ctx, query, name))
}

func (r *assignmentRepository) ListGroups(ctx context.Context, activeOnly bool) ([]domain.AssignmentGroup, error) {
	query := `SELECT ` + groupColumns + ` FROM assignment_groups WHERE is_active OR NOT $1 ORDER BY name`
	rows, err := r.db.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.AssignmentGroup
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *group)
	}
	return result, rows.Err()
}

func (r *assignmentRepository) LockGroup(ctx context.Context, groupID string) error {
	var id string
	err := r.db.QueryRow(ctx, `SELECT id FROM assignment_groups WHERE id=$1 FOR UPDATE`, groupID).Scan(&id)
	return mapError(err)
}

func scanGroup(row pgx.Row) (*domain.AssignmentGroup, error) {
	var group domain.AssignmentGroup
	if err := row.Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&group.Email,
		&group.ManagerID,
		&group.IsActive,
		&group.CreatedAt,
		&group.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	group.CreatedAt = group.CreatedAt.UTC()
	group.UpdatedAt = group.UpdatedAt.UTC()
	return &group, nil
}

func (r *assignmentRepository) AddMember(ctx context.Context, member *domain.AssignmentGroupMember) error {
	const query = `
        INSERT INTO assignment_group_members (id, group_id, user_id, is_active, assignment_count, last_assigned_at, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.db.Exec(ctx, query,
		member.ID,
		member.GroupID,
		member.UserID,
		member.IsActive,
		member.AssignmentCount,
		member.LastAssignedAt,
		member.CreatedAt,
	)
	return mapError(err)
}

const memberSelect = `
        SELECT m.id, m.group_id, m.user_id, u.full_name, u.email, m.is_active,
               m.assignment_count, m.last_assigned_at, m.created_at
        FROM assignment_group_members m
        JOIN users u ON u.id = m.user_id`

func (r *assignmentRepository) ListMembers(ctx context.Context, groupID string, activeOnly bool) ([]domain.AssignmentGroupMember, error) {
	query := memberSelect + `
        WHERE m.group_id=$1 AND (m.is_active OR NOT $2)
        ORDER BY m.assignment_count ASC, m.last_assigned_at ASC NULLS FIRST, m.created_at ASC`
	rows, err := r.db.Query(ctx, query, groupID, activeOnly)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.AssignmentGroupMember
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *member)
	}
	return result, rows.Err()
}

func (r *assignmentRepository) RecordAssignment(ctx context.Context, memberID string, at time.Time) (*domain.AssignmentGroupMember, error) {
	const query = `
        UPDATE assignment_group_members
        SET assignment_count = assignment_count + 1, last_assigned_at = $1
        WHERE id=$2`
	cmd, err := r.db.Exec(ctx, query, at, memberID)
	if err != nil {
		return nil, mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return scanMember(r.db.QueryRow(ctx, memberSelect+` WHERE m.id=$1`, memberID))
}

func scanMember(row pgx.Row) (*domain.AssignmentGroupMember, error) {
	var member domain.AssignmentGroupMember
	if err := row.Scan(
		&member.ID,
		&member.GroupID,
		&member.UserID,
		&member.UserName,
		&member.UserEmail,
		&member.IsActive,
		&member.AssignmentCount,
		&member.LastAssignedAt,
		&member.CreatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	member.LastAssignedAt = utcPtr(member.LastAssignedAt)
	member.CreatedAt = member.CreatedAt.UTC()
	return &member, nil
}

func (r *assignmentRepository) CreateMapping(ctx context.Context, mapping *domain.CategoryAssignmentMapping) error {
	const query = `
        INSERT INTO category_assignment_mappings (id, category, subcategory, group_id, priority_override, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)`
	var override *string
	if mapping.PriorityOverride != nil {
		p := string(*mapping.PriorityOverride)
		override = &p
	}
	_, err := r.db.Exec(ctx, query,
		mapping.ID,
		mapping.Category,
		mapping.Subcategory,
		mapping.GroupID,
		override,
		mapping.CreatedAt,
	)
	return mapError(err)
}

func (r *assignmentRepository) FindMapping(ctx context.Context, category string, subcategory *string) (*domain.CategoryAssignmentMapping, error) {
	const columns = `SELECT id, category, subcategory, group_id, priority_override, created_at
        FROM category_assignment_mappings`
	var row pgx.Row
	if subcategory == nil {
		row = r.db.QueryRow(ctx, columns+` WHERE category=$1 AND subcategory IS NULL LIMIT 1`, category)
	} else {
		row = r.db.QueryRow(ctx, columns+` WHERE category=$1 AND subcategory=$2 LIMIT 1`, category, *subcategory)
	}

	var (
		mapping  domain.CategoryAssignmentMapping
		override *string
	)
	if err := row.Scan(
		&mapping.ID,
		&mapping.Category,
		&mapping.Subcategory,
		&mapping.GroupID,
		&override,
		&mapping.CreatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	if override != nil {
		p := domain.Priority(*override)
		mapping.PriorityOverride = &p
	}
	mapping.CreatedAt = mapping.CreatedAt.UTC()
	return &mapping, nil
}
