package repository

import (
	"context"
	"strings"

	"github.com/spec-kit/itsm-sla/internal/domain"
)

type userRepository struct {
	db DBTX
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, full_name, email, is_active, created_at)
        VALUES ($1,$2,$3,$4,$5)`
	_, err := r.db.Exec(ctx, query, user.ID, user.FullName, strings.ToLower(user.Email), user.IsActive, user.CreatedAt)
	return mapError(err)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, full_name, email, is_active, created_at FROM users WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, full_name, email, is_active, created_at FROM users WHERE email=$1`
	return r.fetchSingle(ctx, query, strings.ToLower(email))
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.FullName,
		&user.Email,
		&user.IsActive,
		&user.CreatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}
