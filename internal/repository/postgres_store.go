package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the pgx backed Store.
type PostgresStore struct {
	pool *pgxpool.Pool
	db   DBTX
	inTx bool
}

// NewPostgresStore builds a store on top of the pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, db: pool}
}

func (s *PostgresStore) Users() UserRepository     { return &userRepository{db: s.db} }
func (s *PostgresStore) Tickets() TicketRepository { return &ticketRepository{db: s.db} }
func (s *PostgresStore) SLADefinitions() SLADefinitionRepository {
	return &slaDefinitionRepository{db: s.db}
}
func (s *PostgresStore) Timers() TicketSLARepository       { return &ticketSLARepository{db: s.db} }
func (s *PostgresStore) Assignments() AssignmentRepository { return &assignmentRepository{db: s.db} }
func (s *PostgresStore) Notifications() NotificationRepository {
	return &notificationRepository{db: s.db}
}
func (s *PostgresStore) History() TicketHistoryRepository { return &ticketHistoryRepository{db: s.db} }

// ExecTx runs fn in a transaction. Nested calls join the outer transaction.
func (s *PostgresStore) ExecTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&PostgresStore{pool: s.pool, db: tx, inTx: true})
	})
}
