package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/spec-kit/helpticket-service/pkg/util/errorutil"
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store groups the repositories the help-ticket workflow reads and writes.
type Store interface {
	Tickets() TicketRepository
	History() TicketHistoryRepository
	Calendar() CalendarRepository
	Holidays() HolidayRepository
}

// Transactor is a Store that can also run work atomically. The Store passed to
// fn is bound to the transaction; everything written through it commits or
// rolls back together.
type Transactor interface {
	Store
	InTx(ctx context.Context, fn func(tx Store) error) error
}

type pgStore struct {
	db DBTX
}

func (s *pgStore) Tickets() TicketRepository { return &ticketRepository{db: s.db} }
func (s *pgStore) History() TicketHistoryRepository { return &ticketHistoryRepository{db: s.db} }
func (s *pgStore) Calendar() CalendarRepository { return &calendarRepository{db: s.db} }
func (s *pgStore) Holidays() HolidayRepository { return &holidayRepository{db: s.db} }

// PostgresStore is the pgx-backed Transactor.
type PostgresStore struct {
	pgStore
	pool *pgxpool.Pool
}

// NewPostgresStore wraps a pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pgStore: pgStore{db: pool}, pool: pool}
}

// InTx runs fn in a read-committed transaction. Rollback happens on error or
// panic; commit only when fn returns nil. Begin and commit failures surface as
// TransactionFailure.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Store) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return apperrors.NewTransactionFailure(fmt.Errorf("begin: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(&pgStore{db: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return apperrors.NewTransactionFailure(fmt.Errorf("rollback (%v) after: %w", rbErr, err))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewTransactionFailure(fmt.Errorf("commit: %w", err))
	}
	return nil
}
