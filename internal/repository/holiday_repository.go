package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/helpticket-service/internal/domain"
)

// ErrDuplicateHoliday is returned when the holiday date already exists.
var ErrDuplicateHoliday = errors.New("holiday date already exists")

const uniqueViolation = "23505"

// HolidayRepository manages holiday exceptions.
type HolidayRepository interface {
	List(ctx context.Context) ([]domain.Holiday, error)
	Create(ctx context.Context, holiday *domain.Holiday) error
	Delete(ctx context.Context, id string) error
}

type holidayRepository struct {
	db DBTX
}

func (r *holidayRepository) List(ctx context.Context) ([]domain.Holiday, error) {
	const query = `SELECT id, holiday_date, description, created_at FROM help_ticket_holidays ORDER BY holiday_date ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Holiday
	for rows.Next() {
		var h domain.Holiday
		if err := rows.Scan(&h.ID, &h.Date, &h.Description, &h.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

func (r *holidayRepository) Create(ctx context.Context, holiday *domain.Holiday) error {
	const query = `
        INSERT INTO help_ticket_holidays (holiday_date, description)
        VALUES ($1,$2)
        RETURNING id, created_at`
	err := r.db.QueryRow(ctx, query, holiday.Date, holiday.Description).Scan(&holiday.ID, &holiday.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateHoliday
	}
	return err
}

func (r *holidayRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM help_ticket_holidays WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
