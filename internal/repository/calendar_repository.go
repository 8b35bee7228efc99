package repository

import (
	"context"
	"fmt"

	"github.com/spec-kit/helpticket-service/internal/domain"
)

// CalendarRepository persists the singleton calendar configuration row.
type CalendarRepository interface {
	Get(ctx context.Context) (*domain.CalendarConfig, error)
	// Update merges patch with COALESCE so nil fields keep their stored value.
	Update(ctx context.Context, patch domain.CalendarConfigPatch) (*domain.CalendarConfig, error)
	// EnsureDefault inserts cfg only when no row exists yet.
	EnsureDefault(ctx context.Context, cfg domain.CalendarConfig) error
}

type calendarRepository struct {
	db DBTX
}

const calendarColumns = `to_char(office_start, 'HH24:MI'), to_char(office_end, 'HH24:MI'), working_days,
    stage2_tat_hours, stage4_tat_hours, stage5_tat_hours, time_zone, updated_at`

func (r *calendarRepository) Get(ctx context.Context) (*domain.CalendarConfig, error) {
	query := `SELECT ` + calendarColumns + ` FROM help_ticket_config WHERE id=1`
	return scanCalendar(r.db.QueryRow(ctx, query))
}

func (r *calendarRepository) Update(ctx context.Context, patch domain.CalendarConfigPatch) (*domain.CalendarConfig, error) {
	query := `
        UPDATE help_ticket_config SET
            office_start = COALESCE($1::time, office_start),
            office_end = COALESCE($2::time, office_end),
            working_days = COALESCE($3::int[], working_days),
            stage2_tat_hours = COALESCE($4, stage2_tat_hours),
            stage4_tat_hours = COALESCE($5, stage4_tat_hours),
            stage5_tat_hours = COALESCE($6, stage5_tat_hours),
            time_zone = COALESCE($7, time_zone),
            updated_at = NOW()
        WHERE id=1
        RETURNING ` + calendarColumns
	var workingDays []int
	if patch.WorkingDays != nil {
		workingDays = domain.NormalizeWorkingDays(patch.WorkingDays)
	}
	return scanCalendar(r.db.QueryRow(ctx, query,
		timeOfDayParam(patch.OfficeStart),
		timeOfDayParam(patch.OfficeEnd),
		workingDays,
		patch.Stage2TATHours,
		patch.Stage4TATHours,
		patch.Stage5TATHours,
		patch.TimeZone,
	))
}

func (r *calendarRepository) EnsureDefault(ctx context.Context, cfg domain.CalendarConfig) error {
	const query = `
        INSERT INTO help_ticket_config (id, office_start, office_end, working_days,
            stage2_tat_hours, stage4_tat_hours, stage5_tat_hours, time_zone)
        VALUES (1, $1::time, $2::time, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO NOTHING`
	_, err := r.db.Exec(ctx, query,
		cfg.OfficeStart.String(),
		cfg.OfficeEnd.String(),
		domain.NormalizeWorkingDays(cfg.WorkingDays),
		cfg.Stage2TATHours,
		cfg.Stage4TATHours,
		cfg.Stage5TATHours,
		cfg.TimeZone,
	)
	return err
}

func scanCalendar(row rowScanner) (*domain.CalendarConfig, error) {
	var cfg domain.CalendarConfig
	var start, end string
	if err := row.Scan(
		&start,
		&end,
		&cfg.WorkingDays,
		&cfg.Stage2TATHours,
		&cfg.Stage4TATHours,
		&cfg.Stage5TATHours,
		&cfg.TimeZone,
		&cfg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	var err error
	if cfg.OfficeStart, err = domain.ParseTimeOfDay(start); err != nil {
		return nil, fmt.Errorf("stored office_start: %w", err)
	}
	if cfg.OfficeEnd, err = domain.ParseTimeOfDay(end); err != nil {
		return nil, fmt.Errorf("stored office_end: %w", err)
	}
	return &cfg, nil
}

func timeOfDayParam(t *domain.TimeOfDay) *string {
	if t == nil {
		return nil
	}
	s := t.String()
	return &s
}
