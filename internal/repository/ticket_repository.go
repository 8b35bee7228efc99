package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpticket-service/internal/domain"
)

// TicketFilter captures list parameters.
type TicketFilter struct {
	Stage         *int
	Statuses      []domain.TicketStatus
	RaisedBy      *string
	PCAccountable *string
	ProblemSolver *string
	TicketNo      *string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	Limit         int
	Offset        int
}

// TicketRepository encapsulates help-ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetByIDForUpdate loads the row and holds its lock until the transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	// NextDailySequence serializes raisers of the same day and returns count+1
	// of tickets whose number starts with prefix.
	NextDailySequence(ctx context.Context, prefix string) (int, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	db DBTX
}

const ticketColumns = `id, ticket_no, location, issue_description, desired_date, priority, image_url,
    raised_by, pc_accountable, problem_solver, current_stage, status,
    pc_planned_date, pc_actual_date, pc_status, pc_remark, pc_time_difference_ms,
    solver_planned_date, solver_actual_date, solver_remark, proof_url, solver_time_difference_ms, revise_count,
    pc_planned_stage4, pc_actual_stage4, pc_status_stage4, pc_remark_stage4, pc_time_difference_stage4_ms,
    closing_planned, closing_actual, closing_status, closing_remark, closing_rating, closing_time_difference_ms,
    reraise_date, reraise_remark, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, t *domain.Ticket) error {
	const query = `
        INSERT INTO help_tickets (ticket_no, location, issue_description, desired_date, priority, image_url,
            raised_by, pc_accountable, problem_solver, current_stage, status, pc_planned_date, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)
        RETURNING id, updated_at`
	return r.db.QueryRow(ctx, query,
		t.TicketNo,
		t.Location,
		t.IssueDescription,
		t.DesiredDate,
		t.Priority,
		t.ImageURL,
		t.RaisedBy,
		t.PCAccountable,
		t.ProblemSolver,
		t.CurrentStage,
		t.Status,
		t.PCPlannedDate,
		t.CreatedAt,
	).Scan(&t.ID, &t.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, t *domain.Ticket) error {
	const query = `
        UPDATE help_tickets SET
            problem_solver=$1, current_stage=$2, status=$3,
            pc_planned_date=$4, pc_actual_date=$5, pc_status=$6, pc_remark=$7, pc_time_difference_ms=$8,
            solver_planned_date=$9, solver_actual_date=$10, solver_remark=$11, proof_url=$12,
            solver_time_difference_ms=$13, revise_count=$14,
            pc_planned_stage4=$15, pc_actual_stage4=$16, pc_status_stage4=$17, pc_remark_stage4=$18,
            pc_time_difference_stage4_ms=$19,
            closing_planned=$20, closing_actual=$21, closing_status=$22, closing_remark=$23, closing_rating=$24,
            closing_time_difference_ms=$25, reraise_date=$26, reraise_remark=$27, updated_at=$28
        WHERE id=$29`
	cmd, err := r.db.Exec(ctx, query,
		t.ProblemSolver,
		t.CurrentStage,
		t.Status,
		t.PCPlannedDate,
		t.PCActualDate,
		t.PCStatus,
		t.PCRemark,
		durationToMillis(t.PCTimeDifference),
		t.SolverPlannedDate,
		t.SolverActualDate,
		t.SolverRemark,
		t.ProofURL,
		durationToMillis(t.SolverTimeDifference),
		t.ReviseCount,
		t.PCPlannedStage4,
		t.PCActualStage4,
		t.PCStatusStage4,
		t.PCRemarkStage4,
		durationToMillis(t.PCTimeDifferenceStage4),
		t.ClosingPlanned,
		t.ClosingActual,
		t.ClosingStatus,
		t.ClosingRemark,
		t.ClosingRating,
		durationToMillis(t.ClosingTimeDifference),
		t.ReraiseDate,
		t.ReraiseRemark,
		t.UpdatedAt,
		t.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM help_tickets WHERE id=$1`
	return scanTicket(r.db.QueryRow(ctx, query, id))
}

func (r *ticketRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM help_tickets WHERE id=$1 FOR UPDATE`
	return scanTicket(r.db.QueryRow(ctx, query, id))
}

func (r *ticketRepository) NextDailySequence(ctx context.Context, prefix string) (int, error) {
	if _, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, prefix); err != nil {
		return 0, err
	}
	var count int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM help_tickets WHERE ticket_no LIKE $1`, prefix+"%",
	).Scan(&count); err != nil {
		return 0, err
	}
	return count + 1, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Stage != nil {
		args = append(args, *filter.Stage)
		clauses = append(clauses, fmt.Sprintf("current_stage=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.RaisedBy != nil {
		args = append(args, *filter.RaisedBy)
		clauses = append(clauses, fmt.Sprintf("raised_by=$%d", len(args)))
	}
	if filter.PCAccountable != nil {
		args = append(args, *filter.PCAccountable)
		clauses = append(clauses, fmt.Sprintf("pc_accountable=$%d", len(args)))
	}
	if filter.ProblemSolver != nil {
		args = append(args, *filter.ProblemSolver)
		clauses = append(clauses, fmt.Sprintf("problem_solver=$%d", len(args)))
	}
	if filter.TicketNo != nil && strings.TrimSpace(*filter.TicketNo) != "" {
		args = append(args, "%"+strings.ToUpper(strings.TrimSpace(*filter.TicketNo))+"%")
		clauses = append(clauses, fmt.Sprintf("ticket_no LIKE $%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit, offset := normalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM help_tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var t domain.Ticket
	var pcDiff, solverDiff, stage4Diff, closingDiff *int64
	if err := row.Scan(
		&t.ID,
		&t.TicketNo,
		&t.Location,
		&t.IssueDescription,
		&t.DesiredDate,
		&t.Priority,
		&t.ImageURL,
		&t.RaisedBy,
		&t.PCAccountable,
		&t.ProblemSolver,
		&t.CurrentStage,
		&t.Status,
		&t.PCPlannedDate,
		&t.PCActualDate,
		&t.PCStatus,
		&t.PCRemark,
		&pcDiff,
		&t.SolverPlannedDate,
		&t.SolverActualDate,
		&t.SolverRemark,
		&t.ProofURL,
		&solverDiff,
		&t.ReviseCount,
		&t.PCPlannedStage4,
		&t.PCActualStage4,
		&t.PCStatusStage4,
		&t.PCRemarkStage4,
		&stage4Diff,
		&t.ClosingPlanned,
		&t.ClosingActual,
		&t.ClosingStatus,
		&t.ClosingRemark,
		&t.ClosingRating,
		&closingDiff,
		&t.ReraiseDate,
		&t.ReraiseRemark,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.PCTimeDifference = millisToDuration(pcDiff)
	t.SolverTimeDifference = millisToDuration(solverDiff)
	t.PCTimeDifferenceStage4 = millisToDuration(stage4Diff)
	t.ClosingTimeDifference = millisToDuration(closingDiff)
	return &t, nil
}

func durationToMillis(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

func millisToDuration(ms *int64) *time.Duration {
	if ms == nil {
		return nil
	}
	d := time.Duration(*ms) * time.Millisecond
	return &d
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
