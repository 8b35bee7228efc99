package repository

import (
	"context"

	"github.com/spec-kit/helpticket-service/internal/domain"
)

// TicketHistoryRepository stores audit entries. There is no update or delete.
type TicketHistoryRepository interface {
	Create(ctx context.Context, entry *domain.TicketHistoryEntry) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistoryEntry, error)
}

type ticketHistoryRepository struct {
	db DBTX
}

func (r *ticketHistoryRepository) Create(ctx context.Context, entry *domain.TicketHistoryEntry) error {
	const query = `
        INSERT INTO help_ticket_history (ticket_id, ticket_no, stage, old_values, new_values, action_type, action_by, remarks)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, action_date`
	return r.db.QueryRow(ctx, query,
		entry.TicketID,
		entry.TicketNo,
		entry.Stage,
		entry.OldValues,
		entry.NewValues,
		entry.ActionType,
		entry.ActionBy,
		entry.Remarks,
	).Scan(&entry.ID, &entry.ActionDate)
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistoryEntry, error) {
	const query = `
        SELECT id, ticket_id, ticket_no, stage, old_values, new_values, action_type, action_by, action_date, remarks
        FROM help_ticket_history WHERE ticket_id=$1 ORDER BY action_date ASC, seq ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketHistoryEntry
	for rows.Next() {
		var entry domain.TicketHistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.TicketNo,
			&entry.Stage,
			&entry.OldValues,
			&entry.NewValues,
			&entry.ActionType,
			&entry.ActionBy,
			&entry.ActionDate,
			&entry.Remarks,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
