package service

import (
	"context"
	"strings"

	"github.com/spec-kit/helpticket-service/internal/domain"
	"github.com/spec-kit/helpticket-service/internal/repository"
)

// HistoryRecord describes one audited transition.
type HistoryRecord struct {
	TicketID string
	TicketNo string
	Stage    int
	Old      *domain.Ticket
	New      *domain.Ticket
	Action   domain.TicketActionType
	ActorID  string
	Remarks  string
}

// HistoryRecorder appends audit entries. It writes through whatever store it
// is handed, so callers pass the transaction-bound store of the mutation the
// entry documents.
type HistoryRecorder struct{}

// Record snapshots Old and New and inserts one entry. The action date is
// assigned by the store.
func (HistoryRecorder) Record(ctx context.Context, store repository.Store, rec HistoryRecord) (*domain.TicketHistoryEntry, error) {
	entry := &domain.TicketHistoryEntry{
		TicketID:   rec.TicketID,
		TicketNo:   rec.TicketNo,
		Stage:      rec.Stage,
		OldValues:  domain.NewTicketSnapshot(rec.Old),
		NewValues:  domain.NewTicketSnapshot(rec.New),
		ActionType: rec.Action,
		ActionBy:   rec.ActorID,
		Remarks:    strings.TrimSpace(rec.Remarks),
	}
	if err := store.History().Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}
