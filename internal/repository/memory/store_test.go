package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpticket-service/internal/domain"
	"github.com/spec-kit/helpticket-service/internal/repository"
)

func TestInTxRollsBackOnError(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.InTx(ctx, func(tx repository.Store) error {
		ticket := &domain.Ticket{TicketNo: "HT-20250602-0001", CreatedAt: time.Now()}
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	list, err := store.Tickets().List(ctx, repository.TicketFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no tickets after rollback, got %d", len(list))
	}
}

func TestInTxCommits(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	var id string

	err := store.InTx(ctx, func(tx repository.Store) error {
		ticket := &domain.Ticket{TicketNo: "HT-20250602-0001", CreatedAt: time.Now()}
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return err
		}
		id = ticket.ID
		return tx.History().Create(ctx, &domain.TicketHistoryEntry{TicketID: ticket.ID, ActionType: domain.ActionTicketRaised})
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if _, err := store.Tickets().GetByID(ctx, id); err != nil {
		t.Fatalf("get: %v", err)
	}
	entries, _ := store.History().ListByTicket(ctx, id)
	if len(entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(entries))
	}
}

func TestGetByIDReturnsCopy(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	ticket := &domain.Ticket{TicketNo: "HT-20250602-0001", Location: "plant"}
	if err := store.Tickets().Create(ctx, ticket); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, _ := store.Tickets().GetByID(ctx, ticket.ID)
	got.Location = "changed"
	again, _ := store.Tickets().GetByID(ctx, ticket.ID)
	if again.Location != "plant" {
		t.Fatalf("stored ticket mutated through returned copy")
	}
}

func TestMissingRowsReportNoRows(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if _, err := store.Tickets().GetByID(ctx, "missing"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("ticket: expected ErrNoRows, got %v", err)
	}
	if _, err := store.Calendar().Get(ctx); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("calendar: expected ErrNoRows, got %v", err)
	}
	if err := store.Holidays().Delete(ctx, "missing"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("holiday: expected ErrNoRows, got %v", err)
	}
}

func TestHolidayDuplicateDate(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := store.Holidays().Create(ctx, &domain.Holiday{Date: day, Description: "New Year"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := store.Holidays().Create(ctx, &domain.Holiday{Date: day, Description: "again"})
	if !errors.Is(err, repository.ErrDuplicateHoliday) {
		t.Fatalf("expected ErrDuplicateHoliday, got %v", err)
	}
}

func TestCalendarEnsureDefaultAndCoalesceUpdate(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	defaults := domain.CalendarConfig{
		OfficeStart:    domain.TimeOfDay{Hour: 9},
		OfficeEnd:      domain.TimeOfDay{Hour: 18},
		WorkingDays:    []int{5, 1, 2, 3, 4},
		Stage2TATHours: 4,
		Stage4TATHours: 4,
		Stage5TATHours: 4,
		TimeZone:       "UTC",
	}
	if err := store.Calendar().EnsureDefault(ctx, defaults); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := store.Calendar().EnsureDefault(ctx, domain.CalendarConfig{TimeZone: "Asia/Kolkata"}); err != nil {
		t.Fatalf("ensure again: %v", err)
	}

	tat := 8.0
	updated, err := store.Calendar().Update(ctx, domain.CalendarConfigPatch{Stage2TATHours: &tat})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Stage2TATHours != 8 || updated.Stage4TATHours != 4 || updated.TimeZone != "UTC" {
		t.Fatalf("unexpected merge result %+v", updated)
	}
	if len(updated.WorkingDays) != 5 || updated.WorkingDays[0] != 1 {
		t.Fatalf("working days not normalized: %v", updated.WorkingDays)
	}
}

func TestNextDailySequenceCountsPrefix(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	for _, no := range []string{"HT-20250601-0001", "HT-20250602-0001", "HT-20250602-0002"} {
		if err := store.Tickets().Create(ctx, &domain.Ticket{TicketNo: no}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	seq, err := store.Tickets().NextDailySequence(ctx, "HT-20250602-")
	if err != nil {
		t.Fatalf("sequence: %v", err)
	}
	if seq != 3 {
		t.Fatalf("expected 3, got %d", seq)
	}
}
