package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpticket-service/internal/domain"
	"github.com/spec-kit/helpticket-service/internal/events"
	"github.com/spec-kit/helpticket-service/internal/repository"
	apperrors "github.com/spec-kit/helpticket-service/pkg/util/errorutil"
)

func TestTicketLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, utc(2025, 6, 2, 16, 0))

	ticket, err := env.tickets.RaiseTicket(ctx, raiser, validRaise())
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	if ticket.TicketNo != "HT-20250602-0001" {
		t.Fatalf("unexpected ticket number %s", ticket.TicketNo)
	}
	if ticket.CurrentStage != domain.StageRaise || ticket.Status != domain.TicketStatusOpen {
		t.Fatalf("unexpected initial state %d/%s", ticket.CurrentStage, ticket.Status)
	}
	assertTime(t, "pc planned", ticket.PCPlannedDate, utc(2025, 6, 3, 11, 0))
	if ticket.RaisedBy != raiser.EmployeeID {
		t.Fatalf("raised_by not set from actor")
	}

	env.clock.Set(utc(2025, 6, 3, 10, 0))
	planned := utc(2025, 6, 5, 12, 0)
	ticket, err = env.tickets.PCPlanning(ctx, pcActor, ticket.ID, PCPlanningInput{
		PlannedDate:   planned,
		ProblemSolver: "solver-2",
		PCStatus:      "APPROVED",
		Remark:        "assign to maintenance",
	})
	if err != nil {
		t.Fatalf("pc planning: %v", err)
	}
	if ticket.CurrentStage != domain.StagePCPlanning || ticket.Status != domain.TicketStatusInPlanning {
		t.Fatalf("unexpected state after planning %d/%s", ticket.CurrentStage, ticket.Status)
	}
	assertTime(t, "pc planned override", ticket.PCPlannedDate, planned)
	assertTime(t, "solver planned seed", ticket.SolverPlannedDate, planned)
	assertTime(t, "pc actual", ticket.PCActualDate, utc(2025, 6, 3, 10, 0))
	assertDuration(t, "pc difference", ticket.PCTimeDifference, 18*time.Hour)
	if ticket.ProblemSolver != "solver-2" {
		t.Fatalf("problem solver not reassigned")
	}

	env.clock.Set(utc(2025, 6, 5, 10, 0))
	proof := "http://minio/evidence/solve-proof/x.jpg"
	ticket, err = env.tickets.SolveTicket(ctx, solverActor, ticket.ID, SolveInput{Remark: "motor replaced", ProofURL: &proof})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if ticket.CurrentStage != domain.StageSolve || ticket.Status != domain.TicketStatusSolved {
		t.Fatalf("unexpected state after solve %d/%s", ticket.CurrentStage, ticket.Status)
	}
	assertTime(t, "stage4 planned", ticket.PCPlannedStage4, utc(2025, 6, 5, 14, 0))
	assertDuration(t, "solver difference", ticket.SolverTimeDifference, -2*time.Hour)
	if ticket.ProofURL == nil || *ticket.ProofURL != proof {
		t.Fatalf("proof url not stored")
	}

	env.clock.Set(utc(2025, 6, 5, 11, 0))
	revised := utc(2025, 6, 6, 12, 0)
	ticket, err = env.tickets.ReviseTicketDate(ctx, solverActor, ticket.ID, ReviseDateInput{NewPlannedDate: revised, Remark: "waiting on parts"})
	if err != nil {
		t.Fatalf("revise: %v", err)
	}
	if ticket.ReviseCount != 1 || ticket.CurrentStage != domain.StageSolve || ticket.Status != domain.TicketStatusSolved {
		t.Fatalf("revise changed stage or count: %d %d/%s", ticket.ReviseCount, ticket.CurrentStage, ticket.Status)
	}
	assertTime(t, "revised date", ticket.SolverPlannedDate, revised)

	env.clock.Set(utc(2025, 6, 6, 17, 0))
	ticket, err = env.tickets.PCConfirmation(ctx, pcActor, ticket.ID, PCConfirmationInput{Status: "VERIFIED", Remark: "works"})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if ticket.CurrentStage != domain.StageConfirmation || ticket.Status != domain.TicketStatusConfirmed {
		t.Fatalf("unexpected state after confirm %d/%s", ticket.CurrentStage, ticket.Status)
	}
	assertTime(t, "closing planned", ticket.ClosingPlanned, utc(2025, 6, 9, 12, 0))
	assertDuration(t, "stage4 difference", ticket.PCTimeDifferenceStage4, 31*time.Hour)

	env.clock.Set(utc(2025, 6, 9, 9, 30))
	ticket, err = env.tickets.CloseTicket(ctx, raiser, ticket.ID, CloseInput{Status: "SATISFIED", Rating: 4, Remark: "thanks"})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if ticket.CurrentStage != domain.StageClosing || ticket.Status != domain.TicketStatusClosed {
		t.Fatalf("unexpected state after close %d/%s", ticket.CurrentStage, ticket.Status)
	}
	if ticket.ClosingRating == nil || *ticket.ClosingRating != 4 {
		t.Fatalf("rating not stored")
	}
	assertDuration(t, "closing difference", ticket.ClosingTimeDifference, 64*time.Hour+30*time.Minute)

	env.clock.Set(utc(2025, 6, 10, 9, 0))
	ticket, err = env.tickets.ReraiseTicket(ctx, raiser, ticket.ID, ReraiseInput{Remark: "noise is back"})
	if err != nil {
		t.Fatalf("reraise: %v", err)
	}
	if ticket.CurrentStage != domain.StageRaise || ticket.Status != domain.TicketStatusReraised {
		t.Fatalf("unexpected state after reraise %d/%s", ticket.CurrentStage, ticket.Status)
	}
	assertTime(t, "reraise date", ticket.ReraiseDate, utc(2025, 6, 10, 9, 0))

	// Earlier cycle data stays readable.
	stored, err := env.tickets.GetTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.PCActualDate == nil || stored.SolverActualDate == nil || stored.PCActualStage4 == nil ||
		stored.ClosingActual == nil || stored.ClosingRating == nil || stored.ReviseCount != 1 {
		t.Fatalf("reraise cleared prior stage data: %+v", stored)
	}

	history, err := env.tickets.ListHistory(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	wantActions := []domain.TicketActionType{
		domain.ActionTicketRaised,
		domain.ActionPCPlanningComplete,
		domain.ActionTicketSolved,
		domain.ActionDateRevised,
		domain.ActionPCConfirmed,
		domain.ActionTicketClosed,
		domain.ActionTicketReraised,
	}
	wantStages := []int{1, 2, 3, 3, 4, 5, 1}
	if len(history) != len(wantActions) {
		t.Fatalf("expected %d history entries, got %d", len(wantActions), len(history))
	}
	for i, entry := range history {
		if entry.ActionType != wantActions[i] {
			t.Fatalf("entry %d: expected %s, got %s", i, wantActions[i], entry.ActionType)
		}
		if entry.Stage != wantStages[i] {
			t.Fatalf("entry %d: expected stage %d, got %d", i, wantStages[i], entry.Stage)
		}
		if entry.NewValues == nil || entry.NewValues.SchemaVersion != domain.TicketSnapshotVersion {
			t.Fatalf("entry %d: missing versioned snapshot", i)
		}
		if i == 0 {
			if entry.OldValues != nil {
				t.Fatalf("raise entry must not carry old values")
			}
			continue
		}
		prev := history[i-1].NewValues.Ticket
		if entry.OldValues == nil || entry.OldValues.Ticket.Status != prev.Status ||
			entry.OldValues.Ticket.CurrentStage != prev.CurrentStage {
			t.Fatalf("entry %d: old values do not match previous new values", i)
		}
	}
	if history[3].OldValues.Ticket.ReviseCount != 0 || history[3].NewValues.Ticket.ReviseCount != 1 {
		t.Fatalf("revise snapshot does not bracket the mutation")
	}

	snap := env.metrics.Snapshot()
	if snap.Transitions[string(domain.ActionTicketSolved)] != 1 {
		t.Fatalf("transition metrics not recorded: %v", snap.Transitions)
	}
	if snap.LateCompletion[string(domain.ActionPCConfirmed)] != 1 {
		t.Fatalf("late confirmation not recorded: %v", snap.LateCompletion)
	}

	types := env.events.types()
	if len(types) != 7 || types[0] != events.EventTicketRaised || types[6] != events.EventTicketTransitioned {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestPCPlanningRequiresAccountableActor(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, utc(2025, 6, 2, 10, 0))
	ticket, err := env.tickets.RaiseTicket(ctx, raiser, validRaise())
	if err != nil {
		t.Fatalf("raise: %v", err)
	}

	for _, actor := range []domain.Actor{raiser, solverActor, adminActor} {
		_, err := env.tickets.PCPlanning(ctx, actor, ticket.ID, PCPlanningInput{
			PlannedDate: utc(2025, 6, 4, 12, 0),
			PCStatus:    "APPROVED",
		})
		if !apperrors.IsCode(err, apperrors.CodeForbidden) {
			t.Fatalf("actor %s: expected forbidden, got %v", actor.EmployeeID, err)
		}
	}

	stored, _ := env.tickets.GetTicket(ctx, ticket.ID)
	if stored.CurrentStage != domain.StageRaise || stored.PCActualDate != nil || stored.PCStatus != nil {
		t.Fatalf("rejected planning mutated ticket: %+v", stored)
	}
	history, _ := env.tickets.ListHistory(ctx, ticket.ID)
	if len(history) != 1 {
		t.Fatalf("expected only the raise entry, got %d", len(history))
	}
}

func TestTransitionsFromWrongStage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, utc(2025, 6, 2, 10, 0))
	ticket, err := env.tickets.RaiseTicket(ctx, raiser, validRaise())
	if err != nil {
		t.Fatalf("raise: %v", err)
	}

	cases := []struct {
		name string
		run  func() error
	}{
		{"solve", func() error {
			_, err := env.tickets.SolveTicket(ctx, solverActor, ticket.ID, SolveInput{Remark: "done"})
			return err
		}},
		{"revise", func() error {
			_, err := env.tickets.ReviseTicketDate(ctx, solverActor, ticket.ID, ReviseDateInput{NewPlannedDate: utc(2025, 6, 9, 9, 0)})
			return err
		}},
		{"confirm", func() error {
			_, err := env.tickets.PCConfirmation(ctx, pcActor, ticket.ID, PCConfirmationInput{Status: "OK"})
			return err
		}},
		{"close", func() error {
			_, err := env.tickets.CloseTicket(ctx, raiser, ticket.ID, CloseInput{Status: "OK", Rating: 5})
			return err
		}},
		{"reraise", func() error {
			_, err := env.tickets.ReraiseTicket(ctx, raiser, ticket.ID, ReraiseInput{Remark: "again"})
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); !apperrors.IsCode(err, apperrors.CodeInvalidTransition) {
				t.Fatalf("expected invalid transition, got %v", err)
			}
		})
	}

	history, _ := env.tickets.ListHistory(ctx, ticket.ID)
	if len(history) != 1 {
		t.Fatalf("rejected transitions wrote history: %d entries", len(history))
	}
}

func TestTicketNumbersAreSequentialPerDay(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, utc(2025, 6, 1, 8, 0))

	var numbers []string
	for i := 0; i < 3; i++ {
		ticket, err := env.tickets.RaiseTicket(ctx, raiser, validRaise())
		if err != nil {
			t.Fatalf("raise %d: %v", i, err)
		}
		numbers = append(numbers, ticket.TicketNo)
	}
	want := []string{"HT-20250601-0001", "HT-20250601-0002", "HT-20250601-0003"}
	for i := range want {
		if numbers[i] != want[i] {
			t.Fatalf("ticket %d: expected %s, got %s", i, want[i], numbers[i])
		}
	}

	env.clock.Set(utc(2025, 6, 2, 8, 0))
	next, err := env.tickets.RaiseTicket(ctx, raiser, validRaise())
	if err != nil {
		t.Fatalf("raise next day: %v", err)
	}
	if next.TicketNo != "HT-20250602-0001" {
		t.Fatalf("sequence did not restart on a new day: %s", next.TicketNo)
	}
}

func TestTicketNumberUsesCalendarTimeZone(t *testing.T) {
	ctx := context.Background()
	// 20:00 UTC on June 2 is already June 3 in Kolkata.
	env := newTestEnv(t, utc(2025, 6, 2, 20, 0))
	tz := "Asia/Kolkata"
	if _, err := env.configs.UpdateConfig(ctx, adminActor, domain.CalendarConfigPatch{TimeZone: &tz}); err != nil {
		t.Fatalf("update tz: %v", err)
	}
	ticket, err := env.tickets.RaiseTicket(ctx, raiser, validRaise())
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	if ticket.TicketNo != "HT-20250603-0001" {
		t.Fatalf("expected local day in ticket number, got %s", ticket.TicketNo)
	}
}

func TestRaiseHonoursHolidays(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, utc(2025, 6, 2, 16, 0))
	if _, err := env.configs.AddHoliday(ctx, adminActor, utc(2025, 6, 3, 0, 0), "Plant shutdown"); err != nil {
		t.Fatalf("add holiday: %v", err)
	}
	ticket, err := env.tickets.RaiseTicket(ctx, raiser, validRaise())
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	assertTime(t, "pc planned", ticket.PCPlannedDate, utc(2025, 6, 4, 11, 0))
}

func TestRaiseRollsBackWhenHistoryFails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, utc(2025, 6, 2, 10, 0))
	broken := env.withStore(failingHistoryStore{Store: env.store})

	_, err := broken.RaiseTicket(ctx, raiser, validRaise())
	if !apperrors.IsCode(err, apperrors.CodeTransactionFailure) {
		t.Fatalf("expected transaction failure, got %v", err)
	}
	list, _ := env.tickets.ListTickets(ctx, repository.TicketFilter{})
	if len(list) != 0 {
		t.Fatalf("ticket persisted despite history failure")
	}

	// The failed attempt does not consume a sequence number.
	ticket, err := env.tickets.RaiseTicket(ctx, raiser, validRaise())
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	if ticket.TicketNo != "HT-20250602-0001" {
		t.Fatalf("expected first number, got %s", ticket.TicketNo)
	}
}

func TestTransitionRollsBackWhenHistoryFails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, utc(2025, 6, 2, 10, 0))
	ticket, err := env.tickets.RaiseTicket(ctx, raiser, validRaise())
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	broken := env.withStore(failingHistoryStore{Store: env.store})

	_, err = broken.PCPlanning(ctx, pcActor, ticket.ID, PCPlanningInput{PlannedDate: utc(2025, 6, 4, 9, 0), PCStatus: "APPROVED"})
	if !apperrors.IsCode(err, apperrors.CodeTransactionFailure) {
		t.Fatalf("expected transaction failure, got %v", err)
	}
	stored, _ := env.tickets.GetTicket(ctx, ticket.ID)
	if stored.CurrentStage != domain.StageRaise || stored.PCActualDate != nil {
		t.Fatalf("ticket mutated despite rollback: %+v", stored)
	}
}

func TestTransitionOnMissingTicket(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, utc(2025, 6, 2, 10, 0))

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		_, err := env.tickets.PCPlanning(ctx, pcActor, id, PCPlanningInput{PlannedDate: utc(2025, 6, 4, 9, 0), PCStatus: "OK"})
		if !apperrors.IsCode(err, apperrors.CodeNotFound) {
			t.Fatalf("id %s: expected not found, got %v", id, err)
		}
		if _, err := env.tickets.ListHistory(ctx, id); !apperrors.IsCode(err, apperrors.CodeNotFound) {
			t.Fatalf("id %s: expected not found for history, got %v", id, err)
		}
	}
}

func TestInputValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, utc(2025, 6, 2, 10, 0))
	ticket, err := env.tickets.RaiseTicket(ctx, raiser, validRaise())
	if err != nil {
		t.Fatalf("raise: %v", err)
	}

	missing := validRaise()
	missing.Location = "  "
	missing.PCAccountable = ""
	if _, err := env.tickets.RaiseTicket(ctx, raiser, missing); !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error for missing fields, got %v", err)
	}

	badPriority := validRaise()
	badPriority.Priority = "CRITICAL"
	if _, err := env.tickets.RaiseTicket(ctx, raiser, badPriority); !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error for priority, got %v", err)
	}

	if _, err := env.tickets.RaiseTicket(ctx, domain.Actor{}, validRaise()); !apperrors.IsCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized without actor, got %v", err)
	}

	if _, err := env.tickets.PCPlanning(ctx, pcActor, ticket.ID, PCPlanningInput{PCStatus: "OK"}); !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error for planned date, got %v", err)
	}

	for _, rating := range []int{0, 6} {
		_, err := env.tickets.CloseTicket(ctx, raiser, ticket.ID, CloseInput{Status: "OK", Rating: rating})
		if !apperrors.IsCode(err, apperrors.CodeValidation) {
			t.Fatalf("rating %d: expected validation error, got %v", rating, err)
		}
	}
}

func TestListTicketsFilters(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, utc(2025, 6, 2, 10, 0))
	first, _ := env.tickets.RaiseTicket(ctx, raiser, validRaise())
	env.clock.Set(utc(2025, 6, 2, 11, 0))
	other := validRaise()
	other.PCAccountable = "pc-2"
	if _, err := env.tickets.RaiseTicket(ctx, raiser, other); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if _, err := env.tickets.PCPlanning(ctx, pcActor, first.ID, PCPlanningInput{PlannedDate: utc(2025, 6, 4, 9, 0), PCStatus: "OK"}); err != nil {
		t.Fatalf("plan: %v", err)
	}

	stage := domain.StagePCPlanning
	list, err := env.tickets.ListTickets(ctx, repository.TicketFilter{Stage: &stage})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != first.ID {
		t.Fatalf("stage filter returned %v", list)
	}

	pc := "pc-2"
	list, _ = env.tickets.ListTickets(ctx, repository.TicketFilter{PCAccountable: &pc})
	if len(list) != 1 || list[0].PCAccountable != "pc-2" {
		t.Fatalf("pc filter returned %v", list)
	}

	all, _ := env.tickets.ListTickets(ctx, repository.TicketFilter{})
	if len(all) != 2 || all[0].TicketNo != "HT-20250602-0002" {
		t.Fatalf("expected newest first, got %v", all)
	}
}

func assertTime(t *testing.T, label string, got *time.Time, want time.Time) {
	t.Helper()
	if got == nil {
		t.Fatalf("%s: expected %s, got nil", label, want)
	}
	if !got.Equal(want) {
		t.Fatalf("%s: expected %s, got %s", label, want, got.UTC())
	}
}

func assertDuration(t *testing.T, label string, got *time.Duration, want time.Duration) {
	t.Helper()
	if got == nil {
		t.Fatalf("%s: expected %s, got nil", label, want)
	}
	if *got != want {
		t.Fatalf("%s: expected %s, got %s", label, want, *got)
	}
}
