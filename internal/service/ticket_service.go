package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpticket-service/internal/businesshours"
	"github.com/spec-kit/helpticket-service/internal/domain"
	"github.com/spec-kit/helpticket-service/internal/events"
	"github.com/spec-kit/helpticket-service/internal/observability"
	"github.com/spec-kit/helpticket-service/internal/repository"
	apperrors "github.com/spec-kit/helpticket-service/pkg/util/errorutil"
)

// TicketService runs the five-stage help-ticket workflow. Every action reads
// the ticket under a row lock, mutates it and appends one history entry in a
// single transaction.
type TicketService struct {
	store      repository.Transactor
	calendars  CalendarProvider
	history    HistoryRecorder
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for TicketService.
type TicketDependencies struct {
	Store      repository.Transactor
	Calendars  CalendarProvider
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TicketService{
		store:      deps.Store,
		calendars:  deps.Calendars,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        clock,
	}
}

// RaiseTicketInput describes a new ticket.
type RaiseTicketInput struct {
	Location         string
	IssueDescription string
	DesiredDate      *time.Time
	Priority         domain.TicketPriority
	PCAccountable    string
	ProblemSolver    string
	ImageURL         *string
}

// PCPlanningInput carries the stage 2 decision of the PC accountable.
type PCPlanningInput struct {
	PlannedDate   time.Time
	ProblemSolver string
	PCStatus      string
	Remark        string
}

// SolveInput carries the solver's report.
type SolveInput struct {
	Remark   string
	ProofURL *string
}

// ReviseDateInput moves the solver deadline.
type ReviseDateInput struct {
	NewPlannedDate time.Time
	Remark         string
}

// PCConfirmationInput carries the stage 4 verdict.
type PCConfirmationInput struct {
	Status string
	Remark string
}

// CloseInput carries the raiser's closing verdict.
type CloseInput struct {
	Status string
	Rating int
	Remark string
}

// ReraiseInput reopens a closed ticket.
type ReraiseInput struct {
	Remark string
}

// RaiseTicket creates a ticket at stage 1 with a PC planning deadline.
func (s *TicketService) RaiseTicket(ctx context.Context, actor domain.Actor, input RaiseTicketInput) (*domain.Ticket, error) {
	if err := validateRaise(actor, &input); err != nil {
		return nil, err
	}
	cfg, holidays, err := s.calendars.Calendar(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	day := now.In(cfg.Location())
	prefix := domain.TicketNumberPrefix(day)
	planned := businesshours.AddBusinessHours(now, cfg.TATHours(domain.StagePCPlanning), cfg, holidays)

	var created *domain.Ticket
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		seq, err := tx.Tickets().NextDailySequence(ctx, prefix)
		if err != nil {
			return apperrors.NewTransactionFailure(fmt.Errorf("ticket sequence: %w", err))
		}
		ticket := &domain.Ticket{
			TicketNo:         domain.TicketNumber(day, seq),
			Location:         input.Location,
			IssueDescription: input.IssueDescription,
			DesiredDate:      input.DesiredDate,
			Priority:         input.Priority,
			ImageURL:         input.ImageURL,
			RaisedBy:         actor.EmployeeID,
			PCAccountable:    input.PCAccountable,
			ProblemSolver:    input.ProblemSolver,
			CurrentStage:     domain.StageRaise,
			Status:           domain.TicketStatusOpen,
			PCPlannedDate:    &planned,
			CreatedAt:        now,
		}
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return apperrors.NewTransactionFailure(fmt.Errorf("create ticket: %w", err))
		}
		if _, err := s.history.Record(ctx, tx, HistoryRecord{
			TicketID: ticket.ID,
			TicketNo: ticket.TicketNo,
			Stage:    ticket.CurrentStage,
			New:      ticket,
			Action:   domain.ActionTicketRaised,
			ActorID:  actor.EmployeeID,
			Remarks:  "Ticket raised",
		}); err != nil {
			return apperrors.NewTransactionFailure(fmt.Errorf("record history: %w", err))
		}
		created = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(string(domain.ActionTicketRaised), false)
	publish(ctx, s.dispatcher, s.now, events.Event{
		Type:     events.EventTicketRaised,
		TicketID: created.ID,
		Actor:    eventActor(actor),
		Payload: events.TicketRaisedPayload{
			TicketNo:      created.TicketNo,
			Priority:      created.Priority,
			PCAccountable: created.PCAccountable,
			ProblemSolver: created.ProblemSolver,
			PCPlannedDate: created.PCPlannedDate,
		},
	})
	s.logger.Info("ticket raised",
		zap.String("ticket_no", created.TicketNo),
		zap.String("raised_by", created.RaisedBy),
		zap.Time("pc_planned_date", planned))
	return created, nil
}

// PCPlanning completes stage 2. Only the ticket's PC accountable may call it.
func (s *TicketService) PCPlanning(ctx context.Context, actor domain.Actor, ticketID string, input PCPlanningInput) (*domain.Ticket, error) {
	if input.PlannedDate.IsZero() {
		return nil, requiredField("planned_date")
	}
	input.PCStatus = strings.TrimSpace(input.PCStatus)
	if input.PCStatus == "" {
		return nil, requiredField("pc_status")
	}
	solver := strings.TrimSpace(input.ProblemSolver)

	return s.transition(ctx, actor, ticketID, transition{
		action: domain.ActionPCPlanningComplete,
		from:   []int{domain.StageRaise},
		authorize: func(t *domain.Ticket) error {
			if t.PCAccountable != actor.EmployeeID {
				return apperrors.NewForbidden("only the PC accountable may plan this ticket")
			}
			return nil
		},
		deadline: func(t *domain.Ticket) *time.Time { return t.PCPlannedDate },
		remarks:  input.Remark,
		apply: func(t *domain.Ticket, now time.Time) {
			planned := input.PlannedDate
			t.PCPlannedDate = &planned
			seed := planned
			t.SolverPlannedDate = &seed
			if solver != "" {
				t.ProblemSolver = solver
			}
			t.PCStatus = stringPtr(input.PCStatus)
			t.PCRemark = optionalString(input.Remark)
			t.PCActualDate = timePtr(now)
			t.PCTimeDifference = elapsed(&t.CreatedAt, now)
			t.CurrentStage = domain.StagePCPlanning
			t.Status = domain.TicketStatusInPlanning
		},
	})
}

// SolveTicket completes stage 3 and sets the PC confirmation deadline.
func (s *TicketService) SolveTicket(ctx context.Context, actor domain.Actor, ticketID string, input SolveInput) (*domain.Ticket, error) {
	input.Remark = strings.TrimSpace(input.Remark)
	if input.Remark == "" {
		return nil, requiredField("solver_remark")
	}

	return s.transition(ctx, actor, ticketID, transition{
		action:       domain.ActionTicketSolved,
		from:         []int{domain.StagePCPlanning},
		needCalendar: true,
		deadline:     func(t *domain.Ticket) *time.Time { return t.SolverPlannedDate },
		remarks:      input.Remark,
		applyWithCalendar: func(t *domain.Ticket, now time.Time, cfg domain.CalendarConfig, holidays domain.HolidaySet) {
			t.SolverRemark = stringPtr(input.Remark)
			if input.ProofURL != nil {
				t.ProofURL = stringPtr(*input.ProofURL)
			}
			t.SolverActualDate = timePtr(now)
			t.SolverTimeDifference = elapsed(t.PCPlannedDate, now)
			planned := businesshours.AddBusinessHours(now, cfg.TATHours(domain.StageConfirmation), cfg, holidays)
			t.PCPlannedStage4 = &planned
			t.CurrentStage = domain.StageSolve
			t.Status = domain.TicketStatusSolved
		},
	})
}

// ReviseTicketDate moves the solver deadline without advancing the stage.
func (s *TicketService) ReviseTicketDate(ctx context.Context, actor domain.Actor, ticketID string, input ReviseDateInput) (*domain.Ticket, error) {
	if input.NewPlannedDate.IsZero() {
		return nil, requiredField("new_planned_date")
	}

	return s.transition(ctx, actor, ticketID, transition{
		action:  domain.ActionDateRevised,
		from:    []int{domain.StagePCPlanning, domain.StageSolve},
		remarks: input.Remark,
		apply: func(t *domain.Ticket, _ time.Time) {
			planned := input.NewPlannedDate
			t.SolverPlannedDate = &planned
			t.ReviseCount++
		},
	})
}

// PCConfirmation completes stage 4 and sets the closing deadline.
func (s *TicketService) PCConfirmation(ctx context.Context, actor domain.Actor, ticketID string, input PCConfirmationInput) (*domain.Ticket, error) {
	input.Status = strings.TrimSpace(input.Status)
	if input.Status == "" {
		return nil, requiredField("pc_status_stage4")
	}

	return s.transition(ctx, actor, ticketID, transition{
		action:       domain.ActionPCConfirmed,
		from:         []int{domain.StageSolve},
		needCalendar: true,
		deadline:     func(t *domain.Ticket) *time.Time { return t.PCPlannedStage4 },
		remarks:      input.Remark,
		applyWithCalendar: func(t *domain.Ticket, now time.Time, cfg domain.CalendarConfig, holidays domain.HolidaySet) {
			t.PCStatusStage4 = stringPtr(input.Status)
			t.PCRemarkStage4 = optionalString(input.Remark)
			t.PCActualStage4 = timePtr(now)
			t.PCTimeDifferenceStage4 = elapsed(t.SolverActualDate, now)
			planned := businesshours.AddBusinessHours(now, cfg.TATHours(domain.StageClosing), cfg, holidays)
			t.ClosingPlanned = &planned
			t.CurrentStage = domain.StageConfirmation
			t.Status = domain.TicketStatusConfirmed
		},
	})
}

// CloseTicket completes stage 5 with a satisfaction rating.
func (s *TicketService) CloseTicket(ctx context.Context, actor domain.Actor, ticketID string, input CloseInput) (*domain.Ticket, error) {
	input.Status = strings.TrimSpace(input.Status)
	if input.Status == "" {
		return nil, requiredField("closing_status")
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, apperrors.NewValidationError("closing_rating must be between 1 and 5",
			map[string]any{"field": "closing_rating", "value": input.Rating})
	}

	return s.transition(ctx, actor, ticketID, transition{
		action:   domain.ActionTicketClosed,
		from:     []int{domain.StageConfirmation},
		deadline: func(t *domain.Ticket) *time.Time { return t.ClosingPlanned },
		remarks:  input.Remark,
		apply: func(t *domain.Ticket, now time.Time) {
			rating := input.Rating
			t.ClosingStatus = stringPtr(input.Status)
			t.ClosingRating = &rating
			t.ClosingRemark = optionalString(input.Remark)
			t.ClosingActual = timePtr(now)
			t.ClosingTimeDifference = elapsed(t.PCActualStage4, now)
			t.CurrentStage = domain.StageClosing
			t.Status = domain.TicketStatusClosed
		},
	})
}

// ReraiseTicket sends a closed ticket back to stage 1. Earlier stage data stays on the ticket.
func (s *TicketService) ReraiseTicket(ctx context.Context, actor domain.Actor, ticketID string, input ReraiseInput) (*domain.Ticket, error) {
	input.Remark = strings.TrimSpace(input.Remark)
	if input.Remark == "" {
		return nil, requiredField("remark")
	}

	return s.transition(ctx, actor, ticketID, transition{
		action:  domain.ActionTicketReraised,
		from:    []int{domain.StageClosing},
		remarks: input.Remark,
		apply: func(t *domain.Ticket, now time.Time) {
			t.ReraiseDate = timePtr(now)
			t.ReraiseRemark = stringPtr(input.Remark)
			t.CurrentStage = domain.StageRaise
			t.Status = domain.TicketStatusReraised
		},
	})
}

// GetTicket loads one ticket.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, ticketNotFound(ticketID)
	}
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", map[string]any{"id": ticketID})
	}
	return ticket, nil
}

// ListTickets returns tickets matching filter, newest first.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.store.Tickets().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// ListHistory returns a ticket's audit trail in action order.
func (s *TicketService) ListHistory(ctx context.Context, ticketID string) ([]domain.TicketHistoryEntry, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.store.History().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.TicketHistoryEntry{}
	}
	return entries, nil
}

type transition struct {
	action       domain.TicketActionType
	from         []int
	authorize    func(t *domain.Ticket) error
	deadline     func(t *domain.Ticket) *time.Time
	remarks      string
	needCalendar bool

	apply             func(t *domain.Ticket, now time.Time)
	applyWithCalendar func(t *domain.Ticket, now time.Time, cfg domain.CalendarConfig, holidays domain.HolidaySet)
}

func (s *TicketService) transition(ctx context.Context, actor domain.Actor, ticketID string, tr transition) (*domain.Ticket, error) {
	if strings.TrimSpace(actor.EmployeeID) == "" {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, ticketNotFound(ticketID)
	}

	var (
		cfg      domain.CalendarConfig
		holidays domain.HolidaySet
	)
	if tr.needCalendar {
		var err error
		if cfg, holidays, err = s.calendars.Calendar(ctx); err != nil {
			return nil, err
		}
	}

	now := s.now()
	var before, after *domain.Ticket
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		current, err := tx.Tickets().GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			if isNoRows(err) {
				return ticketNotFound(ticketID)
			}
			return apperrors.NewTransactionFailure(fmt.Errorf("load ticket: %w", err))
		}
		if tr.authorize != nil {
			if err := tr.authorize(current); err != nil {
				return err
			}
		}
		if !stageIn(current.CurrentStage, tr.from) {
			return apperrors.NewInvalidTransition(string(tr.action), current.CurrentStage)
		}

		before = current.Clone()
		if tr.applyWithCalendar != nil {
			tr.applyWithCalendar(current, now, cfg, holidays)
		} else {
			tr.apply(current, now)
		}
		current.UpdatedAt = now

		if err := tx.Tickets().Update(ctx, current); err != nil {
			return apperrors.NewTransactionFailure(fmt.Errorf("update ticket: %w", err))
		}
		if _, err := s.history.Record(ctx, tx, HistoryRecord{
			TicketID: current.ID,
			TicketNo: current.TicketNo,
			Stage:    current.CurrentStage,
			Old:      before,
			New:      current,
			Action:   tr.action,
			ActorID:  actor.EmployeeID,
			Remarks:  tr.remarks,
		}); err != nil {
			return apperrors.NewTransactionFailure(fmt.Errorf("record history: %w", err))
		}
		after = current
		return nil
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeForbidden) {
			s.logger.Warn("workflow action rejected",
				zap.String("action", string(tr.action)),
				zap.String("ticket_id", ticketID),
				zap.String("actor_id", actor.EmployeeID))
		}
		return nil, err
	}

	late := false
	if tr.deadline != nil {
		if due := tr.deadline(before); due != nil && now.After(*due) {
			late = true
		}
	}
	s.metrics.RecordTransition(string(tr.action), late)
	publish(ctx, s.dispatcher, s.now, events.Event{
		Type:     events.EventTicketTransitioned,
		TicketID: after.ID,
		Actor:    eventActor(actor),
		Payload: events.TicketTransitionedPayload{
			TicketNo:  after.TicketNo,
			Action:    tr.action,
			FromStage: before.CurrentStage,
			ToStage:   after.CurrentStage,
			OldStatus: before.Status,
			NewStatus: after.Status,
			Remarks:   strings.TrimSpace(tr.remarks),
		},
	})
	s.logger.Info("ticket transitioned",
		zap.String("ticket_no", after.TicketNo),
		zap.String("action", string(tr.action)),
		zap.Int("stage", after.CurrentStage),
		zap.String("actor_id", actor.EmployeeID),
		zap.Bool("late", late))
	return after, nil
}

func validateRaise(actor domain.Actor, input *RaiseTicketInput) error {
	if strings.TrimSpace(actor.EmployeeID) == "" {
		return apperrors.NewUnauthorized("actor required")
	}
	input.Location = strings.TrimSpace(input.Location)
	input.IssueDescription = strings.TrimSpace(input.IssueDescription)
	input.PCAccountable = strings.TrimSpace(input.PCAccountable)
	input.ProblemSolver = strings.TrimSpace(input.ProblemSolver)
	input.Priority = domain.TicketPriority(strings.ToUpper(strings.TrimSpace(string(input.Priority))))

	var missing []string
	if input.Location == "" {
		missing = append(missing, "location")
	}
	if input.IssueDescription == "" {
		missing = append(missing, "issue_description")
	}
	if input.DesiredDate == nil || input.DesiredDate.IsZero() {
		missing = append(missing, "desired_date")
	}
	if input.PCAccountable == "" {
		missing = append(missing, "pc_accountable")
	}
	if input.ProblemSolver == "" {
		missing = append(missing, "problem_solver")
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("missing required fields", map[string]any{"fields": missing})
	}
	if !input.Priority.Valid() {
		return apperrors.NewValidationError("invalid priority", map[string]any{"field": "priority", "value": input.Priority})
	}
	return nil
}

func requiredField(name string) error {
	return apperrors.NewValidationError(name+" is required", map[string]any{"field": name})
}

func ticketNotFound(id string) error {
	return apperrors.NewNotFound("ticket", map[string]any{"id": id})
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func stageIn(stage int, allowed []int) bool {
	for _, s := range allowed {
		if s == stage {
			return true
		}
	}
	return false
}

func elapsed(since *time.Time, now time.Time) *time.Duration {
	if since == nil || since.IsZero() {
		return nil
	}
	d := now.Sub(*since)
	return &d
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func stringPtr(s string) *string {
	return &s
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func eventActor(actor domain.Actor) events.Actor {
	return events.Actor{EmployeeID: actor.EmployeeID, Role: actor.Role}
}
