package events

import (
	"time"

	"github.com/spec-kit/helpticket-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketRaised       EventType = "ticket_raised"
	EventTicketTransitioned EventType = "ticket_transitioned"
	EventCalendarUpdated    EventType = "calendar_updated"
)

// Actor identifies the employee behind an event.
type Actor struct {
	EmployeeID string              `json:"employee_id"`
	Role       domain.EmployeeRole `json:"role,omitempty"`
}

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id,omitempty"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketRaisedPayload payload.
type TicketRaisedPayload struct {
	TicketNo      string                `json:"ticket_no"`
	Priority      domain.TicketPriority `json:"priority"`
	PCAccountable string                `json:"pc_accountable"`
	ProblemSolver string                `json:"problem_solver"`
	PCPlannedDate *time.Time            `json:"pc_planned_date,omitempty"`
}

// TicketTransitionedPayload payload.
type TicketTransitionedPayload struct {
	TicketNo  string                  `json:"ticket_no"`
	Action    domain.TicketActionType `json:"action"`
	FromStage int                     `json:"from_stage"`
	ToStage   int                     `json:"to_stage"`
	OldStatus domain.TicketStatus     `json:"old_status"`
	NewStatus domain.TicketStatus     `json:"new_status"`
	Remarks   string                  `json:"remarks,omitempty"`
}

// CalendarUpdatedPayload payload.
type CalendarUpdatedPayload struct {
	Change    string `json:"change"`
	HolidayID string `json:"holiday_id,omitempty"`
}
