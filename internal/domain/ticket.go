package domain

import (
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for help tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInPlanning TicketStatus = "IN_PLANNING"
	TicketStatusSolved     TicketStatus = "SOLVED"
	TicketStatusConfirmed  TicketStatus = "CONFIRMED"
	TicketStatusClosed     TicketStatus = "CLOSED"
	TicketStatusReraised   TicketStatus = "RERAISED"
)

// TicketPriority enumerates urgency levels chosen by the raiser.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Workflow stages.
const (
	StageRaise        = 1
	StagePCPlanning   = 2
	StageSolve        = 3
	StageConfirmation = 4
	StageClosing      = 5
)

// Ticket is the help-ticket aggregate. Stage fields are append-only across re-raise cycles.
type Ticket struct {
	ID               string         `json:"id"`
	TicketNo         string         `json:"ticket_no"`
	Location         string         `json:"location"`
	IssueDescription string         `json:"issue_description"`
	DesiredDate      *time.Time     `json:"desired_date,omitempty"`
	Priority         TicketPriority `json:"priority"`
	ImageURL         *string        `json:"image_url,omitempty"`

	RaisedBy      string `json:"raised_by"`
	PCAccountable string `json:"pc_accountable"`
	ProblemSolver string `json:"problem_solver"`

	CurrentStage int          `json:"current_stage"`
	Status       TicketStatus `json:"status"`

	// Stage 2: PC planning.
	PCPlannedDate    *time.Time     `json:"pc_planned_date,omitempty"`
	PCActualDate     *time.Time     `json:"pc_actual_date,omitempty"`
	PCStatus         *string        `json:"pc_status,omitempty"`
	PCRemark         *string        `json:"pc_remark,omitempty"`
	PCTimeDifference *time.Duration `json:"pc_time_difference,omitempty"`

	// Stage 3: solving.
	SolverPlannedDate    *time.Time     `json:"solver_planned_date,omitempty"`
	SolverActualDate     *time.Time     `json:"solver_actual_date,omitempty"`
	SolverRemark         *string        `json:"solver_remark,omitempty"`
	ProofURL             *string        `json:"proof_url,omitempty"`
	SolverTimeDifference *time.Duration `json:"solver_time_difference,omitempty"`
	ReviseCount          int            `json:"revise_count"`

	// Stage 4: PC confirmation.
	PCPlannedStage4        *time.Time     `json:"pc_planned_stage4,omitempty"`
	PCActualStage4         *time.Time     `json:"pc_actual_stage4,omitempty"`
	PCStatusStage4         *string        `json:"pc_status_stage4,omitempty"`
	PCRemarkStage4         *string        `json:"pc_remark_stage4,omitempty"`
	PCTimeDifferenceStage4 *time.Duration `json:"pc_time_difference_stage4,omitempty"`

	// Stage 5: closing.
	ClosingPlanned        *time.Time     `json:"closing_planned,omitempty"`
	ClosingActual         *time.Time     `json:"closing_actual,omitempty"`
	ClosingStatus         *string        `json:"closing_status,omitempty"`
	ClosingRemark         *string        `json:"closing_remark,omitempty"`
	ClosingRating         *int           `json:"closing_rating,omitempty"`
	ClosingTimeDifference *time.Duration `json:"closing_time_difference,omitempty"`
	ReraiseDate           *time.Time     `json:"reraise_date,omitempty"`
	ReraiseRemark         *string        `json:"reraise_remark,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so snapshots do not alias mutable pointers.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.DesiredDate = cloneTime(t.DesiredDate)
	c.ImageURL = cloneString(t.ImageURL)
	c.PCPlannedDate = cloneTime(t.PCPlannedDate)
	c.PCActualDate = cloneTime(t.PCActualDate)
	c.PCStatus = cloneString(t.PCStatus)
	c.PCRemark = cloneString(t.PCRemark)
	c.PCTimeDifference = cloneDuration(t.PCTimeDifference)
	c.SolverPlannedDate = cloneTime(t.SolverPlannedDate)
	c.SolverActualDate = cloneTime(t.SolverActualDate)
	c.SolverRemark = cloneString(t.SolverRemark)
	c.ProofURL = cloneString(t.ProofURL)
	c.SolverTimeDifference = cloneDuration(t.SolverTimeDifference)
	c.PCPlannedStage4 = cloneTime(t.PCPlannedStage4)
	c.PCActualStage4 = cloneTime(t.PCActualStage4)
	c.PCStatusStage4 = cloneString(t.PCStatusStage4)
	c.PCRemarkStage4 = cloneString(t.PCRemarkStage4)
	c.PCTimeDifferenceStage4 = cloneDuration(t.PCTimeDifferenceStage4)
	c.ClosingPlanned = cloneTime(t.ClosingPlanned)
	c.ClosingActual = cloneTime(t.ClosingActual)
	c.ClosingStatus = cloneString(t.ClosingStatus)
	c.ClosingRemark = cloneString(t.ClosingRemark)
	c.ClosingTimeDifference = cloneDuration(t.ClosingTimeDifference)
	c.ReraiseDate = cloneTime(t.ReraiseDate)
	c.ReraiseRemark = cloneString(t.ReraiseRemark)
	if t.ClosingRating != nil {
		r := *t.ClosingRating
		c.ClosingRating = &r
	}
	return &c
}

// TicketNumber formats HT-YYYYMMDD-NNNN for the given local day and daily sequence.
func TicketNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s%04d", TicketNumberPrefix(day), seq)
}

// TicketNumberPrefix returns the HT-YYYYMMDD- prefix shared by a day's tickets.
func TicketNumberPrefix(day time.Time) string {
	return "HT-" + day.Format("20060102") + "-"
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneDuration(d *time.Duration) *time.Duration {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
