package dto

import (
	"time"

	"github.com/spec-kit/helpticket-service/internal/domain"
)

// Dates in request bodies accept RFC3339, "2006-01-02T15:04" or "2006-01-02".

// RaiseTicketRequest payload. Sent as JSON or multipart with an optional "image" file.
type RaiseTicketRequest struct {
	Location         string `json:"location" form:"location" validate:"required"`
	IssueDescription string `json:"issue_description" form:"issue_description" validate:"required"`
	DesiredDate      string `json:"desired_date" form:"desired_date" validate:"required"`
	Priority         string `json:"priority" form:"priority" validate:"required"`
	PCAccountable    string `json:"pc_accountable" form:"pc_accountable" validate:"required"`
	ProblemSolver    string `json:"problem_solver" form:"problem_solver" validate:"required"`
}

// PCPlanningRequest payload.
type PCPlanningRequest struct {
	PlannedDate   string `json:"planned_date" validate:"required"`
	ProblemSolver string `json:"problem_solver"`
	PCStatus      string `json:"pc_status" validate:"required"`
	Remark        string `json:"remark"`
}

// SolveRequest payload. Sent as JSON or multipart with an optional "proof" file.
type SolveRequest struct {
	Remark string `json:"solver_remark" form:"solver_remark" validate:"required"`
}

// ReviseDateRequest payload.
type ReviseDateRequest struct {
	NewPlannedDate string `json:"new_planned_date" validate:"required"`
	Remark         string `json:"remark"`
}

// PCConfirmationRequest payload.
type PCConfirmationRequest struct {
	Status string `json:"pc_status_stage4" validate:"required"`
	Remark string `json:"remark"`
}

// CloseTicketRequest payload.
type CloseTicketRequest struct {
	Status string `json:"closing_status" validate:"required"`
	Rating int    `json:"closing_rating" validate:"required,min=1,max=5"`
	Remark string `json:"remark"`
}

// ReraiseRequest payload.
type ReraiseRequest struct {
	Remark string `json:"remark" validate:"required"`
}

// ConfigPatchRequest updates a subset of the calendar configuration.
type ConfigPatchRequest struct {
	OfficeStart    *string  `json:"office_start"`
	OfficeEnd      *string  `json:"office_end"`
	WorkingDays    []int    `json:"working_days" validate:"omitempty,dive,min=1,max=7"`
	Stage2TATHours *float64 `json:"stage2_tat_hours" validate:"omitempty,gte=0"`
	Stage4TATHours *float64 `json:"stage4_tat_hours" validate:"omitempty,gte=0"`
	Stage5TATHours *float64 `json:"stage5_tat_hours" validate:"omitempty,gte=0"`
	TimeZone       *string  `json:"time_zone"`
}

// HolidayRequest registers a holiday.
type HolidayRequest struct {
	Date        string `json:"holiday_date" validate:"required"`
	Description string `json:"description"`
}

// TicketResponse renders a ticket with time differences in hours.
type TicketResponse struct {
	ID               string                `json:"id"`
	TicketNo         string                `json:"ticket_no"`
	Location         string                `json:"location"`
	IssueDescription string                `json:"issue_description"`
	DesiredDate      *time.Time            `json:"desired_date,omitempty"`
	Priority         domain.TicketPriority `json:"priority"`
	ImageURL         *string               `json:"image_url,omitempty"`
	RaisedBy         string                `json:"raised_by"`
	PCAccountable    string                `json:"pc_accountable"`
	ProblemSolver    string                `json:"problem_solver"`
	CurrentStage     int                   `json:"current_stage"`
	Status           domain.TicketStatus   `json:"status"`

	PCPlannedDate *time.Time `json:"pc_planned_date,omitempty"`
	PCActualDate  *time.Time `json:"pc_actual_date,omitempty"`
	PCStatus      *string    `json:"pc_status,omitempty"`
	PCRemark      *string    `json:"pc_remark,omitempty"`
	PCTimeDiffHrs *float64   `json:"pc_time_difference_hours,omitempty"`

	SolverPlannedDate *time.Time `json:"solver_planned_date,omitempty"`
	SolverActualDate  *time.Time `json:"solver_actual_date,omitempty"`
	SolverRemark      *string    `json:"solver_remark,omitempty"`
	ProofURL          *string    `json:"proof_url,omitempty"`
	SolverTimeDiffHrs *float64   `json:"solver_time_difference_hours,omitempty"`
	ReviseCount       int        `json:"revise_count"`

	PCPlannedStage4     *time.Time `json:"pc_planned_stage4,omitempty"`
	PCActualStage4      *time.Time `json:"pc_actual_stage4,omitempty"`
	PCStatusStage4      *string    `json:"pc_status_stage4,omitempty"`
	PCRemarkStage4      *string    `json:"pc_remark_stage4,omitempty"`
	PCTimeDiffStage4Hrs *float64   `json:"pc_time_difference_stage4_hours,omitempty"`

	ClosingPlanned     *time.Time `json:"closing_planned,omitempty"`
	ClosingActual      *time.Time `json:"closing_actual,omitempty"`
	ClosingStatus      *string    `json:"closing_status,omitempty"`
	ClosingRemark      *string    `json:"closing_remark,omitempty"`
	ClosingRating      *int       `json:"closing_rating,omitempty"`
	ClosingTimeDiffHrs *float64   `json:"closing_time_difference_hours,omitempty"`
	ReraiseDate        *time.Time `json:"reraise_date,omitempty"`
	ReraiseRemark      *string    `json:"reraise_remark,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CalendarConfigResponse renders the office calendar.
type CalendarConfigResponse struct {
	OfficeStart    string    `json:"office_start"`
	OfficeEnd      string    `json:"office_end"`
	WorkingDays    []int     `json:"working_days"`
	Stage2TATHours float64   `json:"stage2_tat_hours"`
	Stage4TATHours float64   `json:"stage4_tat_hours"`
	Stage5TATHours float64   `json:"stage5_tat_hours"`
	TimeZone       string    `json:"time_zone"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HolidayResponse renders a holiday.
type HolidayResponse struct {
	ID          string    `json:"id"`
	Date        string    `json:"holiday_date"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConfigResponse bundles config and holidays.
type ConfigResponse struct {
	Config   CalendarConfigResponse `json:"config"`
	Holidays []HolidayResponse      `json:"holidays"`
}
