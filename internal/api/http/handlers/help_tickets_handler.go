package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpticket-service/internal/api/dto"
	"github.com/spec-kit/helpticket-service/internal/auth"
	"github.com/spec-kit/helpticket-service/internal/domain"
	"github.com/spec-kit/helpticket-service/internal/repository"
	"github.com/spec-kit/helpticket-service/internal/service"
	"github.com/spec-kit/helpticket-service/internal/storage"
	apperrors "github.com/spec-kit/helpticket-service/pkg/util/errorutil"
)

var errUploadsDisabled = errors.New("evidence storage not configured")

// EvidenceUploader stores uploaded evidence and returns its URL.
type EvidenceUploader interface {
	Upload(ctx context.Context, kind, filename, contentType string, reader io.Reader, size int64) (string, error)
}

// HelpTicketsHandler exposes the help-ticket workflow.
type HelpTicketsHandler struct {
	tickets   *service.TicketService
	calendars service.CalendarProvider
	evidence  EvidenceUploader
	logger    *zap.Logger
}

// NewHelpTicketsHandler constructs handler. evidence may be nil when object storage is disabled.
func NewHelpTicketsHandler(tickets *service.TicketService, calendars service.CalendarProvider, evidence EvidenceUploader, logger *zap.Logger) *HelpTicketsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HelpTicketsHandler{tickets: tickets, calendars: calendars, evidence: evidence, logger: logger}
}

// RaiseTicket POST /api/help-tickets.
func (h *HelpTicketsHandler) RaiseTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.RaiseTicketRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()
	desired, err := parseDate("desired_date", req.DesiredDate, h.location(ctx))
	if err != nil {
		return err
	}

	input := service.RaiseTicketInput{
		Location:         req.Location,
		IssueDescription: req.IssueDescription,
		DesiredDate:      &desired,
		Priority:         domain.TicketPriority(req.Priority),
		PCAccountable:    req.PCAccountable,
		ProblemSolver:    req.ProblemSolver,
	}
	if file := formFile(c, "image"); file != nil {
		url, err := h.upload(ctx, storage.KindIssueImage, file)
		if err != nil {
			h.logger.Warn("issue image upload failed; raising without attachment",
				zap.String("filename", file.Filename), zap.Error(err))
		} else {
			input.ImageURL = &url
		}
	}

	ticket, err := h.tickets.RaiseTicket(ctx, actor, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /api/help-tickets.
func (h *HelpTicketsHandler) ListTickets(c *fiber.Ctx) error {
	if _, err := requireActor(c); err != nil {
		return err
	}
	filter, err := parseTicketFilter(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /api/help-tickets/:id.
func (h *HelpTicketsHandler) GetTicket(c *fiber.Ctx) error {
	if _, err := requireActor(c); err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListHistory GET /api/help-tickets/:id/history.
func (h *HelpTicketsHandler) ListHistory(c *fiber.Ctx) error {
	if _, err := requireActor(c); err != nil {
		return err
	}
	entries, err := h.tickets.ListHistory(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": entries})
}

// PCPlanning POST /api/help-tickets/:id/pc-planning.
func (h *HelpTicketsHandler) PCPlanning(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.PCPlanningRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()
	planned, err := parseDate("planned_date", req.PlannedDate, h.location(ctx))
	if err != nil {
		return err
	}
	ticket, err := h.tickets.PCPlanning(ctx, actor, c.Params("id"), service.PCPlanningInput{
		PlannedDate:   planned,
		ProblemSolver: req.ProblemSolver,
		PCStatus:      req.PCStatus,
		Remark:        req.Remark,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// SolveTicket POST /api/help-tickets/:id/solve.
func (h *HelpTicketsHandler) SolveTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.SolveRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()
	input := service.SolveInput{Remark: req.Remark}
	if file := formFile(c, "proof"); file != nil {
		url, err := h.upload(ctx, storage.KindSolveProof, file)
		if err != nil {
			h.logger.Error("proof upload failed", zap.String("ticket_id", c.Params("id")), zap.Error(err))
			return apperrors.NewInternalError(err)
		}
		input.ProofURL = &url
	}
	ticket, err := h.tickets.SolveTicket(ctx, actor, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ReviseDate POST /api/help-tickets/:id/revise-date.
func (h *HelpTicketsHandler) ReviseDate(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.ReviseDateRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()
	planned, err := parseDate("new_planned_date", req.NewPlannedDate, h.location(ctx))
	if err != nil {
		return err
	}
	ticket, err := h.tickets.ReviseTicketDate(ctx, actor, c.Params("id"), service.ReviseDateInput{
		NewPlannedDate: planned,
		Remark:         req.Remark,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// PCConfirmation POST /api/help-tickets/:id/pc-confirmation.
func (h *HelpTicketsHandler) PCConfirmation(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.PCConfirmationRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.PCConfirmation(c.UserContext(), actor, c.Params("id"), service.PCConfirmationInput{
		Status: req.Status,
		Remark: req.Remark,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// CloseTicket POST /api/help-tickets/:id/close.
func (h *HelpTicketsHandler) CloseTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CloseTicketRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.CloseTicket(c.UserContext(), actor, c.Params("id"), service.CloseInput{
		Status: req.Status,
		Rating: req.Rating,
		Remark: req.Remark,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ReraiseTicket POST /api/help-tickets/:id/reraise.
func (h *HelpTicketsHandler) ReraiseTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.ReraiseRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.ReraiseTicket(c.UserContext(), actor, c.Params("id"), service.ReraiseInput{Remark: req.Remark})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

func (h *HelpTicketsHandler) upload(ctx context.Context, kind string, file *multipart.FileHeader) (string, error) {
	if h.evidence == nil {
		return "", errUploadsDisabled
	}
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()
	return h.evidence.Upload(ctx, kind, file.Filename, file.Header.Get("Content-Type"), src, file.Size)
}

// location resolves the calendar zone used for dates sent without an offset.
func (h *HelpTicketsHandler) location(ctx context.Context) *time.Location {
	if h.calendars == nil {
		return time.UTC
	}
	cfg, _, err := h.calendars.Calendar(ctx)
	if err != nil {
		return time.UTC
	}
	return cfg.Location()
}

func requireActor(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return actor, nil
}

// formFile returns the named multipart file, or nil for JSON bodies and absent files.
func formFile(c *fiber.Ctx, name string) *multipart.FileHeader {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return nil
	}
	file, err := c.FormFile(name)
	if err != nil || file == nil || file.Size == 0 {
		return nil
	}
	return file
}

func parseTicketFilter(c *fiber.Ctx) (repository.TicketFilter, error) {
	filter := repository.TicketFilter{}
	if stageStr := c.Query("stage"); stageStr != "" {
		stage, err := strconv.Atoi(stageStr)
		if err != nil || stage < domain.StageRaise || stage > domain.StageClosing {
			return filter, apperrors.NewValidationError("stage must be between 1 and 5", map[string]any{"stage": stageStr})
		}
		filter.Stage = &stage
	}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.ToUpper(strings.TrimSpace(part))))
		}
	}
	filter.RaisedBy = queryString(c, "raised_by")
	filter.PCAccountable = queryString(c, "pc_accountable")
	filter.ProblemSolver = queryString(c, "problem_solver")
	filter.TicketNo = queryString(c, "ticket_no")
	var err error
	if filter.CreatedFrom, err = queryDate(c, "created_from"); err != nil {
		return filter, err
	}
	if filter.CreatedTo, err = queryDate(c, "created_to"); err != nil {
		return filter, err
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, nil
}

func queryString(c *fiber.Ctx, key string) *string {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return nil
	}
	return &val
}

func queryDate(c *fiber.Ctx, key string) (*time.Time, error) {
	val := c.Query(key)
	if val == "" {
		return nil, nil
	}
	t, err := parseDate(key, val, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketResponse(t *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:               t.ID,
		TicketNo:         t.TicketNo,
		Location:         t.Location,
		IssueDescription: t.IssueDescription,
		DesiredDate:      t.DesiredDate,
		Priority:         t.Priority,
		ImageURL:         t.ImageURL,
		RaisedBy:         t.RaisedBy,
		PCAccountable:    t.PCAccountable,
		ProblemSolver:    t.ProblemSolver,
		CurrentStage:     t.CurrentStage,
		Status:           t.Status,

		PCPlannedDate: t.PCPlannedDate,
		PCActualDate:  t.PCActualDate,
		PCStatus:      t.PCStatus,
		PCRemark:      t.PCRemark,
		PCTimeDiffHrs: hours(t.PCTimeDifference),

		SolverPlannedDate: t.SolverPlannedDate,
		SolverActualDate:  t.SolverActualDate,
		SolverRemark:      t.SolverRemark,
		ProofURL:          t.ProofURL,
		SolverTimeDiffHrs: hours(t.SolverTimeDifference),
		ReviseCount:       t.ReviseCount,

		PCPlannedStage4:     t.PCPlannedStage4,
		PCActualStage4:      t.PCActualStage4,
		PCStatusStage4:      t.PCStatusStage4,
		PCRemarkStage4:      t.PCRemarkStage4,
		PCTimeDiffStage4Hrs: hours(t.PCTimeDifferenceStage4),

		ClosingPlanned:     t.ClosingPlanned,
		ClosingActual:      t.ClosingActual,
		ClosingStatus:      t.ClosingStatus,
		ClosingRemark:      t.ClosingRemark,
		ClosingRating:      t.ClosingRating,
		ClosingTimeDiffHrs: hours(t.ClosingTimeDifference),
		ReraiseDate:        t.ReraiseDate,
		ReraiseRemark:      t.ReraiseRemark,

		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func hours(d *time.Duration) *float64 {
	if d == nil {
		return nil
	}
	h := d.Hours()
	return &h
}
