package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpticket-service/internal/api/dto"
	"github.com/spec-kit/helpticket-service/internal/domain"
	"github.com/spec-kit/helpticket-service/internal/service"
	apperrors "github.com/spec-kit/helpticket-service/pkg/util/errorutil"
)

// ConfigHandler manages the office calendar and holidays.
type ConfigHandler struct {
	configs *service.TicketConfigService
}

// NewConfigHandler constructs handler.
func NewConfigHandler(configs *service.TicketConfigService) *ConfigHandler {
	return &ConfigHandler{configs: configs}
}

// GetConfig GET /api/help-tickets/config.
func (h *ConfigHandler) GetConfig(c *fiber.Ctx) error {
	cfg, holidays, err := h.configs.GetConfig(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ConfigResponse{
		Config:   configResponse(cfg),
		Holidays: holidayResponses(holidays),
	}})
}

// UpdateConfig PATCH /api/help-tickets/config.
func (h *ConfigHandler) UpdateConfig(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.ConfigPatchRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	patch := domain.CalendarConfigPatch{
		WorkingDays:    req.WorkingDays,
		Stage2TATHours: req.Stage2TATHours,
		Stage4TATHours: req.Stage4TATHours,
		Stage5TATHours: req.Stage5TATHours,
		TimeZone:       req.TimeZone,
	}
	if patch.OfficeStart, err = parseTimeOfDay("office_start", req.OfficeStart); err != nil {
		return err
	}
	if patch.OfficeEnd, err = parseTimeOfDay("office_end", req.OfficeEnd); err != nil {
		return err
	}

	cfg, err := h.configs.UpdateConfig(c.UserContext(), actor, patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": configResponse(cfg)})
}

// ListHolidays GET /api/help-tickets/holidays.
func (h *ConfigHandler) ListHolidays(c *fiber.Ctx) error {
	holidays, err := h.configs.ListHolidays(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": holidayResponses(holidays)})
}

// AddHoliday POST /api/help-tickets/holidays.
func (h *ConfigHandler) AddHoliday(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.HolidayRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	date, err := parseDate("holiday_date", req.Date, time.UTC)
	if err != nil {
		return err
	}
	holiday, err := h.configs.AddHoliday(c.UserContext(), actor, date, req.Description)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": holidayResponse(*holiday)})
}

// RemoveHoliday DELETE /api/help-tickets/holidays/:id.
func (h *ConfigHandler) RemoveHoliday(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	if err := h.configs.RemoveHoliday(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func parseTimeOfDay(field string, value *string) (*domain.TimeOfDay, error) {
	if value == nil {
		return nil, nil
	}
	t, err := domain.ParseTimeOfDay(*value)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error(), map[string]any{"field": field})
	}
	return &t, nil
}

func configResponse(cfg *domain.CalendarConfig) dto.CalendarConfigResponse {
	return dto.CalendarConfigResponse{
		OfficeStart:    cfg.OfficeStart.String(),
		OfficeEnd:      cfg.OfficeEnd.String(),
		WorkingDays:    cfg.WorkingDays,
		Stage2TATHours: cfg.Stage2TATHours,
		Stage4TATHours: cfg.Stage4TATHours,
		Stage5TATHours: cfg.Stage5TATHours,
		TimeZone:       cfg.TimeZone,
		UpdatedAt:      cfg.UpdatedAt,
	}
}

func holidayResponse(h domain.Holiday) dto.HolidayResponse {
	return dto.HolidayResponse{
		ID:          h.ID,
		Date:        h.DateKey(),
		Description: h.Description,
		CreatedAt:   h.CreatedAt,
	}
}

func holidayResponses(holidays []domain.Holiday) []dto.HolidayResponse {
	out := make([]dto.HolidayResponse, 0, len(holidays))
	for _, h := range holidays {
		out = append(out, holidayResponse(h))
	}
	return out
}
