package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpticket-service/internal/cache"
	"github.com/spec-kit/helpticket-service/internal/config"
	"github.com/spec-kit/helpticket-service/internal/domain"
	"github.com/spec-kit/helpticket-service/internal/events"
	"github.com/spec-kit/helpticket-service/internal/repository"
	apperrors "github.com/spec-kit/helpticket-service/pkg/util/errorutil"
)

// CalendarCache is the read-through cache in front of the calendar tables.
type CalendarCache interface {
	Get(ctx context.Context) (*cache.CalendarEntry, bool)
	Set(ctx context.Context, entry cache.CalendarEntry)
	Invalidate(ctx context.Context)
}

// CalendarProvider supplies the calendar every deadline computation runs against.
type CalendarProvider interface {
	Calendar(ctx context.Context) (domain.CalendarConfig, domain.HolidaySet, error)
}

// TicketConfigService owns the calendar configuration row and the holiday list.
type TicketConfigService struct {
	store      repository.Transactor
	cache      CalendarCache
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// ConfigDependencies bundles collaborators for TicketConfigService.
type ConfigDependencies struct {
	Store      repository.Transactor
	Cache      CalendarCache
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewTicketConfigService constructs the service.
func NewTicketConfigService(deps ConfigDependencies) *TicketConfigService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TicketConfigService{
		store:      deps.Store,
		cache:      deps.Cache,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        clock,
	}
}

// GetConfig returns the stored configuration and holidays, bypassing the cache.
func (s *TicketConfigService) GetConfig(ctx context.Context) (*domain.CalendarConfig, []domain.Holiday, error) {
	cfg, err := s.store.Calendar().Get(ctx)
	if err != nil {
		return nil, nil, notFoundOr(err, "calendar config", nil)
	}
	holidays, err := s.store.Holidays().List(ctx)
	if err != nil {
		return nil, nil, err
	}
	if holidays == nil {
		holidays = []domain.Holiday{}
	}
	return cfg, holidays, nil
}

// Calendar implements CalendarProvider, serving from cache when possible.
func (s *TicketConfigService) Calendar(ctx context.Context) (domain.CalendarConfig, domain.HolidaySet, error) {
	if s.cache != nil {
		if entry, ok := s.cache.Get(ctx); ok {
			return entry.Config, domain.NewHolidaySet(entry.Holidays), nil
		}
	}
	cfg, holidays, err := s.GetConfig(ctx)
	if err != nil {
		return domain.CalendarConfig{}, nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, cache.CalendarEntry{Config: *cfg, Holidays: holidays})
	}
	return *cfg, domain.NewHolidaySet(holidays), nil
}

// UpdateConfig merges patch into the stored configuration. Fields left nil
// keep their stored value. The merged result must pass validation.
func (s *TicketConfigService) UpdateConfig(ctx context.Context, actor domain.Actor, patch domain.CalendarConfigPatch) (*domain.CalendarConfig, error) {
	if patch.IsEmpty() {
		cfg, err := s.store.Calendar().Get(ctx)
		if err != nil {
			return nil, notFoundOr(err, "calendar config", nil)
		}
		return cfg, nil
	}

	var updated *domain.CalendarConfig
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		current, err := tx.Calendar().Get(ctx)
		if err != nil {
			return notFoundOr(err, "calendar config", nil)
		}
		merged := current.Apply(patch)
		if err := merged.Validate(); err != nil {
			return apperrors.NewValidationError(err.Error(), nil)
		}
		updated, err = tx.Calendar().Update(ctx, patch)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.calendarChanged(ctx, actor, "config", "")
	s.logger.Info("calendar config updated",
		zap.String("actor_id", actor.EmployeeID),
		zap.String("office_start", updated.OfficeStart.String()),
		zap.String("office_end", updated.OfficeEnd.String()),
		zap.Ints("working_days", updated.WorkingDays))
	return updated, nil
}

// ListHolidays returns holidays ordered by date.
func (s *TicketConfigService) ListHolidays(ctx context.Context) ([]domain.Holiday, error) {
	holidays, err := s.store.Holidays().List(ctx)
	if err != nil {
		return nil, err
	}
	if holidays == nil {
		holidays = []domain.Holiday{}
	}
	return holidays, nil
}

// AddHoliday registers a calendar date as non-working.
func (s *TicketConfigService) AddHoliday(ctx context.Context, actor domain.Actor, date time.Time, description string) (*domain.Holiday, error) {
	if date.IsZero() {
		return nil, apperrors.NewValidationError("date is required", map[string]any{"field": "date"})
	}
	y, m, d := date.Date()
	holiday := &domain.Holiday{
		Date:        time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Description: strings.TrimSpace(description),
	}
	if err := s.store.Holidays().Create(ctx, holiday); err != nil {
		if errors.Is(err, repository.ErrDuplicateHoliday) {
			return nil, apperrors.NewDuplicateHoliday(holiday.DateKey())
		}
		return nil, err
	}

	s.calendarChanged(ctx, actor, "holiday_added", holiday.ID)
	s.logger.Info("holiday added", zap.String("date", holiday.DateKey()), zap.String("actor_id", actor.EmployeeID))
	return holiday, nil
}

// RemoveHoliday deletes a holiday by id.
func (s *TicketConfigService) RemoveHoliday(ctx context.Context, actor domain.Actor, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewNotFound("holiday", map[string]any{"id": id})
	}
	if err := s.store.Holidays().Delete(ctx, id); err != nil {
		return notFoundOr(err, "holiday", map[string]any{"id": id})
	}
	s.calendarChanged(ctx, actor, "holiday_removed", id)
	s.logger.Info("holiday removed", zap.String("holiday_id", id), zap.String("actor_id", actor.EmployeeID))
	return nil
}

// EnsureDefaults seeds the configuration row on first start. An existing row is left alone.
func (s *TicketConfigService) EnsureDefaults(ctx context.Context, defaults config.CalendarDefaults) error {
	cfg, err := DefaultCalendar(defaults)
	if err != nil {
		return err
	}
	return s.store.Calendar().EnsureDefault(ctx, cfg)
}

// DefaultCalendar converts env defaults into a validated configuration.
func DefaultCalendar(defaults config.CalendarDefaults) (domain.CalendarConfig, error) {
	start, err := domain.ParseTimeOfDay(defaults.OfficeStart)
	if err != nil {
		return domain.CalendarConfig{}, apperrors.NewValidationError(err.Error(), map[string]any{"field": "office_start"})
	}
	end, err := domain.ParseTimeOfDay(defaults.OfficeEnd)
	if err != nil {
		return domain.CalendarConfig{}, apperrors.NewValidationError(err.Error(), map[string]any{"field": "office_end"})
	}
	cfg := domain.CalendarConfig{
		OfficeStart:    start,
		OfficeEnd:      end,
		WorkingDays:    domain.NormalizeWorkingDays(defaults.WorkingDays),
		Stage2TATHours: defaults.Stage2TATHours,
		Stage4TATHours: defaults.Stage4TATHours,
		Stage5TATHours: defaults.Stage5TATHours,
		TimeZone:       defaults.TimeZone,
	}
	if err := cfg.Validate(); err != nil {
		return domain.CalendarConfig{}, apperrors.NewValidationError(err.Error(), nil)
	}
	return cfg, nil
}

func (s *TicketConfigService) calendarChanged(ctx context.Context, actor domain.Actor, change, holidayID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	publish(ctx, s.dispatcher, s.now, events.Event{
		Type:    events.EventCalendarUpdated,
		Actor:   events.Actor{EmployeeID: actor.EmployeeID, Role: actor.Role},
		Payload: events.CalendarUpdatedPayload{Change: change, HolidayID: holidayID},
	})
}

func notFoundOr(err error, resource string, details map[string]any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, details)
	}
	return err
}

func publish(ctx context.Context, dispatcher events.Dispatcher, now func() time.Time, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now()
	}
	_ = dispatcher.Publish(ctx, event)
}
