package service

import (
	"context"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/spec-kit/helpticket-service/internal/config"
	"github.com/spec-kit/helpticket-service/internal/domain"
	"github.com/spec-kit/helpticket-service/internal/events"
	"github.com/spec-kit/helpticket-service/internal/repository/memory"
	apperrors "github.com/spec-kit/helpticket-service/pkg/util/errorutil"
)

func TestUpdateConfigKeepsUnspecifiedFields(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, utc(2025, 6, 2, 10, 0))

	tat := 6.5
	updated, err := env.configs.UpdateConfig(ctx, adminActor, domain.CalendarConfigPatch{
		Stage4TATHours: &tat,
		WorkingDays:    []int{6, 1, 2, 3, 4, 5, 1},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Stage4TATHours != 6.5 {
		t.Fatalf("stage4 not updated: %v", updated.Stage4TATHours)
	}
	if updated.Stage2TATHours != 4 || updated.Stage5TATHours != 4 {
		t.Fatalf("unspecified TAT fields changed: %+v", updated)
	}
	if updated.OfficeStart != (domain.TimeOfDay{Hour: 9}) || updated.OfficeEnd != (domain.TimeOfDay{Hour: 18}) {
		t.Fatalf("office hours changed: %s-%s", updated.OfficeStart, updated.OfficeEnd)
	}
	if !reflect.DeepEqual(updated.WorkingDays, []int{1, 2, 3, 4, 5, 6}) {
		t.Fatalf("working days not normalized: %v", updated.WorkingDays)
	}

	cfg, _, err := env.configs.GetConfig(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cfg.Stage4TATHours != 6.5 {
		t.Fatalf("update not persisted")
	}
	if types := env.events.types(); len(types) != 1 || types[0] != events.EventCalendarUpdated {
		t.Fatalf("expected calendar_updated event, got %v", types)
	}
}

func TestUpdateConfigRejectsInvalidResult(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, utc(2025, 6, 2, 10, 0))

	start := domain.TimeOfDay{Hour: 19}
	negative := -1.0
	badTZ := "Mars/Olympus"
	patches := map[string]domain.CalendarConfigPatch{
		"start after end":    {OfficeStart: &start},
		"negative tat":       {Stage2TATHours: &negative},
		"empty working days": {WorkingDays: []int{}},
		"day out of range":   {WorkingDays: []int{0, 1}},
		"unknown time zone":  {TimeZone: &badTZ},
	}
	for name, patch := range patches {
		t.Run(name, func(t *testing.T) {
			if _, err := env.configs.UpdateConfig(ctx, adminActor, patch); !apperrors.IsCode(err, apperrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	cfg, _, _ := env.configs.GetConfig(ctx)
	if cfg.OfficeStart.Hour != 9 || cfg.Stage2TATHours != 4 || len(cfg.WorkingDays) != 5 {
		t.Fatalf("rejected update changed stored config: %+v", cfg)
	}
}

func TestUpdateConfigEmptyPatchReturnsCurrent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, utc(2025, 6, 2, 10, 0))
	cfg, err := env.configs.UpdateConfig(ctx, adminActor, domain.CalendarConfigPatch{})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if cfg.Stage2TATHours != 4 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if len(env.events.types()) != 0 {
		t.Fatalf("empty patch must not publish")
	}
}

func TestHolidayLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, utc(2025, 6, 2, 10, 0))

	holiday, err := env.configs.AddHoliday(ctx, adminActor, utc(2025, 1, 1, 15, 30), " New Year ")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if holiday.DateKey() != "2025-01-01" || holiday.Description != "New Year" {
		t.Fatalf("unexpected holiday %+v", holiday)
	}

	_, err = env.configs.AddHoliday(ctx, adminActor, utc(2025, 1, 1, 0, 0), "duplicate")
	if !apperrors.IsCode(err, apperrors.CodeDuplicateHoliday) {
		t.Fatalf("expected duplicate holiday, got %v", err)
	}

	_, holidays, err := env.configs.GetConfig(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(holidays) != 1 {
		t.Fatalf("expected one holiday, got %d", len(holidays))
	}

	if err := env.configs.RemoveHoliday(ctx, adminActor, holiday.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := env.configs.RemoveHoliday(ctx, adminActor, holiday.ID); !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found on second remove, got %v", err)
	}
	if err := env.configs.RemoveHoliday(ctx, adminActor, "bogus"); !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found for malformed id, got %v", err)
	}
	list, _ := env.configs.ListHolidays(ctx)
	if len(list) != 0 {
		t.Fatalf("expected empty holiday list")
	}
}

func TestAddHolidayRequiresDate(t *testing.T) {
	env := newTestEnv(t, utc(2025, 6, 2, 10, 0))
	_, err := env.configs.AddHoliday(context.Background(), adminActor, utc(1, 1, 1, 0, 0), "x")
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCalendarUsesCacheAndInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	fake := &fakeCalendarCache{}
	svc := NewTicketConfigService(ConfigDependencies{Store: store, Cache: fake})
	if err := svc.EnsureDefaults(ctx, testCalendarDefaults); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, _, err := svc.Calendar(ctx); err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if fake.sets != 1 {
		t.Fatalf("expected cache fill, got %d sets", fake.sets)
	}
	if _, _, err := svc.Calendar(ctx); err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if fake.sets != 1 {
		t.Fatalf("expected cache hit on second read")
	}

	if _, err := svc.AddHoliday(ctx, adminActor, utc(2025, 12, 25, 0, 0), "Christmas"); err != nil {
		t.Fatalf("add holiday: %v", err)
	}
	if fake.invalidated != 1 || fake.entry != nil {
		t.Fatalf("holiday write did not invalidate cache")
	}
	_, holidays, err := svc.Calendar(ctx)
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if !holidays.Contains(utc(2025, 12, 25, 10, 0)) {
		t.Fatalf("new holiday missing after invalidation")
	}
}

func TestCalendarWithoutConfigRow(t *testing.T) {
	svc := NewTicketConfigService(ConfigDependencies{Store: memory.NewStore()})
	if _, _, err := svc.Calendar(context.Background()); !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDefaultCalendar(t *testing.T) {
	cfg, err := DefaultCalendar(testCalendarDefaults)
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if cfg.OfficeStart.String() != "09:00" || cfg.OfficeEnd.String() != "18:00" {
		t.Fatalf("unexpected office hours %s-%s", cfg.OfficeStart, cfg.OfficeEnd)
	}

	bad := testCalendarDefaults
	bad.OfficeStart = "18:00"
	bad.OfficeEnd = "09:00"
	if _, err := DefaultCalendar(bad); !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	garbled := config.CalendarDefaults{OfficeStart: "nine", OfficeEnd: "18:00", WorkingDays: []int{1}}
	if _, err := DefaultCalendar(garbled); !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error for unparsable time, got %v", err)
	}
}

func TestHistoryRecorderSnapshotsCopies(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ticket := &domain.Ticket{TicketNo: "HT-20250602-0001", Status: domain.TicketStatusOpen, CurrentStage: 1}
	if err := store.Tickets().Create(ctx, ticket); err != nil {
		t.Fatalf("create: %v", err)
	}

	entry, err := HistoryRecorder{}.Record(ctx, store, HistoryRecord{
		TicketID: ticket.ID,
		TicketNo: ticket.TicketNo,
		Stage:    1,
		New:      ticket,
		Action:   domain.ActionTicketRaised,
		ActorID:  "emp-1",
		Remarks:  "  raised  ",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	ticket.Status = domain.TicketStatusClosed
	if entry.NewValues.Ticket.Status != domain.TicketStatusOpen {
		t.Fatalf("snapshot aliases the live ticket")
	}
	if entry.OldValues != nil || entry.Remarks != "raised" || entry.ID == "" {
		t.Fatalf("unexpected entry %+v", entry)
	}

	if _, err := (HistoryRecorder{}).Record(ctx, store, HistoryRecord{TicketID: uuid.NewString()}); err == nil {
		t.Fatalf("expected error for unknown ticket")
	}
}
