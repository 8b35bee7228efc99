package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/helpticket-service/internal/cache"
	"github.com/spec-kit/helpticket-service/internal/config"
	"github.com/spec-kit/helpticket-service/internal/domain"
	"github.com/spec-kit/helpticket-service/internal/events"
	"github.com/spec-kit/helpticket-service/internal/observability"
	"github.com/spec-kit/helpticket-service/internal/repository"
	"github.com/spec-kit/helpticket-service/internal/repository/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type capturedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capturedEvents) Publish(_ context.Context, e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *capturedEvents) Subscribe(events.EventType, events.EventHandler) {}

func (c *capturedEvents) types() []events.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]events.EventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeCalendarCache struct {
	entry       *cache.CalendarEntry
	sets        int
	invalidated int
}

func (f *fakeCalendarCache) Get(context.Context) (*cache.CalendarEntry, bool) {
	if f.entry == nil {
		return nil, false
	}
	return f.entry, true
}

func (f *fakeCalendarCache) Set(_ context.Context, entry cache.CalendarEntry) {
	f.sets++
	f.entry = &entry
}

func (f *fakeCalendarCache) Invalidate(context.Context) {
	f.invalidated++
	f.entry = nil
}

// failingHistoryStore commits nothing because every history write inside a
// transaction fails.
type failingHistoryStore struct {
	*memory.Store
}

func (f failingHistoryStore) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return f.Store.InTx(ctx, func(tx repository.Store) error {
		return fn(failingHistoryTx{Store: tx})
	})
}

type failingHistoryTx struct {
	repository.Store
}

func (failingHistoryTx) History() repository.TicketHistoryRepository {
	return failingHistoryRepo{}
}

type failingHistoryRepo struct{}

func (failingHistoryRepo) Create(context.Context, *domain.TicketHistoryEntry) error {
	return errors.New("history table unavailable")
}

func (failingHistoryRepo) ListByTicket(context.Context, string) ([]domain.TicketHistoryEntry, error) {
	return nil, nil
}

var testCalendarDefaults = config.CalendarDefaults{
	OfficeStart:    "09:00",
	OfficeEnd:      "18:00",
	WorkingDays:    []int{1, 2, 3, 4, 5},
	Stage2TATHours: 4,
	Stage4TATHours: 4,
	Stage5TATHours: 4,
	TimeZone:       "UTC",
}

type testEnv struct {
	store   *memory.Store
	clock   *testClock
	events  *capturedEvents
	metrics *observability.Metrics
	configs *TicketConfigService
	tickets *TicketService
}

func newTestEnv(t *testing.T, start time.Time) *testEnv {
	t.Helper()
	clock := newTestClock(start)
	store := memory.NewStore().WithClock(clock.Now)
	captured := &capturedEvents{}
	metrics := observability.NewMetrics()

	configs := NewTicketConfigService(ConfigDependencies{
		Store:      store,
		Dispatcher: captured,
		Clock:      clock.Now,
	})
	if err := configs.EnsureDefaults(context.Background(), testCalendarDefaults); err != nil {
		t.Fatalf("seed calendar: %v", err)
	}
	tickets := NewTicketService(TicketDependencies{
		Store:      store,
		Calendars:  configs,
		Dispatcher: captured,
		Metrics:    metrics,
		Clock:      clock.Now,
	})
	return &testEnv{
		store:   store,
		clock:   clock,
		events:  captured,
		metrics: metrics,
		configs: configs,
		tickets: tickets,
	}
}

func (e *testEnv) withStore(store repository.Transactor) *TicketService {
	return NewTicketService(TicketDependencies{
		Store:     store,
		Calendars: e.configs,
		Clock:     e.clock.Now,
	})
}

func utc(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func validRaise() RaiseTicketInput {
	desired := utc(2025, 6, 10, 0, 0)
	return RaiseTicketInput{
		Location:         "Plant 2 / Line A",
		IssueDescription: "Conveyor motor overheating",
		DesiredDate:      &desired,
		Priority:         domain.TicketPriorityHigh,
		PCAccountable:    "pc-1",
		ProblemSolver:    "solver-1",
	}
}

var raiser = domain.Actor{EmployeeID: "emp-1", Role: domain.EmployeeRoleEmployee}
var pcActor = domain.Actor{EmployeeID: "pc-1", Role: domain.EmployeeRoleEmployee}
var solverActor = domain.Actor{EmployeeID: "solver-1", Role: domain.EmployeeRoleEmployee}
var adminActor = domain.Actor{EmployeeID: "admin-1", Role: domain.EmployeeRoleAdmin}
