// Package memory is a process-local repository.Transactor used in development
// mode and by service tests. Transactions run one at a time against a private
// copy of the data that replaces the shared state only on commit.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpticket-service/internal/domain"
	"github.com/spec-kit/helpticket-service/internal/repository"
)

type state struct {
	tickets  map[string]*domain.Ticket
	history  []domain.TicketHistoryEntry
	calendar *domain.CalendarConfig
	holidays map[string]domain.Holiday
}

func newState() *state {
	return &state{
		tickets:  make(map[string]*domain.Ticket),
		holidays: make(map[string]domain.Holiday),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, t := range s.tickets {
		c.tickets[id] = t.Clone()
	}
	c.history = append([]domain.TicketHistoryEntry(nil), s.history...)
	if s.calendar != nil {
		cfg := *s.calendar
		cfg.WorkingDays = append([]int(nil), s.calendar.WorkingDays...)
		c.calendar = &cfg
	}
	for id, h := range s.holidays {
		c.holidays[id] = h
	}
	return c
}

// Store keeps all data in memory. The zero value is not usable; call NewStore.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// NewStore returns an empty store stamping rows with time.Now.
func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

// WithClock overrides the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Tickets() repository.TicketRepository {
	return &ticketRepo{binding{store: s}}
}

func (s *Store) History() repository.TicketHistoryRepository {
	return &historyRepo{binding{store: s}}
}

func (s *Store) Calendar() repository.CalendarRepository {
	return &calendarRepo{binding{store: s}}
}

func (s *Store) Holidays() repository.HolidayRepository {
	return &holidayRepo{binding{store: s}}
}

// InTx runs fn against a copy of the data and publishes the copy only when fn
// succeeds. Repositories obtained from s itself must not be used inside fn.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&txStore{binding{store: s, tx: work}}); err != nil {
		return err
	}
	s.st = work
	return nil
}

type txStore struct {
	b binding
}

func (t *txStore) Tickets() repository.TicketRepository { return &ticketRepo{t.b} }
func (t *txStore) History() repository.TicketHistoryRepository { return &historyRepo{t.b} }
func (t *txStore) Calendar() repository.CalendarRepository { return &calendarRepo{t.b} }
func (t *txStore) Holidays() repository.HolidayRepository { return &holidayRepo{t.b} }

// binding routes an operation either to a transaction's working copy or to
// the shared state under the store lock.
type binding struct {
	store *Store
	tx    *state
}

func (b binding) do(fn func(st *state) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	return fn(b.store.st)
}

type ticketRepo struct{ binding }

func (r *ticketRepo) Create(_ context.Context, t *domain.Ticket) error {
	return r.do(func(st *state) error {
		t.ID = uuid.NewString()
		t.UpdatedAt = t.CreatedAt
		st.tickets[t.ID] = t.Clone()
		return nil
	})
}

func (r *ticketRepo) Update(_ context.Context, t *domain.Ticket) error {
	return r.do(func(st *state) error {
		if _, ok := st.tickets[t.ID]; !ok {
			return pgx.ErrNoRows
		}
		st.tickets[t.ID] = t.Clone()
		return nil
	})
}

func (r *ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.do(func(st *state) error {
		t, ok := st.tickets[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = t.Clone()
		return nil
	})
	return out, err
}

func (r *ticketRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r *ticketRepo) NextDailySequence(_ context.Context, prefix string) (int, error) {
	count := 0
	err := r.do(func(st *state) error {
		for _, t := range st.tickets {
			if strings.HasPrefix(t.TicketNo, prefix) {
				count++
			}
		}
		return nil
	})
	return count + 1, err
}

func (r *ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var result []domain.Ticket
	err := r.do(func(st *state) error {
		for _, t := range st.tickets {
			if matches(t, filter) {
				result = append(result, *t.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].TicketNo > result[j].TicketNo
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	limit, offset := filter.Limit, filter.Offset
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return []domain.Ticket{}, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

func matches(t *domain.Ticket, f repository.TicketFilter) bool {
	if f.Stage != nil && t.CurrentStage != *f.Stage {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if s == t.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.RaisedBy != nil && t.RaisedBy != *f.RaisedBy {
		return false
	}
	if f.PCAccountable != nil && t.PCAccountable != *f.PCAccountable {
		return false
	}
	if f.ProblemSolver != nil && t.ProblemSolver != *f.ProblemSolver {
		return false
	}
	if f.TicketNo != nil {
		needle := strings.ToUpper(strings.TrimSpace(*f.TicketNo))
		if needle != "" && !strings.Contains(t.TicketNo, needle) {
			return false
		}
	}
	if f.CreatedFrom != nil && t.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && t.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	return true
}

type historyRepo struct{ binding }

func (r *historyRepo) Create(_ context.Context, entry *domain.TicketHistoryEntry) error {
	return r.do(func(st *state) error {
		if _, ok := st.tickets[entry.TicketID]; !ok {
			return pgx.ErrNoRows
		}
		entry.ID = uuid.NewString()
		entry.ActionDate = r.store.now()
		st.history = append(st.history, *entry)
		return nil
	})
}

func (r *historyRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistoryEntry, error) {
	var result []domain.TicketHistoryEntry
	err := r.do(func(st *state) error {
		for _, e := range st.history {
			if e.TicketID == ticketID {
				result = append(result, e)
			}
		}
		return nil
	})
	return result, err
}

type calendarRepo struct{ binding }

func (r *calendarRepo) Get(_ context.Context) (*domain.CalendarConfig, error) {
	var out *domain.CalendarConfig
	err := r.do(func(st *state) error {
		if st.calendar == nil {
			return pgx.ErrNoRows
		}
		cfg := st.calendar.Apply(domain.CalendarConfigPatch{})
		out = &cfg
		return nil
	})
	return out, err
}

func (r *calendarRepo) Update(_ context.Context, patch domain.CalendarConfigPatch) (*domain.CalendarConfig, error) {
	var out *domain.CalendarConfig
	err := r.do(func(st *state) error {
		if st.calendar == nil {
			return pgx.ErrNoRows
		}
		merged := st.calendar.Apply(patch)
		merged.UpdatedAt = r.store.now()
		st.calendar = &merged
		cp := merged.Apply(domain.CalendarConfigPatch{})
		out = &cp
		return nil
	})
	return out, err
}

func (r *calendarRepo) EnsureDefault(_ context.Context, cfg domain.CalendarConfig) error {
	return r.do(func(st *state) error {
		if st.calendar != nil {
			return nil
		}
		stored := cfg.Apply(domain.CalendarConfigPatch{WorkingDays: cfg.WorkingDays})
		stored.UpdatedAt = r.store.now()
		st.calendar = &stored
		return nil
	})
}

type holidayRepo struct{ binding }

func (r *holidayRepo) List(_ context.Context) ([]domain.Holiday, error) {
	var result []domain.Holiday
	err := r.do(func(st *state) error {
		for _, h := range st.holidays {
			result = append(result, h)
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, err
}

func (r *holidayRepo) Create(_ context.Context, holiday *domain.Holiday) error {
	return r.do(func(st *state) error {
		key := holiday.DateKey()
		for _, h := range st.holidays {
			if h.DateKey() == key {
				return repository.ErrDuplicateHoliday
			}
		}
		holiday.ID = uuid.NewString()
		holiday.CreatedAt = r.store.now()
		st.holidays[holiday.ID] = *holiday
		return nil
	})
}

func (r *holidayRepo) Delete(_ context.Context, id string) error {
	return r.do(func(st *state) error {
		if _, ok := st.holidays[id]; !ok {
			return pgx.ErrNoRows
		}
		delete(st.holidays, id)
		return nil
	})
}
