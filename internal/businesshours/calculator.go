// Package businesshours computes SLA deadlines by walking working time only.
//
// Every function here is pure: results depend only on the arguments, never on
// the current time or on shared state. Callers fetch the calendar configuration
// and holiday set and pass them explicitly.
package businesshours

import (
	"math"
	"time"

	"github.com/spec-kit/helpticket-service/internal/domain"
)

// ISOWeekday converts Go's weekday (0=Sunday .. 6=Saturday) to the stored
// convention 1=Monday .. 7=Sunday.
func ISOWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

// IsWorkingDay reports whether day's calendar date is in the working week and
// not a holiday.
func IsWorkingDay(day time.Time, cfg domain.CalendarConfig, holidays domain.HolidaySet) bool {
	return cfg.IsWorkingWeekday(ISOWeekday(day.Weekday())) && !holidays.Contains(day)
}

// AddBusinessHours returns the instant reached after consuming hours of
// working time from start. Zero hours still aligns start into working time.
// When cfg.TimeZone is set the walk happens in that zone; otherwise in start's.
func AddBusinessHours(start time.Time, hours float64, cfg domain.CalendarConfig, holidays domain.HolidaySet) time.Time {
	if !usable(cfg) {
		return start
	}
	if cfg.TimeZone != "" {
		start = start.In(cfg.Location())
	}

	remaining := toMillis(hours)
	cursor := align(start, cfg, holidays)

	for remaining > 0 {
		closing := cfg.OfficeEnd.On(cursor)
		available := closing.Sub(cursor).Milliseconds()
		if remaining <= available {
			cursor = cursor.Add(time.Duration(remaining) * time.Millisecond)
			break
		}
		remaining -= available
		cursor = nextWorkingDayOpen(cursor, cfg, holidays)
	}
	return cursor
}

// Align moves start into working time without consuming any hours.
func Align(start time.Time, cfg domain.CalendarConfig, holidays domain.HolidaySet) time.Time {
	return AddBusinessHours(start, 0, cfg, holidays)
}

func align(cursor time.Time, cfg domain.CalendarConfig, holidays domain.HolidaySet) time.Time {
	if !IsWorkingDay(cursor, cfg, holidays) {
		return nextWorkingDayOpen(cursor, cfg, holidays)
	}
	opening := cfg.OfficeStart.On(cursor)
	if cursor.Before(opening) {
		return opening
	}
	if !cursor.Before(cfg.OfficeEnd.On(cursor)) {
		return nextWorkingDayOpen(cursor, cfg, holidays)
	}
	return cursor
}

// nextWorkingDayOpen walks forward one calendar day at a time until a working
// day is found and returns its office-open instant.
func nextWorkingDayOpen(cursor time.Time, cfg domain.CalendarConfig, holidays domain.HolidaySet) time.Time {
	y, m, d := cursor.Date()
	loc := cursor.Location()
	for offset := 1; ; offset++ {
		day := time.Date(y, m, d+offset, 12, 0, 0, 0, loc)
		if IsWorkingDay(day, cfg, holidays) {
			return cfg.OfficeStart.On(day)
		}
	}
}

// usable guards the walk against configurations that would never reach a
// working day or never open the office.
func usable(cfg domain.CalendarConfig) bool {
	if !cfg.OfficeStart.Valid() || !cfg.OfficeEnd.Valid() {
		return false
	}
	if cfg.OfficeStart.Minutes() >= cfg.OfficeEnd.Minutes() {
		return false
	}
	for _, d := range cfg.WorkingDays {
		if d >= 1 && d <= 7 {
			return true
		}
	}
	return false
}

func toMillis(hours float64) int64 {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours <= 0 {
		return 0
	}
	return int64(math.Round(hours * 3_600_000))
}
