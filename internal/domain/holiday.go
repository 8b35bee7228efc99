package domain

import "time"

// DateLayout is the calendar date format used for holiday keys.
const DateLayout = "2006-01-02"

// Holiday removes a whole calendar date from working time.
type Holiday struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// DateKey returns the holiday's calendar date as YYYY-MM-DD.
func (h Holiday) DateKey() string {
	return h.Date.Format(DateLayout)
}

// HolidaySet is a lookup of holiday dates keyed by YYYY-MM-DD.
type HolidaySet map[string]struct{}

// NewHolidaySet indexes holidays by calendar date.
func NewHolidaySet(holidays []Holiday) HolidaySet {
	set := make(HolidaySet, len(holidays))
	for _, h := range holidays {
		set[h.DateKey()] = struct{}{}
	}
	return set
}

// Contains reports whether the calendar date of t (in t's location) is a holiday.
func (s HolidaySet) Contains(t time.Time) bool {
	if len(s) == 0 {
		return false
	}
	_, ok := s[t.Format(DateLayout)]
	return ok
}
