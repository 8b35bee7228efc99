package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// ParseTimeOfDay parses HH:MM or HH:MM:SS values.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", value)
	}
	t := TimeOfDay{Hour: hour, Minute: minute}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", value)
	}
	return t, nil
}

// Valid reports whether the value is a real clock time.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns the instant at this time of day on the calendar date of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, day.Location())
}

// CalendarConfig is the office calendar used for SLA deadline computation.
// WorkingDays uses 1=Monday .. 7=Sunday.
type CalendarConfig struct {
	OfficeStart    TimeOfDay `json:"office_start"`
	OfficeEnd      TimeOfDay `json:"office_end"`
	WorkingDays    []int     `json:"working_days"`
	Stage2TATHours float64   `json:"stage2_tat_hours"`
	Stage4TATHours float64   `json:"stage4_tat_hours"`
	Stage5TATHours float64   `json:"stage5_tat_hours"`
	TimeZone       string    `json:"time_zone"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CalendarConfigPatch carries a partial update; nil fields keep their previous value.
type CalendarConfigPatch struct {
	OfficeStart    *TimeOfDay
	OfficeEnd      *TimeOfDay
	WorkingDays    []int
	Stage2TATHours *float64
	Stage4TATHours *float64
	Stage5TATHours *float64
	TimeZone       *string
}

// IsEmpty reports whether the patch changes nothing.
func (p CalendarConfigPatch) IsEmpty() bool {
	return p.OfficeStart == nil && p.OfficeEnd == nil && p.WorkingDays == nil &&
		p.Stage2TATHours == nil && p.Stage4TATHours == nil && p.Stage5TATHours == nil && p.TimeZone == nil
}

// Apply returns a copy of c with the non-nil patch fields merged in.
func (c CalendarConfig) Apply(p CalendarConfigPatch) CalendarConfig {
	out := c
	out.WorkingDays = append([]int(nil), c.WorkingDays...)
	if p.OfficeStart != nil {
		out.OfficeStart = *p.OfficeStart
	}
	if p.OfficeEnd != nil {
		out.OfficeEnd = *p.OfficeEnd
	}
	if p.WorkingDays != nil {
		out.WorkingDays = NormalizeWorkingDays(p.WorkingDays)
	}
	if p.Stage2TATHours != nil {
		out.Stage2TATHours = *p.Stage2TATHours
	}
	if p.Stage4TATHours != nil {
		out.Stage4TATHours = *p.Stage4TATHours
	}
	if p.Stage5TATHours != nil {
		out.Stage5TATHours = *p.Stage5TATHours
	}
	if p.TimeZone != nil {
		out.TimeZone = *p.TimeZone
	}
	return out
}

// Validate checks the configuration invariants.
func (c CalendarConfig) Validate() error {
	var problems []string
	if !c.OfficeStart.Valid() || !c.OfficeEnd.Valid() {
		problems = append(problems, "office hours must be valid clock times")
	} else if c.OfficeStart.Minutes() >= c.OfficeEnd.Minutes() {
		problems = append(problems, "office_start must be before office_end")
	}
	if len(c.WorkingDays) == 0 {
		problems = append(problems, "at least one working day is required")
	}
	for _, d := range c.WorkingDays {
		if d < 1 || d > 7 {
			problems = append(problems, fmt.Sprintf("working day %d outside 1..7", d))
			break
		}
	}
	for _, h := range []float64{c.Stage2TATHours, c.Stage4TATHours, c.Stage5TATHours} {
		if h < 0 || math.IsNaN(h) || math.IsInf(h, 0) {
			problems = append(problems, "stage TAT hours must be finite and not negative")
			break
		}
	}
	if c.TimeZone != "" {
		if _, err := time.LoadLocation(c.TimeZone); err != nil {
			problems = append(problems, fmt.Sprintf("unknown time zone %q", c.TimeZone))
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// TATHours returns the SLA budget for the stage a deadline is computed for.
func (c CalendarConfig) TATHours(stage int) float64 {
	switch stage {
	case 2:
		return c.Stage2TATHours
	case 4:
		return c.Stage4TATHours
	case 5:
		return c.Stage5TATHours
	default:
		return 0
	}
}

// Location resolves TimeZone, falling back to UTC.
func (c CalendarConfig) Location() *time.Location {
	if c.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsWorkingWeekday tests an ISO weekday (1=Monday .. 7=Sunday).
func (c CalendarConfig) IsWorkingWeekday(isoDay int) bool {
	for _, d := range c.WorkingDays {
		if d == isoDay {
			return true
		}
	}
	return false
}

// NormalizeWorkingDays sorts and de-duplicates a working day list.
func NormalizeWorkingDays(days []int) []int {
	seen := make(map[int]struct{}, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}
