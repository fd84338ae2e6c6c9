package shift

import (
	"fmt"
	"strings"
	"time"

	shiftDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/shift"
)

// Action selects which window of a shift applies.
type Action string

const (
	ActionCheckIn  Action = "check-in"
	ActionCheckOut Action = "check-out"
)

const clockLayout = "15:04"

// Window is an inclusive time-of-day range in HH:MM form. Windows do not wrap
// past midnight; a window whose end precedes its start admits nothing.
type Window struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

func (w Window) String() string {
	return fmt.Sprintf("%s - %s", w.Start, w.End)
}

// Contains reports whether the wall-clock time of t lies in [Start, End].
func (w Window) Contains(t time.Time) (bool, error) {
	start, err := parseClock(w.Start)
	if err != nil {
		return false, fmt.Errorf("window start %q: %w", w.Start, err)
	}
	end, err := parseClock(w.End)
	if err != nil {
		return false, fmt.Errorf("window end %q: %w", w.End, err)
	}
	tod := sinceMidnight(t)
	return start <= tod && tod <= end, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse(clockLayout, strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

type Shift struct {
	ID        int64    `json:"id"`
	Name      string   `json:"shift_name" yaml:"name"`
	StartTime string   `json:"start_time" yaml:"start_time"`
	EndTime   string   `json:"end_time" yaml:"end_time"`
	CheckIn   Window   `json:"check_in" yaml:"check_in"`
	CheckOut  Window   `json:"check_out" yaml:"check_out"`
	Days      []string `json:"days_of_week" yaml:"days"`
	IsActive  bool     `json:"is_active"`
}

func (s *Shift) WindowFor(action Action) Window {
	if action == ActionCheckOut {
		return s.CheckOut
	}
	return s.CheckIn
}

// ActiveOn reports whether the shift runs on the given weekday. Days are
// stored as three-letter English abbreviations.
func (s *Shift) ActiveOn(day time.Weekday) bool {
	abbr := day.String()[:3]
	for _, d := range s.Days {
		if strings.EqualFold(strings.TrimSpace(d), abbr) {
			return true
		}
	}
	return false
}

type Assignment struct {
	ID            int64     `json:"id"`
	EmployeeID    string    `json:"employee_id"`
	ShiftID       int64     `json:"shift_id"`
	EffectiveFrom string    `json:"effective_from"`
	EffectiveTo   *string   `json:"effective_to"`
	IsActive      bool      `json:"is_active"`
	CreatedBy     string    `json:"created_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Covers reports whether day (YYYY-MM-DD) falls in [EffectiveFrom, EffectiveTo].
// An open EffectiveTo never expires.
func (a *Assignment) Covers(day string) bool {
	if day < a.EffectiveFrom {
		return false
	}
	return a.EffectiveTo == nil || *a.EffectiveTo >= day
}

// AssignedShift pairs an assignment with the shift it points to.
type AssignedShift struct {
	Assignment shiftDatamodel.EmployeeShift
	Shift      shiftDatamodel.Shift
}

func ToDataModel(s *Shift) *shiftDatamodel.Shift {
	return &shiftDatamodel.Shift{
		ID:            s.ID,
		ShiftName:     s.Name,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		CheckInStart:  s.CheckIn.Start,
		CheckInEnd:    s.CheckIn.End,
		CheckOutStart: s.CheckOut.Start,
		CheckOutEnd:   s.CheckOut.End,
		DaysOfWeek:    strings.Join(s.Days, ","),
		IsActive:      s.IsActive,
	}
}

func FromDataModel(s *shiftDatamodel.Shift) *Shift {
	var days []string
	for _, d := range strings.Split(s.DaysOfWeek, ",") {
		if d = strings.TrimSpace(d); d != "" {
			days = append(days, d)
		}
	}
	return &Shift{
		ID:        s.ID,
		Name:      s.ShiftName,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		CheckIn:   Window{Start: s.CheckInStart, End: s.CheckInEnd},
		CheckOut:  Window{Start: s.CheckOutStart, End: s.CheckOutEnd},
		Days:      days,
		IsActive:  s.IsActive,
	}
}

func AssignmentFromDataModel(a *shiftDatamodel.EmployeeShift) *Assignment {
	return &Assignment{
		ID:            a.ID,
		EmployeeID:    a.EmployeeID,
		ShiftID:       a.ShiftID,
		EffectiveFrom: a.EffectiveFrom,
		EffectiveTo:   a.EffectiveTo,
		IsActive:      a.IsActive,
		CreatedBy:     a.CreatedBy,
		CreatedAt:     a.CreatedAt,
	}
}
