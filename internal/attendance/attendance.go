package attendance

import (
	"time"

	attendanceDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/attendance"
)

// State is the per-(employee, date) attendance state.
type State string

const (
	StateAbsent    State = "absent"
	StateCheckedIn State = "checked_in"
	StateCompleted State = "completed"
	StateDeleted   State = "deleted"
)

// Evidence image tags.
const (
	tagCheckIn  = "checkin"
	tagCheckOut = "checkout"
)

// Request is one check-in or check-out attempt by the authenticated
// employee.
type Request struct {
	EmployeeID string
	Latitude   float64
	Longitude  float64
	Image      []byte
	IP         string
}

type Location struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Validation string  `json:"validation"`
}

// Result describes an accepted transition.
type Result struct {
	Message    string
	Time       time.Time
	Location   Location
	Confidence float64
	Record     *attendanceDatamodel.Attendance
}

// DayStatus is the employee's state for one calendar date.
type DayStatus struct {
	Date         string
	State        State
	CheckInTime  *time.Time
	CheckOutTime *time.Time
}

// StateOf derives the state of a stored record; nil means absent.
func StateOf(rec *attendanceDatamodel.Attendance) State {
	switch {
	case rec == nil:
		return StateAbsent
	case rec.Status == string(StateDeleted):
		return StateDeleted
	case rec.CheckOutTime != nil:
		return StateCompleted
	case rec.CheckInTime != nil:
		return StateCheckedIn
	}
	return StateAbsent
}
