package attendance

import (
	"time"
)

type CheckResponse struct {
	Message    string   `json:"message"`
	Time       string   `json:"time"`
	Location   Location `json:"location"`
	Confidence float64  `json:"confidence"`
}

func NewCheckResponse(r *Result) CheckResponse {
	return CheckResponse{
		Message:    r.Message,
		Time:       r.Time.Format(time.RFC3339Nano),
		Location:   r.Location,
		Confidence: r.Confidence,
	}
}

type StatusResponse struct {
	CheckedIn    bool       `json:"checked_in"`
	CheckedOut   bool       `json:"checked_out"`
	CheckInTime  *time.Time `json:"check_in_time"`
	CheckOutTime *time.Time `json:"check_out_time"`
	Status       State      `json:"status"`
	Date         string     `json:"date"`
}

func NewStatusResponse(d *DayStatus) StatusResponse {
	return StatusResponse{
		CheckedIn:    d.CheckInTime != nil,
		CheckedOut:   d.CheckOutTime != nil,
		CheckInTime:  d.CheckInTime,
		CheckOutTime: d.CheckOutTime,
		Status:       d.State,
		Date:         d.Date,
	}
}
