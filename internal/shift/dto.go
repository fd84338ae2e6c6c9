package shift

import (
	errors "github.com/frahmantamala/attendance/internal"
	"github.com/frahmantamala/attendance/internal/core/common/validation"
)

type AssignShiftDTO struct {
	ShiftID       int64   `json:"shift_id"`
	EffectiveFrom string  `json:"effective_from"`
	EffectiveTo   *string `json:"effective_to,omitempty"`
}

func (d AssignShiftDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("shift_id", d.ShiftID).Custom(func(value interface{}) *errors.AppError {
		if id, _ := value.(int64); id <= 0 {
			return errors.NewValidationFieldError("shift_id", "shift_id must be positive", errors.ErrCodeValidationFailed)
		}
		return nil
	})
	v.Field("effective_from", d.EffectiveFrom).Required().DateLayout()
	v.Field("effective_to", d.EffectiveTo).DateLayout().Custom(func(value interface{}) *errors.AppError {
		if d.EffectiveTo != nil && *d.EffectiveTo != "" && *d.EffectiveTo < d.EffectiveFrom {
			return errors.NewValidationFieldError("effective_to", "effective_to must not precede effective_from", errors.ErrCodeInvalidDate)
		}
		return nil
	})
	return v.Validate()
}

type EmployeeShiftResponse struct {
	ID            int64    `json:"id"`
	ShiftName     string   `json:"shift_name"`
	StartTime     string   `json:"start_time"`
	EndTime       string   `json:"end_time"`
	CheckInStart  string   `json:"check_in_start"`
	CheckInEnd    string   `json:"check_in_end"`
	CheckOutStart string   `json:"check_out_start"`
	CheckOutEnd   string   `json:"check_out_end"`
	DaysOfWeek    []string `json:"days_of_week"`
	EffectiveFrom string   `json:"effective_from"`
	EffectiveTo   *string  `json:"effective_to"`
}

type CurrentShiftResponse struct {
	Shift *EmployeeShiftResponse `json:"shift"`
}

func NewEmployeeShiftResponse(s *Shift, a *Assignment) *EmployeeShiftResponse {
	return &EmployeeShiftResponse{
		ID:            s.ID,
		ShiftName:     s.Name,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		CheckInStart:  s.CheckIn.Start,
		CheckInEnd:    s.CheckIn.End,
		CheckOutStart: s.CheckOut.Start,
		CheckOutEnd:   s.CheckOut.End,
		DaysOfWeek:    s.Days,
		EffectiveFrom: a.EffectiveFrom,
		EffectiveTo:   a.EffectiveTo,
	}
}
