package shift

import "time"

type Shift struct {
	ID            int64     `gorm:"primaryKey"`
	ShiftName     string    `gorm:"column:shift_name;uniqueIndex;not null"`
	StartTime     string    `gorm:"column:start_time;size:5;not null"`
	EndTime       string    `gorm:"column:end_time;size:5;not null"`
	CheckInStart  string    `gorm:"column:check_in_start;size:5;not null"`
	CheckInEnd    string    `gorm:"column:check_in_end;size:5;not null"`
	CheckOutStart string    `gorm:"column:check_out_start;size:5;not null"`
	CheckOutEnd   string    `gorm:"column:check_out_end;size:5;not null"`
	DaysOfWeek    string    `gorm:"column:days_of_week;not null"`
	IsActive      bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Shift) TableName() string {
	return "shifts"
}

type EmployeeShift struct {
	ID            int64     `gorm:"primaryKey"`
	EmployeeID    string    `gorm:"column:employee_id;not null;size:50;index;uniqueIndex:idx_employee_shifts_active,where:is_active = true"`
	ShiftID       int64     `gorm:"column:shift_id;not null;index"`
	EffectiveFrom string    `gorm:"column:effective_from;size:10;not null"`
	EffectiveTo   *string   `gorm:"column:effective_to;size:10"`
	IsActive      bool      `gorm:"column:is_active;not null;default:true"`
	CreatedBy     string    `gorm:"column:created_by;size:50"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (EmployeeShift) TableName() string {
	return "employee_shifts"
}
