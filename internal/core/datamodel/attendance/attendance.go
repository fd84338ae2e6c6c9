package attendance

import "time"

type Attendance struct {
	ID                 int64      `gorm:"primaryKey"`
	EmployeeID         string     `gorm:"column:employee_id;not null;size:50;uniqueIndex:idx_attendance_active_day,where:status <> 'deleted'"`
	Date               string     `gorm:"column:date;not null;size:10;uniqueIndex:idx_attendance_active_day"`
	CheckInTime        *time.Time `gorm:"column:check_in_time"`
	CheckInLat         *float64   `gorm:"column:check_in_lat"`
	CheckInLon         *float64   `gorm:"column:check_in_lon"`
	CheckInImagePath   *string    `gorm:"column:check_in_image_path"`
	CheckInConfidence  *float64   `gorm:"column:check_in_confidence"`
	CheckOutTime       *time.Time `gorm:"column:check_out_time"`
	CheckOutLat        *float64   `gorm:"column:check_out_lat"`
	CheckOutLon        *float64   `gorm:"column:check_out_lon"`
	CheckOutImagePath  *string    `gorm:"column:check_out_image_path"`
	CheckOutConfidence *float64   `gorm:"column:check_out_confidence"`
	Status             string     `gorm:"column:status;not null;default:checked_in"`
	Notes              *string    `gorm:"column:notes"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Attendance) TableName() string {
	return "attendance"
}
