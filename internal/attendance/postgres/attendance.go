package postgres

import (
	"context"

	"github.com/frahmantamala/attendance/internal/attendance"
	attendanceDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/attendance"
	"gorm.io/gorm"
)

type AttendanceRepository struct {
	db *gorm.DB
}

func NewAttendanceRepository(db *gorm.DB) attendance.Repository {
	return &AttendanceRepository{db: db}
}

func (r *AttendanceRepository) FindByDate(ctx context.Context, employeeID, date string) (*attendanceDatamodel.Attendance, error) {
	var rows []attendanceDatamodel.Attendance
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND date = ? AND status <> ?", employeeID, date, string(attendance.StateDeleted)).
		Order("id DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (r *AttendanceRepository) Create(ctx context.Context, rec *attendanceDatamodel.Attendance) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *AttendanceRepository) Update(ctx context.Context, rec *attendanceDatamodel.Attendance) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

func (r *AttendanceRepository) Transaction(ctx context.Context, fn func(repo attendance.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&AttendanceRepository{db: tx})
	})
}
