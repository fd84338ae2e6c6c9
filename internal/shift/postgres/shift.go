package postgres

import (
	"context"
	"errors"

	employeeDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/employee"
	shiftDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/shift"
	"github.com/frahmantamala/attendance/internal/shift"
	"gorm.io/gorm"
)

type ShiftRepository struct {
	db *gorm.DB
}

func NewShiftRepository(db *gorm.DB) shift.Repository {
	return &ShiftRepository{db: db}
}

func (r *ShiftRepository) ActiveAssignments(ctx context.Context, employeeID, day string) ([]shift.AssignedShift, error) {
	var assignments []shiftDatamodel.EmployeeShift
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND is_active = ?", employeeID, true).
		Where("effective_from <= ?", day).
		Where("(effective_to IS NULL OR effective_to >= ?)", day).
		Order("effective_from DESC, id DESC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return r.attachShifts(ctx, assignments)
}

func (r *ShiftRepository) CurrentAssignment(ctx context.Context, employeeID string) (*shift.AssignedShift, error) {
	var assignments []shiftDatamodel.EmployeeShift
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND is_active = ?", employeeID, true).
		Order("effective_from DESC, id DESC").
		Limit(1).
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	paired, err := r.attachShifts(ctx, assignments)
	if err != nil || len(paired) == 0 {
		return nil, err
	}
	return &paired[0], nil
}

// attachShifts loads the shifts referenced by assignments and pairs them,
// dropping assignments whose shift no longer exists.
func (r *ShiftRepository) attachShifts(ctx context.Context, assignments []shiftDatamodel.EmployeeShift) ([]shift.AssignedShift, error) {
	if len(assignments) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.ShiftID)
	}

	var shifts []shiftDatamodel.Shift
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&shifts).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]shiftDatamodel.Shift, len(shifts))
	for _, s := range shifts {
		byID[s.ID] = s
	}

	result := make([]shift.AssignedShift, 0, len(assignments))
	for _, a := range assignments {
		s, ok := byID[a.ShiftID]
		if !ok {
			continue
		}
		result = append(result, shift.AssignedShift{Assignment: a, Shift: s})
	}
	return result, nil
}

func (r *ShiftRepository) GetShiftByID(ctx context.Context, id int64) (*shiftDatamodel.Shift, error) {
	var s shiftDatamodel.Shift
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *ShiftRepository) GetShiftByName(ctx context.Context, name string) (*shiftDatamodel.Shift, error) {
	var s shiftDatamodel.Shift
	err := r.db.WithContext(ctx).Where("shift_name = ?", name).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *ShiftRepository) CreateShift(ctx context.Context, s *shiftDatamodel.Shift) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *ShiftRepository) EmployeeExists(ctx context.Context, employeeID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&employeeDatamodel.Employee{}).
		Where("employee_id = ?", employeeID).
		Count(&count).Error
	return count > 0, err
}

func (r *ShiftRepository) DeactivateAssignments(ctx context.Context, employeeID string) error {
	return r.db.WithContext(ctx).Model(&shiftDatamodel.EmployeeShift{}).
		Where("employee_id = ? AND is_active = ?", employeeID, true).
		Update("is_active", false).Error
}

func (r *ShiftRepository) CreateAssignment(ctx context.Context, a *shiftDatamodel.EmployeeShift) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *ShiftRepository) Transaction(ctx context.Context, fn func(repo shift.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ShiftRepository{db: tx})
	})
}
