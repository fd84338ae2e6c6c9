package postgres

import (
	"context"
	stderrors "errors"

	attendanceDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/attendance"
	employeeDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/employee"
	faceDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/face"
	shiftDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/shift"
	"github.com/frahmantamala/attendance/internal/employee"
	"gorm.io/gorm"
)

type EmployeeRepository struct {
	db *gorm.DB
}

func NewEmployeeRepository(db *gorm.DB) employee.Repository {
	return &EmployeeRepository{db: db}
}

func (r *EmployeeRepository) GetByID(ctx context.Context, employeeID string) (*employeeDatamodel.Employee, error) {
	return r.first(ctx, "employee_id = ?", employeeID)
}

func (r *EmployeeRepository) GetByEmail(ctx context.Context, email string) (*employeeDatamodel.Employee, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *EmployeeRepository) first(ctx context.Context, query string, arg interface{}) (*employeeDatamodel.Employee, error) {
	var row employeeDatamodel.Employee
	err := r.db.WithContext(ctx).Where(query, arg).First(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *EmployeeRepository) Register(ctx context.Context, emp *employeeDatamodel.Employee, template *faceDatamodel.FaceEmbedding) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(emp).Error; err != nil {
			return err
		}
		return tx.Create(template).Error
	})
}

func (r *EmployeeRepository) SetActive(ctx context.Context, employeeID string, active bool) error {
	res := r.db.WithContext(ctx).
		Model(&employeeDatamodel.Employee{}).
		Where("employee_id = ?", employeeID).
		Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *EmployeeRepository) Remove(ctx context.Context, employeeID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&attendanceDatamodel.Attendance{}).
			Where("employee_id = ? AND status <> ?", employeeID, "deleted").
			Update("status", "deleted").Error; err != nil {
			return err
		}
		if err := tx.Where("employee_id = ?", employeeID).Delete(&faceDatamodel.FaceEmbedding{}).Error; err != nil {
			return err
		}
		if err := tx.Where("employee_id = ?", employeeID).Delete(&shiftDatamodel.EmployeeShift{}).Error; err != nil {
			return err
		}
		res := tx.Where("employee_id = ?", employeeID).Delete(&employeeDatamodel.Employee{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
