package employee

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	errors "github.com/frahmantamala/attendance/internal"
	employeeDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/employee"
	faceDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/face"
	"github.com/frahmantamala/attendance/internal/core/events"
	"github.com/frahmantamala/attendance/internal/face"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Repository interface {
	// GetByID and GetByEmail return nil, nil when no row matches.
	GetByID(ctx context.Context, employeeID string) (*employeeDatamodel.Employee, error)
	GetByEmail(ctx context.Context, email string) (*employeeDatamodel.Employee, error)
	// Register stores the account and its first face template atomically.
	Register(ctx context.Context, emp *employeeDatamodel.Employee, template *faceDatamodel.FaceEmbedding) error
	// Remove soft-deletes attendance, drops templates and shift assignments
	// and deletes the account in one transaction.
	Remove(ctx context.Context, employeeID string) error
	// SetActive returns gorm.ErrRecordNotFound when no account matches.
	SetActive(ctx context.Context, employeeID string, active bool) error
}

type FaceService interface {
	Enroll(ctx context.Context, image []byte) (*face.Enrollment, error)
	RegisterFace(ctx context.Context, employeeID string, image []byte) (*face.Enrollment, error)
	Recognize(ctx context.Context, image []byte) ([]face.Match, error)
}

type Auditor interface {
	Record(ctx context.Context, employeeID, action, details, ip string)
}

type Service struct {
	repo       Repository
	faces      FaceService
	auditor    Auditor
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo Repository, faces FaceService, auditor Auditor, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:       repo,
		faces:      faces,
		auditor:    auditor,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Register creates an employee account from an admin request. The face is
// enrolled first so an account never exists without a template.
func (s *Service) Register(ctx context.Context, actorID string, dto RegisterEmployeeDTO, image []byte, ip string) (*Employee, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, errors.NewValidationError("No face image provided", errors.ErrCodeMissingImage)
	}

	enrollment, err := s.faces.Enroll(ctx, image)
	if err != nil {
		s.logger.Info("face enrollment rejected", "employee_id", dto.EmployeeID, "error", err)
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		return nil, errors.NewInternalError("Registration failed", fmt.Errorf("hash password: %w", err))
	}

	emp := &Employee{
		EmployeeID:   dto.EmployeeID,
		Name:         dto.Name,
		Email:        dto.Email,
		PasswordHash: string(hash),
		Role:         dto.Role,
		IsActive:     true,
	}
	row := ToDataModel(emp)
	if err := s.repo.Register(ctx, row, enrollment.ToDataModel(emp.EmployeeID)); err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.NewConflictError("Employee ID or email already exists", errors.ErrCodeEmployeeExists)
		}
		s.logger.Error("failed to register employee", "employee_id", emp.EmployeeID, "error", err)
		return nil, errors.NewInternalError("Registration failed", err)
	}

	s.auditor.Record(ctx, actorID, events.ActionEmployeeRegistered, "Registered "+emp.EmployeeID, ip)
	s.logger.Info("employee registered", "employee_id", emp.EmployeeID, "actor_id", actorID)
	return FromDataModel(row), nil
}

// EnrollFace adds another template for an existing employee.
func (s *Service) EnrollFace(ctx context.Context, actorID, employeeID string, image []byte, ip string) (*face.Enrollment, error) {
	if len(image) == 0 {
		return nil, errors.NewValidationError("No face image provided", errors.ErrCodeMissingImage)
	}
	if _, err := s.mustGet(ctx, employeeID); err != nil {
		return nil, err
	}

	enrollment, err := s.faces.RegisterFace(ctx, employeeID, image)
	if err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, actorID, events.ActionFaceEnrolled, "Enrolled face for "+employeeID, ip)
	return enrollment, nil
}

// Delete removes an employee. Attendance history is kept with status
// deleted; evidence images stay on disk.
func (s *Service) Delete(ctx context.Context, actorID, employeeID, ip string) (*Employee, error) {
	if employeeID == actorID {
		return nil, errors.NewValidationError("Cannot delete your own account", errors.ErrCodeSelfDeletion)
	}
	emp, err := s.mustGet(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Remove(ctx, employeeID); err != nil {
		s.logger.Error("failed to delete employee", "employee_id", employeeID, "error", err)
		return nil, errors.NewInternalError("Failed to delete employee", err)
	}

	s.auditor.Record(ctx, actorID, events.ActionEmployeeDeleted,
		fmt.Sprintf("Deleted employee: %s (%s)", emp.EmployeeID, emp.Name), ip)
	s.logger.Info("employee deleted", "employee_id", employeeID, "actor_id", actorID)
	return emp, nil
}

// SetActive switches an account on or off. Inactive employees cannot log in
// and their templates are left out of recognition.
func (s *Service) SetActive(ctx context.Context, actorID, employeeID string, active bool, ip string) (*Employee, error) {
	if err := s.repo.SetActive(ctx, employeeID, active); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFoundError("Employee not found", errors.ErrCodeEmployeeNotFound)
		}
		s.logger.Error("failed to update employee status", "employee_id", employeeID, "error", err)
		return nil, errors.NewInternalError("Failed to update employee status", err)
	}

	action := events.ActionEmployeeDeactivated
	if active {
		action = events.ActionEmployeeActivated
	}
	s.auditor.Record(ctx, actorID, action, "Employee: "+employeeID, ip)
	s.logger.Info("employee status updated", "employee_id", employeeID, "is_active", active, "actor_id", actorID)
	return s.mustGet(ctx, employeeID)
}

func (s *Service) Recognize(ctx context.Context, image []byte) ([]face.Match, error) {
	if len(image) == 0 {
		return nil, errors.NewValidationError("No face image provided", errors.ErrCodeMissingImage)
	}
	return s.faces.Recognize(ctx, image)
}

func (s *Service) mustGet(ctx context.Context, employeeID string) (*Employee, error) {
	row, err := s.repo.GetByID(ctx, employeeID)
	if err != nil {
		s.logger.Error("failed to load employee", "employee_id", employeeID, "error", err)
		return nil, errors.NewInternalError("Failed to load employee", err)
	}
	if row == nil {
		return nil, errors.NewNotFoundError("Employee not found", errors.ErrCodeEmployeeNotFound)
	}
	return FromDataModel(row), nil
}
