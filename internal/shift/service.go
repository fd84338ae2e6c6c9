package shift

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/attendance/internal"
	shiftDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/shift"
	"github.com/frahmantamala/attendance/internal/core/events"
	"github.com/frahmantamala/attendance/pkg/clock"
	"github.com/frahmantamala/attendance/pkg/logger"
	"gorm.io/gorm"
)

type Repository interface {
	ActiveAssignments(ctx context.Context, employeeID, day string) ([]AssignedShift, error)
	CurrentAssignment(ctx context.Context, employeeID string) (*AssignedShift, error)
	GetShiftByID(ctx context.Context, id int64) (*shiftDatamodel.Shift, error)
	GetShiftByName(ctx context.Context, name string) (*shiftDatamodel.Shift, error)
	CreateShift(ctx context.Context, s *shiftDatamodel.Shift) error
	EmployeeExists(ctx context.Context, employeeID string) (bool, error)
	DeactivateAssignments(ctx context.Context, employeeID string) error
	CreateAssignment(ctx context.Context, a *shiftDatamodel.EmployeeShift) error
	Transaction(ctx context.Context, fn func(repo Repository) error) error
}

// Auditor appends entries to the audit trail.
type Auditor interface {
	Record(ctx context.Context, employeeID, action, details, ip string)
}

// Defaults are the global windows applied when a check carries no employee.
type Defaults struct {
	CheckIn  Window
	CheckOut Window
}

func (d Defaults) For(action Action) Window {
	if action == ActionCheckOut {
		return d.CheckOut
	}
	return d.CheckIn
}

type Reason string

const (
	ReasonWithinWindow  Reason = "WITHIN_WINDOW"
	ReasonOutsideWindow Reason = "OUTSIDE_WINDOW"
	ReasonNoShift       Reason = "NO_SHIFT_ASSIGNED"
	ReasonBypassed      Reason = "BYPASSED"
)

// Decision is the outcome of a time-window check. Message is shown to the
// caller and audited verbatim.
type Decision struct {
	Allowed bool
	Reason  Reason
	Message string
}

const bypassedMessage = "Time validation bypassed"

type Service struct {
	repo     Repository
	auditor  Auditor
	clock    clock.Clock
	location *time.Location
	defaults Defaults
	logger   *slog.Logger
}

func NewService(repo Repository, auditor Auditor, clk clock.Clock, loc *time.Location, defaults Defaults, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		repo:     repo,
		auditor:  auditor,
		clock:    clk,
		location: loc,
		defaults: defaults,
		logger:   logger,
	}
}

func (s *Service) now() time.Time {
	return s.clock.Now().In(s.location)
}

// ResolveShift returns the shift the employee works today, or nil when no
// active assignment covers today's date and weekday.
func (s *Service) ResolveShift(ctx context.Context, employeeID string) (*Shift, error) {
	now := s.now()
	day := now.Format(time.DateOnly)

	rows, err := s.repo.ActiveAssignments(ctx, employeeID, day)
	if err != nil {
		return nil, fmt.Errorf("load active assignments: %w", err)
	}

	for i := range rows {
		assignment := AssignmentFromDataModel(&rows[i].Assignment)
		if !assignment.Covers(day) {
			continue
		}
		sh := FromDataModel(&rows[i].Shift)
		if sh.IsActive && sh.ActiveOn(now.Weekday()) {
			return sh, nil
		}
	}
	return nil, nil
}

// ResolveWindow returns the window that applies to the employee for action.
// ok is false when no shift resolves for today.
func (s *Service) ResolveWindow(ctx context.Context, employeeID string, action Action) (Window, bool, error) {
	sh, err := s.ResolveShift(ctx, employeeID)
	if err != nil {
		return Window{}, false, err
	}
	if sh == nil {
		return Window{}, false, nil
	}
	return sh.WindowFor(action), true, nil
}

// ValidateTime checks the current time against the employee's shift window.
// Without an employee the global defaults apply. Any internal failure lets
// the request through with a bypass reason.
func (s *Service) ValidateTime(ctx context.Context, employeeID string, action Action) Decision {
	log := logger.FromOr(ctx, s.logger)

	window := s.defaults.For(action)
	if employeeID != "" {
		resolved, ok, err := s.ResolveWindow(ctx, employeeID, action)
		if err != nil {
			log.Warn("time validation degraded, shift lookup failed",
				"employee_id", employeeID, "action", action, "error", err)
			return Decision{Allowed: true, Reason: ReasonBypassed, Message: bypassedMessage}
		}
		if !ok {
			return Decision{Allowed: false, Reason: ReasonNoShift, Message: "No shift assigned"}
		}
		window = resolved
	}

	inside, err := window.Contains(s.now())
	if err != nil {
		log.Warn("time validation degraded, bad window",
			"employee_id", employeeID, "action", action, "error", err)
		return Decision{Allowed: true, Reason: ReasonBypassed, Message: bypassedMessage}
	}
	if inside {
		return Decision{Allowed: true, Reason: ReasonWithinWindow, Message: fmt.Sprintf("Within %s hours", action)}
	}
	return Decision{
		Allowed: false,
		Reason:  ReasonOutsideWindow,
		Message: fmt.Sprintf("Outside %s hours (%s)", action, window),
	}
}

// Assign supersedes the employee's active assignment with a new one in a
// single transaction.
func (s *Service) Assign(ctx context.Context, actorID, employeeID string, dto AssignShiftDTO, ip string) (*Assignment, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	exists, err := s.repo.EmployeeExists(ctx, employeeID)
	if err != nil {
		s.logger.Error("failed to look up employee for shift assignment", "employee_id", employeeID, "error", err)
		return nil, errors.NewInternalError("Failed to assign shift", err)
	}
	if !exists {
		return nil, errors.NewNotFoundError("Employee not found", errors.ErrCodeEmployeeNotFound)
	}

	sh, err := s.repo.GetShiftByID(ctx, dto.ShiftID)
	if err != nil {
		s.logger.Error("failed to look up shift", "shift_id", dto.ShiftID, "error", err)
		return nil, errors.NewInternalError("Failed to assign shift", err)
	}
	if sh == nil || !sh.IsActive {
		return nil, errors.NewNotFoundError("Shift not found", errors.ErrCodeShiftNotFound)
	}

	row := &shiftDatamodel.EmployeeShift{
		EmployeeID:    employeeID,
		ShiftID:       dto.ShiftID,
		EffectiveFrom: dto.EffectiveFrom,
		IsActive:      true,
		CreatedBy:     actorID,
	}
	if dto.EffectiveTo != nil && *dto.EffectiveTo != "" {
		to := *dto.EffectiveTo
		row.EffectiveTo = &to
	}

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		if err := tx.DeactivateAssignments(ctx, employeeID); err != nil {
			return err
		}
		return tx.CreateAssignment(ctx, row)
	})
	if err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.NewConflictError("Shift assignment changed concurrently, please retry", errors.ErrCodeShiftConflict)
		}
		s.logger.Error("failed to assign shift", "employee_id", employeeID, "shift_id", dto.ShiftID, "error", err)
		return nil, errors.NewInternalError("Failed to assign shift", err)
	}

	s.auditor.Record(ctx, actorID, events.ActionShiftAssigned,
		fmt.Sprintf("Assigned shift %d to %s", dto.ShiftID, employeeID), ip)
	s.logger.Info("shift assigned", "employee_id", employeeID, "shift_id", dto.ShiftID, "actor", actorID)

	return AssignmentFromDataModel(row), nil
}

// Current returns the employee's active assignment and its shift, or nils.
func (s *Service) Current(ctx context.Context, employeeID string) (*Shift, *Assignment, error) {
	row, err := s.repo.CurrentAssignment(ctx, employeeID)
	if err != nil {
		s.logger.Error("failed to get employee shift", "employee_id", employeeID, "error", err)
		return nil, nil, errors.NewInternalError("Failed to retrieve shift", err)
	}
	if row == nil {
		return nil, nil, nil
	}
	return FromDataModel(&row.Shift), AssignmentFromDataModel(&row.Assignment), nil
}

// SeedDefaults inserts any catalogue shift missing by name and returns how
// many were created.
func (s *Service) SeedDefaults(ctx context.Context, shifts []Shift) (int, error) {
	created := 0
	for i := range shifts {
		existing, err := s.repo.GetShiftByName(ctx, shifts[i].Name)
		if err != nil {
			return created, fmt.Errorf("look up shift %q: %w", shifts[i].Name, err)
		}
		if existing != nil {
			continue
		}
		if err := s.repo.CreateShift(ctx, ToDataModel(&shifts[i])); err != nil {
			return created, fmt.Errorf("create shift %q: %w", shifts[i].Name, err)
		}
		created++
	}
	return created, nil
}
