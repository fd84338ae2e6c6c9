package attendance

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/attendance/internal"
	"github.com/frahmantamala/attendance/internal/core/common/validation"
	attendanceDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/attendance"
	"github.com/frahmantamala/attendance/internal/core/events"
	"github.com/frahmantamala/attendance/internal/face"
	"github.com/frahmantamala/attendance/internal/ratelimit"
	"github.com/frahmantamala/attendance/internal/shift"
	"github.com/frahmantamala/attendance/pkg/clock"
	"github.com/frahmantamala/attendance/pkg/logger"
	"gorm.io/gorm"
)

type Repository interface {
	// FindByDate returns the non-deleted record for the date, or nil.
	FindByDate(ctx context.Context, employeeID, date string) (*attendanceDatamodel.Attendance, error)
	Create(ctx context.Context, rec *attendanceDatamodel.Attendance) error
	Update(ctx context.Context, rec *attendanceDatamodel.Attendance) error
	Transaction(ctx context.Context, fn func(repo Repository) error) error
}

type LocationValidator interface {
	Validate(latitude, longitude float64) (bool, string)
}

type TimeValidator interface {
	ValidateTime(ctx context.Context, employeeID string, action shift.Action) shift.Decision
}

type FaceVerifier interface {
	Verify(ctx context.Context, employeeID string, image []byte) (*face.Match, error)
}

type EvidenceStore interface {
	Save(employeeID, tag string, at time.Time, data []byte) (string, error)
	Delete(path string) error
}

type Auditor interface {
	Record(ctx context.Context, employeeID, action, details, ip string)
}

// Dependencies are the collaborators consulted on every transition.
type Dependencies struct {
	Repo     Repository
	Limiter  ratelimit.Checker
	Limits   ratelimit.Limits
	Location LocationValidator
	Time     TimeValidator
	Faces    FaceVerifier
	Evidence EvidenceStore
	Auditor  Auditor
	Clock    clock.Clock
	Timezone *time.Location
}

type Service struct {
	repo     Repository
	limiter  ratelimit.Checker
	limits   ratelimit.Limits
	location LocationValidator
	time     TimeValidator
	faces    FaceVerifier
	evidence EvidenceStore
	auditor  Auditor
	clock    clock.Clock
	tz       *time.Location
	locks    *keyedMutex
	logger   *slog.Logger
}

func NewService(deps Dependencies, logger *slog.Logger) *Service {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Timezone == nil {
		deps.Timezone = time.Local
	}
	return &Service{
		repo:     deps.Repo,
		limiter:  deps.Limiter,
		limits:   deps.Limits,
		location: deps.Location,
		time:     deps.Time,
		faces:    deps.Faces,
		evidence: deps.Evidence,
		auditor:  deps.Auditor,
		clock:    deps.Clock,
		tz:       deps.Timezone,
		locks:    newKeyedMutex(),
		logger:   logger,
	}
}

// transition describes the parts that differ between check-in and check-out.
type transition struct {
	action        shift.Action
	endpoint      string
	limit         int
	tag           string
	failedAction  string
	errorAction   string
	successAction string
	rateMessage   string
	errorMessage  string
	okMessage     string
	guard         func(rec *attendanceDatamodel.Attendance) *errors.AppError
	apply         func(rec *attendanceDatamodel.Attendance, req Request, confidence float64, path *string, now time.Time, date string) *attendanceDatamodel.Attendance
}

func (s *Service) CheckIn(ctx context.Context, req Request) (*Result, error) {
	return s.run(ctx, req, transition{
		action:        shift.ActionCheckIn,
		endpoint:      ratelimit.EndpointCheckIn,
		limit:         s.limits.CheckIn,
		tag:           tagCheckIn,
		failedAction:  events.ActionCheckInFailed,
		errorAction:   events.ActionCheckInError,
		successAction: events.ActionCheckInSuccess,
		rateMessage:   "Too many check-in attempts. Please try again later.",
		errorMessage:  "Check-in failed",
		okMessage:     "Checked in successfully",
		guard:         guardCheckIn,
		apply:         applyCheckIn,
	})
}

func (s *Service) CheckOut(ctx context.Context, req Request) (*Result, error) {
	return s.run(ctx, req, transition{
		action:        shift.ActionCheckOut,
		endpoint:      ratelimit.EndpointCheckOut,
		limit:         s.limits.CheckOut,
		tag:           tagCheckOut,
		failedAction:  events.ActionCheckOutFailed,
		errorAction:   events.ActionCheckOutError,
		successAction: events.ActionCheckOutSuccess,
		rateMessage:   "Too many check-out attempts. Please try again later.",
		errorMessage:  "Check-out failed",
		okMessage:     "Checked out successfully",
		guard:         guardCheckOut,
		apply:         applyCheckOut,
	})
}

func guardCheckIn(rec *attendanceDatamodel.Attendance) *errors.AppError {
	if StateOf(rec) != StateAbsent {
		return errors.NewConflictError("Already checked in today", errors.ErrCodeAlreadyCheckedIn)
	}
	return nil
}

func applyCheckIn(_ *attendanceDatamodel.Attendance, req Request, confidence float64, path *string, now time.Time, date string) *attendanceDatamodel.Attendance {
	lat, lon := req.Latitude, req.Longitude
	return &attendanceDatamodel.Attendance{
		EmployeeID:        req.EmployeeID,
		Date:              date,
		CheckInTime:       &now,
		CheckInLat:        &lat,
		CheckInLon:        &lon,
		CheckInImagePath:  path,
		CheckInConfidence: &confidence,
		Status:            string(StateCheckedIn),
	}
}

func guardCheckOut(rec *attendanceDatamodel.Attendance) *errors.AppError {
	if StateOf(rec) != StateCheckedIn {
		return errors.NewConflictError("No active check-in found for today", errors.ErrCodeNoActiveCheckIn)
	}
	return nil
}

func applyCheckOut(rec *attendanceDatamodel.Attendance, req Request, confidence float64, path *string, now time.Time, _ string) *attendanceDatamodel.Attendance {
	lat, lon := req.Latitude, req.Longitude
	rec.CheckOutTime = &now
	rec.CheckOutLat = &lat
	rec.CheckOutLon = &lon
	rec.CheckOutImagePath = path
	rec.CheckOutConfidence = &confidence
	rec.Status = string(StateCompleted)
	return rec
}

// run applies the admission chain: rate limit, geofence, time window, face
// match, then the state change in one transaction. The first failing stage
// aborts the attempt and nothing is written except the audit entry.
func (s *Service) run(ctx context.Context, req Request, t transition) (*Result, error) {
	log := logger.FromOr(ctx, s.logger).With("employee_id", req.EmployeeID, "action", t.action)

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if !s.limiter.Allow(ctx, req.EmployeeID, t.endpoint, t.limit) {
		s.auditor.Record(ctx, req.EmployeeID, t.failedAction, "Rate limit exceeded", req.IP)
		return nil, errors.NewRateLimitedError(t.rateMessage)
	}

	inside, locationMsg := s.location.Validate(req.Latitude, req.Longitude)
	if !inside {
		s.auditor.Record(ctx, req.EmployeeID, t.failedAction, "Invalid location: "+locationMsg, req.IP)
		return nil, errors.NewPolicyRejection(locationMsg, errors.ErrCodeOutsideGeofence)
	}

	decision := s.time.ValidateTime(ctx, req.EmployeeID, t.action)
	if !decision.Allowed {
		s.auditor.Record(ctx, req.EmployeeID, t.failedAction, "Invalid time: "+decision.Message, req.IP)
		code := errors.ErrCodeOutsideTimeWindow
		if decision.Reason == shift.ReasonNoShift {
			code = errors.ErrCodeNoShiftAssigned
		}
		return nil, errors.NewPolicyRejection(decision.Message, code)
	}

	match, err := s.faces.Verify(ctx, req.EmployeeID, req.Image)
	if err != nil {
		if appErr, ok := errors.IsAppError(err); ok && appErr.Type != errors.ErrorTypeInternal {
			s.auditor.Record(ctx, req.EmployeeID, t.failedAction, "Face verification: "+appErr.Message, req.IP)
			return nil, appErr
		}
		log.Error("face verification failed", "error", err)
		s.auditor.Record(ctx, req.EmployeeID, t.errorAction, err.Error(), req.IP)
		return nil, errors.NewInternalError(t.errorMessage, err)
	}

	now := s.clock.Now().In(s.tz)
	date := now.Format(time.DateOnly)

	unlock := s.locks.Lock(req.EmployeeID + "|" + date)
	defer unlock()

	var (
		saved     *attendanceDatamodel.Attendance
		imagePath string
	)
	err = s.repo.Transaction(ctx, func(tx Repository) error {
		current, err := tx.FindByDate(ctx, req.EmployeeID, date)
		if err != nil {
			return err
		}
		if appErr := t.guard(current); appErr != nil {
			return appErr
		}

		var path *string
		if p, err := s.evidence.Save(req.EmployeeID, t.tag, now, req.Image); err != nil {
			log.Error("failed to save evidence image", "error", err)
		} else {
			imagePath, path = p, &p
		}

		rec := t.apply(current, req, match.Confidence, path, now, date)
		if rec.ID == 0 {
			err = tx.Create(ctx, rec)
		} else {
			err = tx.Update(ctx, rec)
		}
		if err != nil {
			return err
		}
		saved = rec
		return nil
	})
	if err != nil {
		if imagePath != "" {
			if derr := s.evidence.Delete(imagePath); derr != nil {
				log.Warn("failed to remove orphaned evidence image", "path", imagePath, "error", derr)
			}
		}
		return nil, s.transitionError(ctx, req, t, err)
	}

	s.auditor.Record(ctx, req.EmployeeID, t.successAction, "Location: "+locationMsg, req.IP)
	log.Info("attendance transition committed", "date", date, "confidence", match.Confidence)

	return &Result{
		Message: t.okMessage,
		Time:    now,
		Location: Location{
			Latitude:   req.Latitude,
			Longitude:  req.Longitude,
			Validation: locationMsg,
		},
		Confidence: match.Confidence,
		Record:     saved,
	}, nil
}

func (s *Service) transitionError(ctx context.Context, req Request, t transition, err error) error {
	if appErr, ok := errors.IsAppError(err); ok {
		s.auditor.Record(ctx, req.EmployeeID, t.failedAction, appErr.Message, req.IP)
		return appErr
	}
	// the unique (employee, date) index caught a concurrent check-in
	if stderrors.Is(err, gorm.ErrDuplicatedKey) && t.action == shift.ActionCheckIn {
		conflict := errors.NewConflictError("Already checked in today", errors.ErrCodeAlreadyCheckedIn)
		s.auditor.Record(ctx, req.EmployeeID, t.failedAction, conflict.Message, req.IP)
		return conflict
	}
	logger.FromOr(ctx, s.logger).Error("attendance transition failed",
		"employee_id", req.EmployeeID, "action", t.action, "error", err)
	s.auditor.Record(ctx, req.EmployeeID, t.errorAction, err.Error(), req.IP)
	return errors.NewInternalError(t.errorMessage, err)
}

func validateRequest(req Request) *errors.AppError {
	if err := validation.ValidateEmployeeID(req.EmployeeID); err != nil {
		return err
	}
	if err := validation.ValidateCoordinates(req.Latitude, req.Longitude); err != nil {
		return err
	}
	if len(req.Image) == 0 {
		return errors.NewValidationError("No face image provided", errors.ErrCodeMissingImage)
	}
	return nil
}

// Status reports today's state for the employee.
func (s *Service) Status(ctx context.Context, employeeID string) (*DayStatus, error) {
	date := s.clock.Now().In(s.tz).Format(time.DateOnly)
	rec, err := s.repo.FindByDate(ctx, employeeID, date)
	if err != nil {
		s.logger.Error("failed to load attendance status", "employee_id", employeeID, "error", err)
		return nil, errors.NewInternalError("Failed to retrieve status", err)
	}
	status := &DayStatus{Date: date, State: StateOf(rec)}
	if rec != nil {
		status.CheckInTime = rec.CheckInTime
		status.CheckOutTime = rec.CheckOutTime
	}
	return status, nil
}
