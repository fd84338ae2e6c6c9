package auth

import (
	"context"
	"log/slog"
	"strings"

	errors "github.com/frahmantamala/attendance/internal"
	employeeDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/employee"
	"github.com/frahmantamala/attendance/internal/core/events"
	"github.com/frahmantamala/attendance/internal/ratelimit"
	"golang.org/x/crypto/bcrypt"
)

type EmployeeRepository interface {
	GetByEmail(ctx context.Context, email string) (*employeeDatamodel.Employee, error)
}

type Auditor interface {
	Record(ctx context.Context, employeeID, action, details, ip string)
}

type Service struct {
	repo       EmployeeRepository
	tokens     TokenGenerator
	limiter    ratelimit.Checker
	loginLimit int
	auditor    Auditor
	logger     *slog.Logger
}

func NewService(repo EmployeeRepository, tokens TokenGenerator, limiter ratelimit.Checker, loginLimit int, auditor Auditor, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		tokens:     tokens,
		limiter:    limiter,
		loginLimit: loginLimit,
		auditor:    auditor,
		logger:     logger,
	}
}

// Login verifies the credentials and issues a bearer token. Attempts are
// budgeted per client IP before any lookup happens.
func (s *Service) Login(ctx context.Context, dto LoginDTO, ip string) (*LoginResponse, error) {
	if !s.limiter.Allow(ctx, ip, ratelimit.EndpointLogin, s.loginLimit) {
		return nil, errors.NewRateLimitedError("Too many login attempts. Please try again later.")
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(dto.Email))
	emp, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.Error("failed to load employee for login", "error", err)
		return nil, errors.NewInternalError("Login failed", err)
	}
	if emp == nil {
		s.auditor.Record(ctx, email, events.ActionLoginFailed, "User not found", ip)
		return nil, errors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(emp.PasswordHash), []byte(dto.Password)); err != nil {
		s.auditor.Record(ctx, emp.EmployeeID, events.ActionLoginFailed, "Invalid password", ip)
		return nil, errors.ErrInvalidCredentials
	}
	if !emp.IsActive {
		s.auditor.Record(ctx, emp.EmployeeID, events.ActionLoginFailed, "Account inactive", ip)
		return nil, errors.ErrEmployeeInactive
	}

	token, err := s.tokens.GenerateToken(emp.EmployeeID, emp.Role)
	if err != nil {
		s.logger.Error("failed to sign token", "employee_id", emp.EmployeeID, "error", err)
		return nil, errors.NewInternalError("Login failed", err)
	}

	s.auditor.Record(ctx, emp.EmployeeID, events.ActionLoginSuccess, "", ip)
	return &LoginResponse{
		Token: token,
		Employee: EmployeeInfo{
			ID:    emp.EmployeeID,
			Name:  emp.Name,
			Email: emp.Email,
			Role:  emp.Role,
		},
	}, nil
}

// Authenticate turns a bearer token into the caller identity.
func (s *Service) Authenticate(token string) (errors.Principal, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		if err == errTokenExpired {
			return errors.Principal{}, errors.ErrTokenExpired
		}
		return errors.Principal{}, errors.ErrInvalidToken
	}
	return errors.Principal{EmployeeID: claims.EmployeeID, Role: claims.Role}, nil
}
