package employee

import (
	"regexp"
	"strings"

	errors "github.com/frahmantamala/attendance/internal"
	"github.com/frahmantamala/attendance/internal/core/common/validation"
	"github.com/frahmantamala/attendance/internal/face"
)

var (
	emailPattern     = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	upperPattern     = regexp.MustCompile(`[A-Z]`)
	lowerPattern     = regexp.MustCompile(`[a-z]`)
	digitPattern     = regexp.MustCompile(`[0-9]`)
	employeeIDFormat = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// RegisterEmployeeDTO is the form payload of an admin registration. The
// enrollment image travels next to it in the same request.
type RegisterEmployeeDTO struct {
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
}

func (d *RegisterEmployeeDTO) Normalize() {
	d.EmployeeID = strings.TrimSpace(d.EmployeeID)
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	if d.Role == "" {
		d.Role = errors.RoleEmployee
	}
}

func (d RegisterEmployeeDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("employee_id", d.EmployeeID).Required().MinLength(3).MaxLength(50).
		Matches(employeeIDFormat, "Employee ID must contain only alphanumeric characters, hyphens, and underscores", errors.ErrCodeInvalidEmployee)
	v.Field("name", d.Name).Required().MinLength(2).MaxLength(100)
	v.Field("email", d.Email).Required().Matches(emailPattern, "email must be a valid address", errors.ErrCodeValidationFailed)
	v.Field("password", d.Password).Required().MinLength(8).
		Matches(upperPattern, "Password must contain at least one uppercase letter", errors.ErrCodeValidationFailed).
		Matches(lowerPattern, "Password must contain at least one lowercase letter", errors.ErrCodeValidationFailed).
		Matches(digitPattern, "Password must contain at least one digit", errors.ErrCodeValidationFailed)
	v.Field("role", d.Role).OneOf(errors.RoleAdmin, errors.RoleEmployee)
	return v.Validate()
}

type RegisterResponse struct {
	Message    string `json:"message"`
	EmployeeID string `json:"employee_id"`
}

type EnrollFaceResponse struct {
	Message    string    `json:"message"`
	EmployeeID string    `json:"employee_id"`
	BBox       face.BBox `json:"bbox"`
}

type DeleteResponse struct {
	Message    string `json:"message"`
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
}

// UpdateStatusDTO is the JSON alternative to the is_active query parameter.
type UpdateStatusDTO struct {
	IsActive *bool `json:"is_active"`
}

type StatusResponse struct {
	Message    string `json:"message"`
	EmployeeID string `json:"employee_id"`
	IsActive   bool   `json:"is_active"`
}

type RecognizeResponse struct {
	Matches []face.Match `json:"matches"`
}
