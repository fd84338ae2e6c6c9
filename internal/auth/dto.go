package auth

import (
	"strings"

	errors "github.com/frahmantamala/attendance/internal"
	"github.com/frahmantamala/attendance/internal/core/common/validation"
)

type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (d LoginDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("email", strings.TrimSpace(d.Email)).Required()
	v.Field("password", d.Password).Required()
	return v.Validate()
}

type EmployeeInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type LoginResponse struct {
	Token    string       `json:"token"`
	Employee EmployeeInfo `json:"employee"`
}
