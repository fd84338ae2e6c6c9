package employee

import (
	"context"
	"net/http"
	"strconv"

	errors "github.com/frahmantamala/attendance/internal"
	"github.com/frahmantamala/attendance/internal/face"
	"github.com/frahmantamala/attendance/internal/transport"
	"github.com/frahmantamala/attendance/internal/transport/form"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Register(ctx context.Context, actorID string, dto RegisterEmployeeDTO, image []byte, ip string) (*Employee, error)
	EnrollFace(ctx context.Context, actorID, employeeID string, image []byte, ip string) (*face.Enrollment, error)
	Delete(ctx context.Context, actorID, employeeID, ip string) (*Employee, error)
	SetActive(ctx context.Context, actorID, employeeID string, active bool, ip string) (*Employee, error)
	Recognize(ctx context.Context, image []byte) ([]face.Match, error)
}

type Handler struct {
	*transport.BaseHandler
	Service       ServiceAPI
	MaxImageBytes int64
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, maxImageBytes int64) *Handler {
	return &Handler{
		BaseHandler:   baseHandler,
		Service:       service,
		MaxImageBytes: maxImageBytes,
	}
}

// RegisterEmployee handles POST /admin/employees
func (h *Handler) RegisterEmployee(w http.ResponseWriter, r *http.Request) {
	principal, ok := errors.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, errors.ErrInvalidToken)
		return
	}
	if appErr := form.Parse(w, r, h.MaxImageBytes); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	dto := RegisterEmployeeDTO{
		EmployeeID: r.FormValue("employee_id"),
		Name:       r.FormValue("name"),
		Email:      r.FormValue("email"),
		Password:   r.FormValue("password"),
		Role:       r.FormValue("role"),
	}
	image, appErr := form.Image(r, h.MaxImageBytes)
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	emp, err := h.Service.Register(r.Context(), principal.EmployeeID, dto, image, h.ClientIP(r))
	if err != nil {
		h.HandleServiceError(w, err, "RegisterEmployee")
		return
	}
	h.WriteJSON(w, http.StatusCreated, RegisterResponse{
		Message:    "Employee registered successfully",
		EmployeeID: emp.EmployeeID,
	})
}

// EnrollFace handles POST /admin/employees/{employee_id}/faces
func (h *Handler) EnrollFace(w http.ResponseWriter, r *http.Request) {
	principal, ok := errors.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, errors.ErrInvalidToken)
		return
	}
	image, appErr := h.readImage(w, r)
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	employeeID := chi.URLParam(r, "employee_id")
	enrollment, err := h.Service.EnrollFace(r.Context(), principal.EmployeeID, employeeID, image, h.ClientIP(r))
	if err != nil {
		h.HandleServiceError(w, err, "EnrollFace")
		return
	}
	h.WriteJSON(w, http.StatusCreated, EnrollFaceResponse{
		Message:    "Face registered successfully",
		EmployeeID: employeeID,
		BBox:       enrollment.BBox,
	})
}

// DeleteEmployee handles DELETE /admin/employees/{employee_id}
func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	principal, ok := errors.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, errors.ErrInvalidToken)
		return
	}

	emp, err := h.Service.Delete(r.Context(), principal.EmployeeID, chi.URLParam(r, "employee_id"), h.ClientIP(r))
	if err != nil {
		h.HandleServiceError(w, err, "DeleteEmployee")
		return
	}
	h.WriteJSON(w, http.StatusOK, DeleteResponse{
		Message:    "Employee deleted successfully",
		EmployeeID: emp.EmployeeID,
		Name:       emp.Name,
	})
}

// UpdateStatus handles PATCH /admin/employees/{employee_id}/status. The flag
// comes from the is_active query parameter or a JSON body.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := errors.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, errors.ErrInvalidToken)
		return
	}
	active, appErr := h.readActiveFlag(r)
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	emp, err := h.Service.SetActive(r.Context(), principal.EmployeeID, chi.URLParam(r, "employee_id"), active, h.ClientIP(r))
	if err != nil {
		h.HandleServiceError(w, err, "UpdateStatus")
		return
	}
	verb := "deactivated"
	if emp.IsActive {
		verb = "activated"
	}
	h.WriteJSON(w, http.StatusOK, StatusResponse{
		Message:    "Employee " + verb + " successfully",
		EmployeeID: emp.EmployeeID,
		IsActive:   emp.IsActive,
	})
}

func (h *Handler) readActiveFlag(r *http.Request) (bool, *errors.AppError) {
	if raw := r.URL.Query().Get("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return false, errors.NewValidationFieldError("is_active", "is_active must be true or false", errors.ErrCodeValidationFailed)
		}
		return active, nil
	}
	var dto UpdateStatusDTO
	if appErr := h.DecodeJSON(r, &dto); appErr != nil {
		return false, appErr
	}
	if dto.IsActive == nil {
		return false, errors.NewValidationFieldError("is_active", "is_active is required", errors.ErrCodeValidationFailed)
	}
	return *dto.IsActive, nil
}

// RecognizeFace handles POST /admin/faces/recognize
func (h *Handler) RecognizeFace(w http.ResponseWriter, r *http.Request) {
	image, appErr := h.readImage(w, r)
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}
	matches, err := h.Service.Recognize(r.Context(), image)
	if err != nil {
		h.HandleServiceError(w, err, "RecognizeFace")
		return
	}
	h.WriteJSON(w, http.StatusOK, RecognizeResponse{Matches: matches})
}

func (h *Handler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, *errors.AppError) {
	if appErr := form.Parse(w, r, h.MaxImageBytes); appErr != nil {
		return nil, appErr
	}
	return form.Image(r, h.MaxImageBytes)
}
