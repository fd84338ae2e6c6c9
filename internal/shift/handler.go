package shift

import (
	"context"
	"net/http"

	errors "github.com/frahmantamala/attendance/internal"
	"github.com/frahmantamala/attendance/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Assign(ctx context.Context, actorID, employeeID string, dto AssignShiftDTO, ip string) (*Assignment, error)
	Current(ctx context.Context, employeeID string) (*Shift, *Assignment, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) AssignShift(w http.ResponseWriter, r *http.Request) {
	principal, ok := errors.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, errors.ErrInvalidToken)
		return
	}

	var dto AssignShiftDTO
	if appErr := h.DecodeJSON(r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	employeeID := chi.URLParam(r, "employee_id")
	assignment, err := h.Service.Assign(r.Context(), principal.EmployeeID, employeeID, dto, h.ClientIP(r))
	if err != nil {
		h.HandleServiceError(w, err, "AssignShift")
		return
	}

	h.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "Shift assigned successfully",
		"assignment": assignment,
	})
}

func (h *Handler) GetEmployeeShift(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employee_id")
	sh, assignment, err := h.Service.Current(r.Context(), employeeID)
	if err != nil {
		h.HandleServiceError(w, err, "GetEmployeeShift")
		return
	}

	resp := CurrentShiftResponse{}
	if sh != nil {
		resp.Shift = NewEmployeeShiftResponse(sh, assignment)
	}
	h.WriteJSON(w, http.StatusOK, resp)
}
