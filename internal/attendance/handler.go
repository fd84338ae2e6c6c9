package attendance

import (
	"context"
	"net/http"

	errors "github.com/frahmantamala/attendance/internal"
	"github.com/frahmantamala/attendance/internal/transport"
	"github.com/frahmantamala/attendance/internal/transport/form"
)

type ServiceAPI interface {
	CheckIn(ctx context.Context, req Request) (*Result, error)
	CheckOut(ctx context.Context, req Request) (*Result, error)
	Status(ctx context.Context, employeeID string) (*DayStatus, error)
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

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "CheckIn", h.Service.CheckIn)
}

func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, "CheckOut", h.Service.CheckOut)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, op string, call func(context.Context, Request) (*Result, error)) {
	principal, ok := errors.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, errors.ErrInvalidToken)
		return
	}

	req, appErr := h.parseRequest(w, r)
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}
	req.EmployeeID = principal.EmployeeID
	req.IP = h.ClientIP(r)

	result, err := call(r.Context(), req)
	if err != nil {
		h.HandleServiceError(w, err, op)
		return
	}
	h.WriteJSON(w, http.StatusOK, NewCheckResponse(result))
}

func (h *Handler) parseRequest(w http.ResponseWriter, r *http.Request) (Request, *errors.AppError) {
	if appErr := form.Parse(w, r, h.MaxImageBytes); appErr != nil {
		return Request{}, appErr
	}
	lat, appErr := form.Float(r, "latitude")
	if appErr != nil {
		return Request{}, appErr
	}
	lon, appErr := form.Float(r, "longitude")
	if appErr != nil {
		return Request{}, appErr
	}
	image, appErr := form.Image(r, h.MaxImageBytes)
	if appErr != nil {
		return Request{}, appErr
	}
	return Request{Latitude: lat, Longitude: lon, Image: image}, nil
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := errors.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, errors.ErrInvalidToken)
		return
	}
	status, err := h.Service.Status(r.Context(), principal.EmployeeID)
	if err != nil {
		h.HandleServiceError(w, err, "GetStatus")
		return
	}
	h.WriteJSON(w, http.StatusOK, NewStatusResponse(status))
}
