package auth

import (
	"context"
	"net/http"

	errors "github.com/frahmantamala/attendance/internal"
	"github.com/frahmantamala/attendance/internal/transport"
	"github.com/frahmantamala/attendance/pkg/logger"
)

type ServiceAPI interface {
	Login(ctx context.Context, dto LoginDTO, ip string) (*LoginResponse, error)
	Authenticate(token string) (errors.Principal, error)
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

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if appErr := h.DecodeJSON(r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	resp, err := h.Service.Login(r.Context(), dto, h.ClientIP(r))
	if err != nil {
		h.HandleServiceError(w, err, "Login")
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// AuthMiddleware requires a valid bearer token and stores the caller in the
// request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.WriteAppError(w, errors.NewUnauthorizedError("Missing authorization token", errors.ErrCodeInvalidToken))
			return
		}

		principal, err := h.Service.Authenticate(token)
		if err != nil {
			h.Logger.Debug("token rejected", "error", err)
			h.HandleServiceError(w, err, "AuthMiddleware")
			return
		}

		ctx := errors.ContextWithPrincipal(r.Context(), principal)
		ctx = logger.With(ctx, "employee_id", principal.EmployeeID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after AuthMiddleware.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := errors.PrincipalFromContext(r.Context())
		if !ok {
			h.WriteAppError(w, errors.ErrInvalidToken)
			return
		}
		if !principal.IsAdmin() {
			h.Logger.Warn("admin access denied", "employee_id", principal.EmployeeID)
			h.WriteAppError(w, errors.ErrAdminRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}
