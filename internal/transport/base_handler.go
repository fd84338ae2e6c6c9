package transport

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	errors "github.com/frahmantamala/attendance/internal"
	"github.com/frahmantamala/attendance/pkg/logger"
)

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
		if lg == nil {
			lg = slog.Default()
		}
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes an AppError-shaped response without a specific code.
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	errType := errors.ErrorTypeInternal
	switch {
	case status == http.StatusUnauthorized:
		errType = errors.ErrorTypeUnauthorized
	case status == http.StatusForbidden:
		errType = errors.ErrorTypeForbidden
	case status == http.StatusNotFound:
		errType = errors.ErrorTypeNotFound
	case status < 500:
		errType = errors.ErrorTypeValidation
	}
	h.WriteAppError(w, &errors.AppError{
		Type:       errType,
		Code:       errors.ErrorCode(strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))),
		Message:    message,
		StatusCode: status,
	})
}

func (h *BaseHandler) WriteAppError(w http.ResponseWriter, appErr *errors.AppError) {
	status, body := appErr.ToHTTPResponse()
	if status >= 500 {
		h.Logger.Error("http error", "status", status, "code", appErr.Code, "message", appErr.Message, "error", appErr.Cause)
	} else {
		h.Logger.Debug("http error", "status", status, "code", appErr.Code, "message", appErr.Message)
	}
	h.WriteJSON(w, status, body)
}

// HandleServiceError maps service errors onto responses. Anything that is not
// an AppError is reported as a generic 500 so internals never leak.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, err error, operation string) {
	if appErr, ok := errors.IsAppError(err); ok {
		h.WriteAppError(w, appErr)
		return
	}
	h.Logger.Error("unhandled service error", "operation", operation, "error", err)
	h.WriteAppError(w, errors.NewInternalError("Internal server error", err))
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields.
func (h *BaseHandler) DecodeJSON(r *http.Request, dst interface{}) *errors.AppError {
	if r.Body == nil {
		return errors.NewValidationError("Request body is required", errors.ErrCodeValidationFailed)
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return errors.NewValidationError("Request body is required", errors.ErrCodeValidationFailed)
		}
		return errors.NewValidationError("Invalid request body", errors.ErrCodeValidationFailed)
	}
	return nil
}

// ClientIP returns the address stored by the client IP middleware, falling
// back to the connection's remote address.
func (h *BaseHandler) ClientIP(r *http.Request) string {
	if ip := errors.ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return RemoteIP(r)
}

// RemoteIP strips the port from r.RemoteAddr.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return ""
	}

	return authHeader[7:]
}
