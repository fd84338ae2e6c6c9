package events

import (
	"time"

	"github.com/google/uuid"
)

const EventTypeAuditRecorded = "audit.recorded"

// Audit actions. The strings are persisted and must stay stable.
const (
	ActionLoginSuccess        = "LOGIN_SUCCESS"
	ActionLoginFailed         = "LOGIN_FAILED"
	ActionCheckInSuccess      = "CHECKIN_SUCCESS"
	ActionCheckInFailed       = "CHECKIN_FAILED"
	ActionCheckInError        = "CHECKIN_ERROR"
	ActionCheckOutSuccess     = "CHECKOUT_SUCCESS"
	ActionCheckOutFailed      = "CHECKOUT_FAILED"
	ActionCheckOutError       = "CHECKOUT_ERROR"
	ActionEmployeeRegistered  = "EMPLOYEE_REGISTERED"
	ActionEmployeeDeleted     = "EMPLOYEE_DELETED"
	ActionEmployeeActivated   = "EMPLOYEE_ACTIVATED"
	ActionEmployeeDeactivated = "EMPLOYEE_DEACTIVATED"
	ActionFaceEnrolled        = "FACE_ENROLLED"
	ActionShiftAssigned       = "SHIFT_ASSIGNED"
)

// AuditRecordedEvent carries one admission decision to the audit trail.
type AuditRecordedEvent struct {
	BaseEvent
	EmployeeID string `json:"employee_id"`
	Action     string `json:"action"`
	Details    string `json:"details"`
	IPAddress  string `json:"ip_address"`
}

func NewAuditRecordedEvent(employeeID, action, details, ip string, at time.Time) *AuditRecordedEvent {
	return &AuditRecordedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeAuditRecorded,
			Timestamp: at,
			Data: map[string]interface{}{
				"employee_id": employeeID,
				"action":      action,
				"details":     details,
				"ip_address":  ip,
			},
		},
		EmployeeID: employeeID,
		Action:     action,
		Details:    details,
		IPAddress:  ip,
	}
}
