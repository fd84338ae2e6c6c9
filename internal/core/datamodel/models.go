package datamodel

import (
	attendanceDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/attendance"
	auditDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/audit"
	employeeDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/employee"
	faceDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/face"
	ratelimitDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/ratelimit"
	shiftDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/shift"
)

// Models lists every persisted row type in migration order.
func Models() []interface{} {
	return []interface{}{
		&employeeDatamodel.Employee{},
		&faceDatamodel.FaceEmbedding{},
		&shiftDatamodel.Shift{},
		&shiftDatamodel.EmployeeShift{},
		&attendanceDatamodel.Attendance{},
		&ratelimitDatamodel.RateLimit{},
		&auditDatamodel.AuditLog{},
	}
}
