package audit

import "time"

// AuditLog rows are written through sqlx; the gorm tags only serve schema
// creation for SQLite deployments.
type AuditLog struct {
	ID         int64     `db:"id" gorm:"primaryKey"`
	EmployeeID string    `db:"employee_id" gorm:"column:employee_id;size:50;index"`
	Action     string    `db:"action" gorm:"column:action;not null;index"`
	Details    string    `db:"details" gorm:"column:details"`
	IPAddress  string    `db:"ip_address" gorm:"column:ip_address"`
	Timestamp  time.Time `db:"timestamp" gorm:"column:timestamp;not null;index"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}
