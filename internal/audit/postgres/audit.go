package postgres

import (
	"context"
	"strings"

	"github.com/frahmantamala/attendance/internal/audit"
	auditDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/audit"
	"github.com/jmoiron/sqlx"
)

type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) audit.Repository {
	return &AuditRepository{db: db}
}

const insertAuditQuery = `
	INSERT INTO audit_log (employee_id, action, details, ip_address, timestamp)
	VALUES (?, ?, ?, ?, ?)`

func (r *AuditRepository) Append(ctx context.Context, entry *auditDatamodel.AuditLog) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(insertAuditQuery),
		entry.EmployeeID, entry.Action, entry.Details, entry.IPAddress, entry.Timestamp)
	return err
}

func (r *AuditRepository) List(ctx context.Context, filter audit.Filter) ([]auditDatamodel.AuditLog, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.EmployeeID != "" {
		conds = append(conds, "employee_id = ?")
		args = append(args, filter.EmployeeID)
	}
	if filter.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.Since != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := "SELECT id, employee_id, action, details, ip_address, timestamp FROM audit_log"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, filter.Limit)

	var entries []auditDatamodel.AuditLog
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return entries, nil
}
