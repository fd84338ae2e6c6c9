package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	auditDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/audit"
	"github.com/frahmantamala/attendance/internal/core/events"
	"github.com/frahmantamala/attendance/pkg/clock"
	"github.com/frahmantamala/attendance/pkg/logger"
)

// Repository is append-only; there is no update or delete path.
type Repository interface {
	Append(ctx context.Context, entry *auditDatamodel.AuditLog) error
	List(ctx context.Context, filter Filter) ([]auditDatamodel.AuditLog, error)
}

type Filter struct {
	EmployeeID string
	Action     string
	Since      *time.Time
	Limit      int
}

const DefaultListLimit = 100

// Recorder turns audit calls into events on the bus.
type Recorder struct {
	publisher events.Publisher
	clock     clock.Clock
	logger    *slog.Logger
}

func NewRecorder(publisher events.Publisher, clk clock.Clock, logger *slog.Logger) *Recorder {
	if clk == nil {
		clk = clock.Real()
	}
	return &Recorder{publisher: publisher, clock: clk, logger: logger}
}

// Record appends one entry. Failures are logged and never reach the caller.
func (r *Recorder) Record(ctx context.Context, employeeID, action, details, ip string) {
	event := events.NewAuditRecordedEvent(employeeID, action, details, ip, r.clock.Now())
	if err := r.publisher.PublishSync(ctx, event); err != nil {
		logger.FromOr(ctx, r.logger).Error("failed to record audit entry",
			"employee_id", employeeID, "action", action, "error", err)
		return
	}
	logger.FromOr(ctx, r.logger).Info("audit entry recorded", "action", action, "employee_id", employeeID)
}

// Register subscribes the audit store to recorded events.
func Register(bus *events.EventBus, repo Repository) {
	bus.Subscribe(events.EventTypeAuditRecorded, func(ctx context.Context, event events.Event) error {
		e, ok := event.(*events.AuditRecordedEvent)
		if !ok {
			return fmt.Errorf("unexpected event payload %T", event)
		}
		return repo.Append(ctx, &auditDatamodel.AuditLog{
			EmployeeID: e.EmployeeID,
			Action:     e.Action,
			Details:    e.Details,
			IPAddress:  e.IPAddress,
			Timestamp:  e.OccurredAt().UTC(),
		})
	})
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filter Filter) ([]auditDatamodel.AuditLog, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	return s.repo.List(ctx, filter)
}
