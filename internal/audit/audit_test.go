package audit_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/frahmantamala/attendance/internal/audit"
	auditPostgres "github.com/frahmantamala/attendance/internal/audit/postgres"
	auditDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/audit"
	"github.com/frahmantamala/attendance/internal/core/events"
	"github.com/frahmantamala/attendance/internal/testutil"
	"github.com/frahmantamala/attendance/pkg/clock"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestAudit(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Audit Suite")
}

type failingRepository struct{}

func (failingRepository) Append(context.Context, *auditDatamodel.AuditLog) error {
	return os.ErrClosed
}

func (failingRepository) List(context.Context, audit.Filter) ([]auditDatamodel.AuditLog, error) {
	return nil, os.ErrClosed
}

var _ = Describe("Audit trail", func() {
	var (
		ctx      context.Context
		repo     audit.Repository
		service  *audit.Service
		recorder *audit.Recorder
		clk      *clock.FakeClock
		slogger  *slog.Logger
	)

	BeforeEach(func() {
		ctx = context.Background()
		db, err := testutil.OpenSQLite()
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())

		slogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		repo = auditPostgres.NewAuditRepository(sqlx.NewDb(sqlDB, "sqlite3"))
		service = audit.NewService(repo)

		bus := events.NewEventBus(slogger)
		audit.Register(bus, repo)

		clk = clock.Fake(time.Date(2025, 1, 15, 7, 1, 0, 0, time.UTC))
		recorder = audit.NewRecorder(bus, clk, slogger)
	})

	It("persists recorded entries", func() {
		recorder.Record(ctx, "E1", events.ActionCheckInSuccess, "Location: Within office premises (0.00 km from office)", "10.0.0.7")

		entries, err := service.List(ctx, audit.Filter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].EmployeeID).To(Equal("E1"))
		Expect(entries[0].Action).To(Equal("CHECKIN_SUCCESS"))
		Expect(entries[0].IPAddress).To(Equal("10.0.0.7"))
		Expect(entries[0].Timestamp.Equal(clk.Now())).To(BeTrue())
	})

	It("filters by employee, action and time", func() {
		recorder.Record(ctx, "E1", events.ActionCheckInFailed, "Invalid time: Outside check-in hours (07:00 - 08:30)", "")
		clk.Advance(time.Hour)
		recorder.Record(ctx, "E1", events.ActionCheckInSuccess, "", "")
		recorder.Record(ctx, "E2", events.ActionCheckInSuccess, "", "")

		byEmployee, err := service.List(ctx, audit.Filter{EmployeeID: "E1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(byEmployee).To(HaveLen(2))
		Expect(byEmployee[0].Action).To(Equal("CHECKIN_SUCCESS"))

		byAction, err := service.List(ctx, audit.Filter{Action: events.ActionCheckInFailed})
		Expect(err).NotTo(HaveOccurred())
		Expect(byAction).To(HaveLen(1))

		since := clk.Now().Add(-time.Minute)
		recent, err := service.List(ctx, audit.Filter{Since: &since, Limit: 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(recent).To(HaveLen(1))
	})

	It("swallows storage failures", func() {
		bus := events.NewEventBus(slogger)
		audit.Register(bus, failingRepository{})
		broken := audit.NewRecorder(bus, clk, slogger)

		Expect(func() {
			broken.Record(ctx, "E1", events.ActionLoginFailed, "", "")
		}).NotTo(Panic())
	})
})
