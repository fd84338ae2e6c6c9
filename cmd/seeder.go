package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/frahmantamala/attendance/internal/core/datamodel/employee"
	"github.com/frahmantamala/attendance/internal/shift"
	shiftPostgres "github.com/frahmantamala/attendance/internal/shift/postgres"
	"github.com/frahmantamala/attendance/pkg/clock"
	"github.com/frahmantamala/attendance/pkg/logger"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	adminEmployeeID string
	adminName       string
	adminEmail      string
	adminPassword   string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with the admin account and default shifts",
	Long:  `Create the first admin account and the default shift catalogue. Existing rows are left untouched.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		lg := logger.LoggerWrapper()

		db, err := openDB(cfg.Database, lg)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		if err := seedAdmin(ctx, db, cfg.Security.BCryptCost); err != nil {
			log.Fatalf("failed to seed admin: %v", err)
		}

		catalogue, err := shift.DefaultShifts()
		if err != nil {
			log.Fatalf("failed to read default shifts: %v", err)
		}
		loc, _ := cfg.Attendance.Location()
		shifts := shift.NewService(shiftPostgres.NewShiftRepository(db), noopAuditor{}, clock.Real(), loc, shift.Defaults{}, lg)
		created, err := shifts.SeedDefaults(ctx, catalogue)
		if err != nil {
			log.Fatalf("failed to seed shifts: %v", err)
		}
		fmt.Printf("Seeded %d default shifts\n", created)
	},
}

func seedAdmin(ctx context.Context, db *gorm.DB, cost int) error {
	var count int64
	if err := db.WithContext(ctx).Model(&employee.Employee{}).
		Where("employee_id = ? OR email = ?", adminEmployeeID, adminEmail).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		fmt.Println("admin account already exists:", adminEmail)
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), cost)
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Create(&employee.Employee{
		EmployeeID:   adminEmployeeID,
		Name:         adminName,
		Email:        adminEmail,
		PasswordHash: string(hash),
		Role:         "admin",
		IsActive:     true,
	}).Error; err != nil {
		return err
	}
	fmt.Println("Seeded admin account:", adminEmail)
	return nil
}

// noopAuditor satisfies shift.Auditor; seeding never assigns shifts.
type noopAuditor struct{}

func (noopAuditor) Record(context.Context, string, string, string, string) {}

var _ shift.Auditor = noopAuditor{}

func init() {
	seedCmd.Flags().StringVar(&adminEmployeeID, "admin-id", "ADMIN001", "employee id of the admin account")
	seedCmd.Flags().StringVar(&adminName, "admin-name", "Administrator", "display name of the admin account")
	seedCmd.Flags().StringVar(&adminEmail, "admin-email", "admin@company.com", "email of the admin account")
	seedCmd.Flags().StringVar(&adminPassword, "admin-password", "Admin123!", "initial password of the admin account")
}
