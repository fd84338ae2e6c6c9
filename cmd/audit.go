package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/frahmantamala/attendance/internal/audit"
	auditPostgres "github.com/frahmantamala/attendance/internal/audit/postgres"
	"github.com/frahmantamala/attendance/pkg/logger"

	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit trail",
}

var (
	auditEmployeeID string
	auditAction     string
	auditSince      time.Duration
	auditLimit      int
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		db, err := openDB(cfg.Database, logger.LoggerWrapper())
		if err != nil {
			return err
		}
		sqlxDB, err := auditDB(db, cfg.Database.Driver)
		if err != nil {
			return err
		}
		defer sqlxDB.Close()

		filter := audit.Filter{
			EmployeeID: auditEmployeeID,
			Action:     auditAction,
			Limit:      auditLimit,
		}
		if auditSince > 0 {
			since := time.Now().Add(-auditSince)
			filter.Since = &since
		}

		entries, err := audit.NewService(auditPostgres.NewAuditRepository(sqlxDB)).List(context.Background(), filter)
		if err != nil {
			return fmt.Errorf("list audit entries: %w", err)
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIMESTAMP\tEMPLOYEE\tACTION\tIP\tDETAILS")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp.Format(time.RFC3339), e.EmployeeID, e.Action, e.IPAddress, e.Details)
		}
		return tw.Flush()
	},
}

func init() {
	auditListCmd.Flags().StringVar(&auditEmployeeID, "employee", "", "only entries for this employee id or login email")
	auditListCmd.Flags().StringVar(&auditAction, "action", "", "only entries with this action, e.g. CHECKIN_FAILED")
	auditListCmd.Flags().DurationVar(&auditSince, "since", 0, "only entries newer than this, e.g. 24h")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", audit.DefaultListLimit, "maximum number of entries")

	auditCmd.AddCommand(auditListCmd)
}
