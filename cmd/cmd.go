package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/frahmantamala/attendance/internal"
	"github.com/frahmantamala/attendance/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Attendance",
	Long:  `Presence verification service: face matched, geofenced and shift windowed check-in and check-out.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*internal.Config, error) {
	// a missing .env is fine; the file only exists on developer machines
	_ = godotenv.Load()

	// Check if we're running in Docker environment
	if os.Getenv("APP_ENV") == "production" || os.Getenv("DOCKER_ENV") == "true" {
		// Load configuration from environment variables (Docker deployment)
		cfg := internal.LoadConfigFromEnv()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("error validating config from environment: %w", err)
		}
		initLogger(cfg)
		return cfg, nil
	}

	// Load configuration from file (development)
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix("ENV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setConfigDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	var cfg internal.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}

	initLogger(&cfg)
	return &cfg, nil
}

// setConfigDefaults registers the settings where zero is meaningful, so an
// explicit 0 in config.yml survives ApplyDefaults.
func setConfigDefaults(v *viper.Viper) {
	ad := internal.DefaultAttendanceConfig()
	v.SetDefault("attendance.office_latitude", ad.OfficeLatitude)
	v.SetDefault("attendance.office_longitude", ad.OfficeLongitude)
	v.SetDefault("attendance.radius_km", ad.RadiusKM)
	v.SetDefault("attendance.login_rate_limit", ad.LoginRateLimit)
	v.SetDefault("attendance.check_in_rate_limit", ad.CheckInRateLimit)
	v.SetDefault("attendance.check_out_rate_limit", ad.CheckOutRateLimit)
	v.SetDefault("face.similarity_threshold", internal.DefaultFaceConfig().SimilarityThreshold)
}

func initLogger(cfg *internal.Config) {
	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "directory containing config.yml")

	rootCmd.AddCommand(httpServerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(auditCmd)
}
