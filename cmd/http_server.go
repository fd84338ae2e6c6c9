package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/attendance/api"
	"github.com/frahmantamala/attendance/internal"
	"github.com/frahmantamala/attendance/internal/attendance"
	attendancePostgres "github.com/frahmantamala/attendance/internal/attendance/postgres"
	"github.com/frahmantamala/attendance/internal/audit"
	auditPostgres "github.com/frahmantamala/attendance/internal/audit/postgres"
	"github.com/frahmantamala/attendance/internal/auth"
	"github.com/frahmantamala/attendance/internal/blobstore"
	"github.com/frahmantamala/attendance/internal/core/events"
	"github.com/frahmantamala/attendance/internal/employee"
	employeePostgres "github.com/frahmantamala/attendance/internal/employee/postgres"
	"github.com/frahmantamala/attendance/internal/face"
	facePostgres "github.com/frahmantamala/attendance/internal/face/postgres"
	"github.com/frahmantamala/attendance/internal/geofence"
	"github.com/frahmantamala/attendance/internal/ratelimit"
	"github.com/frahmantamala/attendance/internal/shift"
	shiftPostgres "github.com/frahmantamala/attendance/internal/shift/postgres"
	"github.com/frahmantamala/attendance/internal/transport"
	"github.com/frahmantamala/attendance/internal/transport/rest"
	"github.com/frahmantamala/attendance/internal/transport/swagger"
	"github.com/frahmantamala/attendance/pkg/clock"
	"github.com/frahmantamala/attendance/pkg/logger"

	"github.com/go-chi/chi"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *gorm.DB
	EventBus *events.EventBus
	Router   *chi.Mux
	Logger   *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "driver", deps.Config.Database.Driver)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		if sqlDB, err := deps.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				deps.Logger.Error("Database close error", "error", err)
			}
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.LoggerWrapper()

	db, err := openDB(config.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	spec, err := loadOpenAPISpec(config.Server.OpenAPIPath)
	if err != nil {
		return nil, err
	}

	loc, err := config.Attendance.Location()
	if err != nil {
		return nil, fmt.Errorf("attendance timezone: %w", err)
	}
	clk := clock.Real()

	// audit trail: recorder publishes, the sqlx store subscribes
	eventBus := events.NewEventBus(log)
	auditSQL, err := auditDB(db, config.Database.Driver)
	if err != nil {
		return nil, err
	}
	audit.Register(eventBus, auditPostgres.NewAuditRepository(auditSQL))
	auditor := audit.NewRecorder(eventBus, clk, log)

	limiter := ratelimit.NewLimiter(db, clk, config.Attendance.RateLimitWindow, log)
	limits := ratelimit.Limits{
		Login:    config.Attendance.LoginRateLimit,
		CheckIn:  config.Attendance.CheckInRateLimit,
		CheckOut: config.Attendance.CheckOutRateLimit,
	}

	geo := geofence.NewValidator(geofence.Settings{
		OfficeLatitude:  config.Attendance.OfficeLatitude,
		OfficeLongitude: config.Attendance.OfficeLongitude,
		RadiusKM:        config.Attendance.RadiusKM,
	})

	shiftService := shift.NewService(shiftPostgres.NewShiftRepository(db), auditor, clk, loc, shift.Defaults{
		CheckIn:  shift.Window{Start: config.Attendance.CheckInStart, End: config.Attendance.CheckInEnd},
		CheckOut: shift.Window{Start: config.Attendance.CheckOutStart, End: config.Attendance.CheckOutEnd},
	}, log)

	faceService, err := newFaceService(config.Face, db, log)
	if err != nil {
		return nil, err
	}

	evidence, err := blobstore.NewOS(config.Storage.FaceImagesDir)
	if err != nil {
		return nil, fmt.Errorf("face image store: %w", err)
	}

	employeeRepo := employeePostgres.NewEmployeeRepository(db)

	attendanceService := attendance.NewService(attendance.Dependencies{
		Repo:     attendancePostgres.NewAttendanceRepository(db),
		Limiter:  limiter,
		Limits:   limits,
		Location: geo,
		Time:     shiftService,
		Faces:    faceService,
		Evidence: evidence,
		Auditor:  auditor,
		Clock:    clk,
		Timezone: loc,
	}, log)
	employeeService := employee.NewService(employeeRepo, faceService, auditor, config.Security.BCryptCost, log)
	tokens := auth.NewJWTTokenGenerator(config.Security.JWTSecret, config.Security.TokenTTL, clk)
	authService := auth.NewService(employeeRepo, tokens, limiter, limits.Login, auditor, log)

	baseHandler := transport.NewBaseHandler(log)
	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.Handlers{
		Auth:       auth.NewHandler(baseHandler, authService),
		Attendance: attendance.NewHandler(baseHandler, attendanceService, config.Face.MaxImageBytes),
		Employee:   employee.NewHandler(baseHandler, employeeService, config.Face.MaxImageBytes),
		Shift:      shift.NewHandler(baseHandler, shiftService),
	}, rest.RouterOptions{
		DB:             sqlDB,
		Driver:         config.Database.Driver,
		AllowedOrigins: config.Server.AllowedOrigins,
		RequestTimeout: config.Server.RequestTimeout,
		OpenAPISpec:    spec,
		Logger:         log,
	})

	return &Dependencies{
		Config:   config,
		DB:       db,
		EventBus: eventBus,
		Router:   router,
		Logger:   log,
	}, nil
}

func newFaceService(cfg internal.FaceConfig, db *gorm.DB, log *slog.Logger) (*face.Service, error) {
	detectorOpts := face.DefaultDetectorOptions()
	detectorOpts.MinSize = cfg.MinFaceSize
	detectorOpts.MaxSize = cfg.MaxImageDimension
	detectorOpts.MinQuality = float32(cfg.DetectionQuality)

	detector, err := face.LoadPigoDetector(afero.NewOsFs(), cfg.CascadePath, detectorOpts)
	if err != nil {
		return nil, fmt.Errorf("face detector: load cascade %q (download it from %s): %w", cfg.CascadePath, internal.CascadeSource, err)
	}

	return face.NewService(facePostgres.NewFaceRepository(db), detector, nil, face.Options{
		MaxImageBytes:     cfg.MaxImageBytes,
		MaxImageDimension: cfg.MaxImageDimension,
		MaxFaces:          cfg.MaxFaces,
		Threshold:         cfg.SimilarityThreshold,
	}, log), nil
}

// loadOpenAPISpec prefers the document on disk so it can be edited without a
// rebuild, and falls back to the embedded copy.
func loadOpenAPISpec(path string) ([]byte, error) {
	spec := api.OpenAPISpec
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			spec = data
		}
	}
	if _, err := swagger.LoadSpec(context.Background(), spec); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	return spec, nil
}
