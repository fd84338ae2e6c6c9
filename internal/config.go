package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Attendance    AttendanceConfig    `mapstructure:"attendance"`
	Face          FaceConfig          `mapstructure:"face"`
	Storage       StorageConfig       `mapstructure:"storage"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	OpenAPIPath       string        `mapstructure:"openapi_path"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"required,oneof=postgres sqlite"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type SecurityConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenTTL   time.Duration `mapstructure:"token_ttl" validate:"required,min=1m"`
	BCryptCost int           `mapstructure:"bcrypt_cost" validate:"required,min=10,max=15"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// AttendanceConfig is the snapshot handed to the geofence, shift and rate
// limit components at startup.
type AttendanceConfig struct {
	OfficeLatitude    float64       `mapstructure:"office_latitude"`
	OfficeLongitude   float64       `mapstructure:"office_longitude"`
	RadiusKM          float64       `mapstructure:"radius_km"`
	Timezone          string        `mapstructure:"timezone"`
	CheckInStart      string        `mapstructure:"check_in_start"`
	CheckInEnd        string        `mapstructure:"check_in_end"`
	CheckOutStart     string        `mapstructure:"check_out_start"`
	CheckOutEnd       string        `mapstructure:"check_out_end"`
	LoginRateLimit    int           `mapstructure:"login_rate_limit"`
	CheckInRateLimit  int           `mapstructure:"check_in_rate_limit"`
	CheckOutRateLimit int           `mapstructure:"check_out_rate_limit"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
}

type FaceConfig struct {
	CascadePath         string  `mapstructure:"cascade_path"`
	MaxImageBytes       int64   `mapstructure:"max_image_bytes"`
	MaxImageDimension   int     `mapstructure:"max_image_dimension"`
	MaxFaces            int     `mapstructure:"max_faces"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	MinFaceSize         int     `mapstructure:"min_face_size"`
	DetectionQuality    float64 `mapstructure:"detection_quality"`
}

type StorageConfig struct {
	FaceImagesDir string `mapstructure:"face_images_dir"`
}

// ----------------- DEFAULTS -----------------

// DefaultAttendanceConfig mirrors the settings shipped with the first
// deployment of the service.
func DefaultAttendanceConfig() AttendanceConfig {
	return AttendanceConfig{
		OfficeLatitude:    6.5991886,
		OfficeLongitude:   3.3489671,
		RadiusKM:          1.0,
		Timezone:          "Local",
		CheckInStart:      "07:00",
		CheckInEnd:        "10:00",
		CheckOutStart:     "16:00",
		CheckOutEnd:       "20:00",
		LoginRateLimit:    5,
		CheckInRateLimit:  3,
		CheckOutRateLimit: 3,
		RateLimitWindow:   time.Minute,
	}
}

// CascadeSource is where the pigo face finder cascade can be downloaded.
const CascadeSource = "https://github.com/esimov/pigo/raw/master/cascade/facefinder"

func DefaultFaceConfig() FaceConfig {
	return FaceConfig{
		CascadePath:         "data/facefinder",
		MaxImageBytes:       5 * 1024 * 1024,
		MaxImageDimension:   1048,
		MaxFaces:            10,
		SimilarityThreshold: 0.5,
		MinFaceSize:         40,
		DetectionQuality:    5.0,
	}
}

// ApplyDefaults fills zero values so a partial config file still yields a
// runnable service. Fields where zero is a legal setting (office coordinate,
// radius, rate limits, similarity threshold) are defaulted by the loader
// instead; see LoadConfigFromEnv and the viper defaults in cmd.
func (c *Config) ApplyDefaults() {
	ad := DefaultAttendanceConfig()
	a := &c.Attendance
	if a.Timezone == "" {
		a.Timezone = ad.Timezone
	}
	if a.CheckInStart == "" {
		a.CheckInStart = ad.CheckInStart
	}
	if a.CheckInEnd == "" {
		a.CheckInEnd = ad.CheckInEnd
	}
	if a.CheckOutStart == "" {
		a.CheckOutStart = ad.CheckOutStart
	}
	if a.CheckOutEnd == "" {
		a.CheckOutEnd = ad.CheckOutEnd
	}
	if a.RateLimitWindow == 0 {
		a.RateLimitWindow = ad.RateLimitWindow
	}

	fd := DefaultFaceConfig()
	f := &c.Face
	if f.CascadePath == "" {
		f.CascadePath = fd.CascadePath
	}
	if f.MaxImageBytes == 0 {
		f.MaxImageBytes = fd.MaxImageBytes
	}
	if f.MaxImageDimension == 0 {
		f.MaxImageDimension = fd.MaxImageDimension
	}
	if f.MaxFaces == 0 {
		f.MaxFaces = fd.MaxFaces
	}
	if f.MinFaceSize == 0 {
		f.MinFaceSize = fd.MinFaceSize
	}
	if f.DetectionQuality == 0 {
		f.DetectionQuality = fd.DetectionQuality
	}

	if c.Storage.FaceImagesDir == "" {
		c.Storage.FaceImagesDir = "face_images"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Security.TokenTTL == 0 {
		c.Security.TokenTTL = 7 * 24 * time.Hour
	}
	if c.Security.BCryptCost == 0 {
		c.Security.BCryptCost = 12
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
	if c.Server.OpenAPIPath == "" {
		c.Server.OpenAPIPath = "./api/openapi.yml"
	}
}

// LoadConfigFromEnv builds the config from plain environment variables, used
// for container deployments where no config file is mounted.
func LoadConfigFromEnv() *Config {
	ad := DefaultAttendanceConfig()
	fd := DefaultFaceConfig()
	cfg := &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("PORT", 8080),
			BaseURL:           getEnv("BASE_URL", "http://localhost:8080"),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("READ_TIMEOUT", 30*time.Second),
			IdleTimeout:       getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("WRITE_TIMEOUT", 30*time.Second),
			RequestTimeout:    getEnvAsDuration("REQUEST_TIMEOUT", 20*time.Second),
			OpenAPIPath:       getEnv("OPENAPI_PATH", "./api/openapi.yml"),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
			AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Security: SecurityConfig{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			TokenTTL:   getEnvAsDuration("TOKEN_TTL", 7*24*time.Hour),
			BCryptCost: getEnvAsInt("BCRYPT_COST", 12),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
		Attendance: AttendanceConfig{
			OfficeLatitude:    getEnvAsFloat("OFFICE_LATITUDE", ad.OfficeLatitude),
			OfficeLongitude:   getEnvAsFloat("OFFICE_LONGITUDE", ad.OfficeLongitude),
			RadiusKM:          getEnvAsFloat("OFFICE_RADIUS_KM", ad.RadiusKM),
			Timezone:          getEnv("ATTENDANCE_TIMEZONE", ""),
			CheckInStart:      getEnv("CHECK_IN_START_TIME", ""),
			CheckInEnd:        getEnv("CHECK_IN_END_TIME", ""),
			CheckOutStart:     getEnv("CHECK_OUT_START_TIME", ""),
			CheckOutEnd:       getEnv("CHECK_OUT_END_TIME", ""),
			LoginRateLimit:    getEnvAsInt("LOGIN_RATE_LIMIT", ad.LoginRateLimit),
			CheckInRateLimit:  getEnvAsInt("CHECKIN_RATE_LIMIT", ad.CheckInRateLimit),
			CheckOutRateLimit: getEnvAsInt("CHECKOUT_RATE_LIMIT", ad.CheckOutRateLimit),
			RateLimitWindow:   getEnvAsDuration("RATE_LIMIT_WINDOW", 0),
		},
		Face: FaceConfig{
			CascadePath:         getEnv("FACE_CASCADE_PATH", ""),
			MaxImageBytes:       int64(getEnvAsInt("MAX_IMAGE_FILE_SIZE", 0)),
			MaxImageDimension:   getEnvAsInt("MAX_IMAGE_SIZE", 0),
			MaxFaces:            getEnvAsInt("MAX_FACES_PER_IMAGE", 0),
			SimilarityThreshold: getEnvAsFloat("SIMILARITY_THRESHOLD", fd.SimilarityThreshold),
		},
		Storage: StorageConfig{
			FaceImagesDir: getEnv("FACE_IMAGES_DIR", ""),
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Attendance.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("attendance config: %v", err))
	}

	if err := c.Face.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("face config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Driver != "postgres" && c.Driver != "sqlite" {
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 characters")
	}
	if c.BCryptCost < 4 || c.BCryptCost > 31 {
		return fmt.Errorf("bcrypt_cost %d out of range", c.BCryptCost)
	}
	return nil
}

func (c *AttendanceConfig) Validate() error {
	if c.OfficeLatitude < -90 || c.OfficeLatitude > 90 {
		return errors.New("office_latitude must be within [-90, 90]")
	}
	if c.OfficeLongitude < -180 || c.OfficeLongitude > 180 {
		return errors.New("office_longitude must be within [-180, 180]")
	}
	if c.RadiusKM < 0 {
		return errors.New("radius_km must not be negative")
	}
	if c.LoginRateLimit < 0 || c.CheckInRateLimit < 0 || c.CheckOutRateLimit < 0 {
		return errors.New("rate limits must not be negative")
	}
	for name, v := range map[string]string{
		"check_in_start":  c.CheckInStart,
		"check_in_end":    c.CheckInEnd,
		"check_out_start": c.CheckOutStart,
		"check_out_end":   c.CheckOutEnd,
	} {
		if _, err := time.Parse("15:04", v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	if c.RateLimitWindow <= 0 {
		return errors.New("rate_limit_window must be positive")
	}
	return nil
}

// Location resolves the configured timezone used for calendar dates and
// time-of-day checks.
func (c *AttendanceConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func (c *FaceConfig) Validate() error {
	if c.MaxImageBytes <= 0 {
		return errors.New("max_image_bytes must be positive")
	}
	if c.MaxImageDimension <= 0 {
		return errors.New("max_image_dimension must be positive")
	}
	if c.MaxFaces <= 0 {
		return errors.New("max_faces must be positive")
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold >= 1 {
		return errors.New("similarity_threshold must be within [0, 1)")
	}
	return nil
}
