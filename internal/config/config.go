package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	WorkOrder WorkOrderConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	IntakeToken           string
	BootstrapAdminUser    string
	BootstrapAdminPass    string
}

// WorkOrderConfig tunes the lifecycle engine and archive sweeper.
type WorkOrderConfig struct {
	NumberPrefix         string
	CreateMaxAttempts    int
	SweepIntervalMinutes int
	SweepLockTTLSeconds  int
	DefaultArchiveHours  int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "workorder-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60*24*8),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			IntakeToken:           os.Getenv("INTAKE_API_TOKEN"),
			BootstrapAdminUser:    getEnv("BOOTSTRAP_ADMIN_USERNAME", "admin"),
			BootstrapAdminPass:    os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
		},
		WorkOrder: WorkOrderConfig{
			NumberPrefix:         getEnv("WORKORDER_NUMBER_PREFIX", "SZIT"),
			CreateMaxAttempts:    getEnvAsInt("WORKORDER_CREATE_MAX_ATTEMPTS", 5),
			SweepIntervalMinutes: getEnvAsInt("ARCHIVE_SWEEP_INTERVAL_MINUTES", 60),
			SweepLockTTLSeconds:  getEnvAsInt("ARCHIVE_SWEEP_LOCK_TTL_SECONDS", 300),
			DefaultArchiveHours:  getEnvAsInt("ARCHIVE_DEFAULT_HOURS", 72),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// maxArchiveHours mirrors domain.MaxArchiveHours; config does not import domain.
const maxArchiveHours = 24 * 365 * 10

func (c *Config) validate() error {
	if c.WorkOrder.NumberPrefix == "" {
		return fmt.Errorf("WORKORDER_NUMBER_PREFIX must not be empty")
	}
	if c.WorkOrder.CreateMaxAttempts <= 0 {
		return fmt.Errorf("invalid WORKORDER_CREATE_MAX_ATTEMPTS: %d", c.WorkOrder.CreateMaxAttempts)
	}
	if c.WorkOrder.DefaultArchiveHours < 0 || c.WorkOrder.DefaultArchiveHours > maxArchiveHours {
		return fmt.Errorf("invalid ARCHIVE_DEFAULT_HOURS: %d", c.WorkOrder.DefaultArchiveHours)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SweepInterval returns how often the archive sweeper runs.
func (w WorkOrderConfig) SweepInterval() time.Duration {
	if w.SweepIntervalMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(w.SweepIntervalMinutes) * time.Minute
}

// SweepLockTTL bounds how long one replica holds the sweep lease.
func (w WorkOrderConfig) SweepLockTTL() time.Duration {
	if w.SweepLockTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(w.SweepLockTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
