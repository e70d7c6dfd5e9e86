package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"sendloop/models"
)

var (
	DB        *gorm.DB
	AppConfig Config
)

type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type Config struct {
	Environment string `json:"environment"`
	ServerPort  string `json:"server_port"`
	AppBaseURL  string `json:"app_base_url"` // public base URL for tracking links

	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`

	Redis RedisConfig `json:"redis"`

	SentryDSN string `json:"-"`

	// Scheduler settings
	SchedulerIntervalSeconds int `json:"scheduler_interval_seconds"`

	// SequenceDelayUnit controls how SequenceStep.Delay is interpreted:
	// "days" (production semantics) or "hours" (shortened, for staging).
	// An explicit setting, not an environment-name branch.
	SequenceDelayUnit string `json:"sequence_delay_unit"`

	// Delivery worker settings
	WorkerConcurrency    int `json:"worker_concurrency"`
	WorkerRatePerSecond  int `json:"worker_rate_per_second"`
	WorkerSendTimeoutSec int `json:"worker_send_timeout_sec"`

	// Rate limiting for public tracking endpoints
	RateLimitTracking int `json:"rate_limit_tracking"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
}

func LoadConfig() error {
	AppConfig = Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  getEnv("SERVER_PORT", "5000"),
		AppBaseURL:  getEnv("APP_BASE_URL", "http://localhost:5000"),

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "sendloop"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},

		SentryDSN: getEnv("SENTRY_DSN", ""),

		SchedulerIntervalSeconds: getEnvAsInt("SCHEDULER_INTERVAL_SECONDS", 60),
		SequenceDelayUnit:        getEnv("SEQUENCE_DELAY_UNIT", "days"),

		WorkerConcurrency:    getEnvAsInt("WORKER_CONCURRENCY", 5),
		WorkerRatePerSecond:  getEnvAsInt("WORKER_RATE_PER_SECOND", 10),
		WorkerSendTimeoutSec: getEnvAsInt("WORKER_SEND_TIMEOUT_SEC", 30),

		RateLimitTracking: getEnvAsInt("RATE_LIMIT_TRACKING", 120),
	}

	// Validate required configurations
	if AppConfig.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if AppConfig.SequenceDelayUnit != "days" && AppConfig.SequenceDelayUnit != "hours" {
		return fmt.Errorf("SEQUENCE_DELAY_UNIT must be 'days' or 'hours', got %q", AppConfig.SequenceDelayUnit)
	}
	if AppConfig.SchedulerIntervalSeconds < 1 {
		return fmt.Errorf("SCHEDULER_INTERVAL_SECONDS must be at least 1")
	}
	if AppConfig.WorkerRatePerSecond < 1 {
		return fmt.Errorf("WORKER_RATE_PER_SECOND must be at least 1")
	}
	if AppConfig.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}

	logConfig()
	return nil
}

// SequenceDelayDuration returns the duration of one sequence delay unit.
func (c Config) SequenceDelayDuration() time.Duration {
	if c.SequenceDelayUnit == "hours" {
		return time.Hour
	}
	return 24 * time.Hour
}

func ConnectDB() error {
	log.Println("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	log.Println("Using connection string:", maskPassword(dsn))

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	log.Println("Successfully connected to the database")
	log.Println("Starting database migration...")
	if err := models.Migrate(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Println("Database migration completed")
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	log.Println("Loaded configuration:")
	log.Printf("Environment: %s", AppConfig.Environment)
	log.Printf("Server Port: %s", AppConfig.ServerPort)
	log.Printf("Database: %s@%s:%s/%s",
		AppConfig.DBUser,
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBName)
	log.Printf("Scheduler interval: %ds, delay unit: %s",
		AppConfig.SchedulerIntervalSeconds,
		AppConfig.SequenceDelayUnit)
}
