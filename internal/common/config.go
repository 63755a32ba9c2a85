package common

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/fichas/constants"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Extract  ExtractConfig
	Export   ExportConfig
	Server   ServerConfig
	LogLevel string
}

// DatabaseConfig holds run ledger configuration. An empty DSN disables the ledger.
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ExtractConfig holds segmentation and field extraction settings
type ExtractConfig struct {
	Workers                 int
	ResidentialRowThreshold int
	Mode                    string
	ProfilePath             string
	KeepUnmapped            bool
}

// ExportConfig holds tabular export settings
type ExportConfig struct {
	Format    string
	Delimiter string
	BOM       *bool
	OutputDir string
}

// ServerConfig holds daemon configuration
type ServerConfig struct {
	GRPCAddr     string
	MetricsAddr  string
	InboxDir     string
	OutboxDir    string
	Debounce     time.Duration
	QueueWorkers int
	QueueSize    int
}

// LoadConfig loads configuration from environment variables, reading a .env
// file first when one is present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Extract: ExtractConfig{
			Workers:                 getEnvAsInt("FICHAS_WORKERS", runtime.NumCPU()),
			ResidentialRowThreshold: getEnvAsInt("FICHAS_ROW_THRESHOLD", constants.DefaultResidentialRowThreshold),
			Mode:                    getEnv("FICHAS_MODE", string(constants.ModeAuto)),
			ProfilePath:             getEnv("FICHAS_PROFILE", ""),
			KeepUnmapped:            getEnvAsBool("FICHAS_KEEP_UNMAPPED", false),
		},
		Export: ExportConfig{
			Format:    getEnv("FICHAS_EXPORT_FORMAT", "xlsx"),
			Delimiter: getEnv("FICHAS_CSV_DELIMITER", ""),
			BOM:       getEnvAsOptionalBool("FICHAS_CSV_BOM"),
			OutputDir: getEnv("FICHAS_OUTPUT_DIR", "."),
		},
		Server: ServerConfig{
			GRPCAddr:     getEnv("GRPC_ADDR", ":8080"),
			MetricsAddr:  getEnv("METRICS_ADDR", ":9090"),
			InboxDir:     getEnv("FICHAS_INBOX", "./inbox"),
			OutboxDir:    getEnv("FICHAS_OUTBOX", "./outbox"),
			Debounce:     getEnvAsDuration("FICHAS_DEBOUNCE", 500*time.Millisecond),
			QueueWorkers: getEnvAsInt("FICHAS_QUEUE_WORKERS", 2),
			QueueSize:    getEnvAsInt("FICHAS_QUEUE_SIZE", 64),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if v := getEnvAsOptionalBool(key); v != nil {
		return *v
	}
	return defaultValue
}

func getEnvAsOptionalBool(key string) *bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return &b
		}
	}
	return nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("FICHAS_MODE", c.Extract.Mode, OneOf(constants.ModeStrings()...)).
		Field("FICHAS_WORKERS", c.Extract.Workers, Min(0)).
		Field("FICHAS_ROW_THRESHOLD", c.Extract.ResidentialRowThreshold, Min(0)).
		Field("FICHAS_EXPORT_FORMAT", c.Export.Format, OneOf("xlsx", "csv", "txt")).
		Field("FICHAS_CSV_DELIMITER", c.Export.Delimiter, MaxRunes(1)).
		Field("LOG_LEVEL", c.LogLevel, OneOf("debug", "info", "warn", "error"))
	if v.HasErrors() {
		return NewAppError(CodeConfig, v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

// ValidateServer additionally checks the daemon settings
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	v := NewValidator().
		Field("GRPC_ADDR", c.Server.GRPCAddr, Required).
		Field("FICHAS_INBOX", c.Server.InboxDir, Required).
		Field("FICHAS_OUTBOX", c.Server.OutboxDir, Required).
		Field("FICHAS_QUEUE_WORKERS", c.Server.QueueWorkers, Min(1))
	if v.HasErrors() {
		return NewAppError(CodeConfig, v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
