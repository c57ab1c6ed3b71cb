// Package config loads server settings from defaults, an optional TOML file
// named by LEDGER_CONFIG_FILE, and LEDGER_* environment variables, in that
// order of precedence (later wins).
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/alfredjeanlab/eventledger/internal/health"
	"github.com/alfredjeanlab/eventledger/internal/ledger"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres" // lib/pq
	DriverPGX      = "pgx"      // jackc/pgx stdlib
	DriverSQLite   = "sqlite3"  // mattn/go-sqlite3; DatabaseURL is a file path
)

type Config struct {
	DatabaseDriver string `toml:"database_driver"` // LEDGER_DATABASE_DRIVER (default "postgres")
	DatabaseURL    string `toml:"database_url"`    // LEDGER_DATABASE_URL (required)
	GRPCAddr       string `toml:"grpc_addr"`       // LEDGER_GRPC_ADDR (default ":9090")
	HTTPAddr       string `toml:"http_addr"`       // LEDGER_HTTP_ADDR (default ":8080")
	NATSURL        string `toml:"nats_url"`        // LEDGER_NATS_URL (optional, empty = no notifications)
	AuthToken      string `toml:"auth_token"`      // LEDGER_AUTH_TOKEN (optional, empty = auth disabled)

	// Claim protocol
	MaxAttempts    int           `toml:"max_attempts"`     // LEDGER_MAX_ATTEMPTS (default 3)
	MaxErrorLength int           `toml:"max_error_length"` // LEDGER_MAX_ERROR_LENGTH (default 1000)
	FailOpen       bool          `toml:"fail_open"`        // LEDGER_FAIL_OPEN (default true)
	ClaimLease     time.Duration `toml:"claim_lease"`      // LEDGER_CLAIM_LEASE (default 0 = disabled)
	RecentLimit    int           `toml:"recent_limit"`     // LEDGER_RECENT_LIMIT (default 20)

	// Health monitor
	HealthInterval     time.Duration `toml:"health_interval"`      // LEDGER_HEALTH_INTERVAL (default 5m; 0 = disabled)
	HealthWindow       time.Duration `toml:"health_window"`        // LEDGER_HEALTH_WINDOW (default 1h)
	HealthCriticalRate float64       `toml:"health_critical_rate"` // LEDGER_HEALTH_CRITICAL_RATE (default 0.2)

	// Snapshot settings
	SnapshotInterval   time.Duration `toml:"snapshot_interval"`    // LEDGER_SNAPSHOT_INTERVAL (default 1h; 0 = disabled)
	SnapshotS3Bucket   string        `toml:"snapshot_s3_bucket"`   // LEDGER_SNAPSHOT_S3_BUCKET (enables S3 when set)
	SnapshotS3Endpoint string        `toml:"snapshot_s3_endpoint"` // LEDGER_SNAPSHOT_S3_ENDPOINT (custom endpoint for MinIO)
	SnapshotS3Region   string        `toml:"snapshot_s3_region"`   // LEDGER_SNAPSHOT_S3_REGION (default "us-east-1")
	SnapshotS3Key      string        `toml:"snapshot_s3_key"`      // LEDGER_SNAPSHOT_S3_KEY (default "eventledger/snapshot.jsonl")
	SnapshotFile       string        `toml:"snapshot_file"`        // LEDGER_SNAPSHOT_FILE (enables a local file copy when set)

	// Logging
	LogLevel  string `toml:"log_level"`  // LEDGER_LOG_LEVEL (default "info")
	LogFormat string `toml:"log_format"` // LEDGER_LOG_FORMAT (default "text")
}

// Default returns the configuration used when nothing is overridden.
// DatabaseURL is left empty.
func Default() *Config {
	return &Config{
		DatabaseDriver:     DriverPostgres,
		GRPCAddr:           ":9090",
		HTTPAddr:           ":8080",
		MaxAttempts:        ledger.DefaultMaxAttempts,
		MaxErrorLength:     ledger.DefaultMaxErrorLength,
		FailOpen:           true,
		RecentLimit:        ledger.DefaultRecentLimit,
		HealthInterval:     5 * time.Minute,
		HealthWindow:       health.DefaultWindow,
		HealthCriticalRate: health.DefaultCriticalRate,
		SnapshotInterval:   time.Hour,
		SnapshotS3Region:   "us-east-1",
		SnapshotS3Key:      "eventledger/snapshot.jsonl",
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

func Load() (*Config, error) {
	c := Default()

	if path := os.Getenv("LEDGER_CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return nil, fmt.Errorf("LEDGER_CONFIG_FILE: %w", err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	envString("LEDGER_DATABASE_DRIVER", &c.DatabaseDriver)
	envString("LEDGER_DATABASE_URL", &c.DatabaseURL)
	envString("LEDGER_GRPC_ADDR", &c.GRPCAddr)
	envString("LEDGER_HTTP_ADDR", &c.HTTPAddr)
	envString("LEDGER_NATS_URL", &c.NATSURL)
	envString("LEDGER_AUTH_TOKEN", &c.AuthToken)
	envString("LEDGER_SNAPSHOT_S3_BUCKET", &c.SnapshotS3Bucket)
	envString("LEDGER_SNAPSHOT_S3_ENDPOINT", &c.SnapshotS3Endpoint)
	envString("LEDGER_SNAPSHOT_S3_REGION", &c.SnapshotS3Region)
	envString("LEDGER_SNAPSHOT_S3_KEY", &c.SnapshotS3Key)
	envString("LEDGER_SNAPSHOT_FILE", &c.SnapshotFile)
	envString("LEDGER_LOG_LEVEL", &c.LogLevel)
	envString("LEDGER_LOG_FORMAT", &c.LogFormat)

	for _, f := range []func() error{
		func() error { return envInt("LEDGER_MAX_ATTEMPTS", &c.MaxAttempts) },
		func() error { return envInt("LEDGER_MAX_ERROR_LENGTH", &c.MaxErrorLength) },
		func() error { return envInt("LEDGER_RECENT_LIMIT", &c.RecentLimit) },
		func() error { return envBool("LEDGER_FAIL_OPEN", &c.FailOpen) },
		func() error { return envDuration("LEDGER_CLAIM_LEASE", &c.ClaimLease) },
		func() error { return envDuration("LEDGER_HEALTH_INTERVAL", &c.HealthInterval) },
		func() error { return envDuration("LEDGER_HEALTH_WINDOW", &c.HealthWindow) },
		func() error { return envFloat("LEDGER_HEALTH_CRITICAL_RATE", &c.HealthCriticalRate) },
		func() error { return envDuration("LEDGER_SNAPSHOT_INTERVAL", &c.SnapshotInterval) },
	} {
		if err := f(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the merged configuration. Errors name the environment
// variable that controls the offending setting.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("LEDGER_DATABASE_URL is required")
	}
	switch c.DatabaseDriver {
	case DriverPostgres, DriverPGX, DriverSQLite:
	default:
		return fmt.Errorf("LEDGER_DATABASE_DRIVER: unsupported driver %q (want postgres, pgx or sqlite3)", c.DatabaseDriver)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("LEDGER_MAX_ATTEMPTS: must be at least 1, got %d", c.MaxAttempts)
	}
	if c.MaxErrorLength < 1 {
		return fmt.Errorf("LEDGER_MAX_ERROR_LENGTH: must be at least 1, got %d", c.MaxErrorLength)
	}
	if c.RecentLimit < 1 {
		return fmt.Errorf("LEDGER_RECENT_LIMIT: must be at least 1, got %d", c.RecentLimit)
	}
	if c.ClaimLease < 0 {
		return fmt.Errorf("LEDGER_CLAIM_LEASE: must not be negative, got %s", c.ClaimLease)
	}
	if c.HealthInterval < 0 {
		return fmt.Errorf("LEDGER_HEALTH_INTERVAL: must not be negative, got %s", c.HealthInterval)
	}
	if c.HealthWindow <= 0 {
		return fmt.Errorf("LEDGER_HEALTH_WINDOW: must be positive, got %s", c.HealthWindow)
	}
	if c.HealthCriticalRate <= 0 || c.HealthCriticalRate > 1 {
		return fmt.Errorf("LEDGER_HEALTH_CRITICAL_RATE: must be in (0, 1], got %g", c.HealthCriticalRate)
	}
	if c.SnapshotInterval < 0 {
		return fmt.Errorf("LEDGER_SNAPSHOT_INTERVAL: must not be negative, got %s", c.SnapshotInterval)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LEDGER_LOG_LEVEL: %w", err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LEDGER_LOG_FORMAT: unsupported format %q (want text or json)", c.LogFormat)
	}
	return nil
}

// LedgerPolicy returns the claim protocol settings.
func (c *Config) LedgerPolicy() ledger.Policy {
	return ledger.Policy{
		MaxAttempts:    c.MaxAttempts,
		MaxErrorLength: c.MaxErrorLength,
		FailOpen:       c.FailOpen,
		Lease:          c.ClaimLease,
		RecentLimit:    c.RecentLimit,
		ByTypeWindow:   ledger.DefaultByTypeWindow,
	}
}

// HealthConfig returns the monitor settings.
func (c *Config) HealthConfig() health.Config {
	return health.Config{Window: c.HealthWindow, CriticalRate: c.HealthCriticalRate}
}

// NewLogger builds a logger writing to w in the configured level and format.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown level %q", s)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}
