package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// allEnvVars lists every variable Load reads; each test starts with them cleared.
var allEnvVars = []string{
	"LEDGER_CONFIG_FILE",
	"LEDGER_DATABASE_DRIVER", "LEDGER_DATABASE_URL", "LEDGER_GRPC_ADDR", "LEDGER_HTTP_ADDR",
	"LEDGER_NATS_URL", "LEDGER_AUTH_TOKEN",
	"LEDGER_MAX_ATTEMPTS", "LEDGER_MAX_ERROR_LENGTH", "LEDGER_FAIL_OPEN", "LEDGER_CLAIM_LEASE",
	"LEDGER_RECENT_LIMIT",
	"LEDGER_HEALTH_INTERVAL", "LEDGER_HEALTH_WINDOW", "LEDGER_HEALTH_CRITICAL_RATE",
	"LEDGER_SNAPSHOT_INTERVAL", "LEDGER_SNAPSHOT_S3_BUCKET", "LEDGER_SNAPSHOT_S3_ENDPOINT",
	"LEDGER_SNAPSHOT_S3_REGION", "LEDGER_SNAPSHOT_S3_KEY", "LEDGER_SNAPSHOT_FILE",
	"LEDGER_LOG_LEVEL", "LEDGER_LOG_FORMAT",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name         string
		env          map[string]string
		wantErr      string
		wantGRPCAddr string
		wantHTTPAddr string
		wantNATSURL  string
	}{
		{
			name:    "MissingDatabaseURL",
			env:     map[string]string{},
			wantErr: "LEDGER_DATABASE_URL",
		},
		{
			name:         "DefaultAddresses",
			env:          map[string]string{"LEDGER_DATABASE_URL": "postgres://localhost/ledger"},
			wantGRPCAddr: ":9090",
			wantHTTPAddr: ":8080",
		},
		{
			name: "CustomAddresses",
			env: map[string]string{
				"LEDGER_DATABASE_URL": "postgres://db:5432/ledger",
				"LEDGER_GRPC_ADDR":    ":5050",
				"LEDGER_HTTP_ADDR":    ":3000",
				"LEDGER_NATS_URL":     "nats://localhost:4222",
			},
			wantGRPCAddr: ":5050",
			wantHTTPAddr: ":3000",
			wantNATSURL:  "nats://localhost:4222",
		},
		{
			name: "BadDriver",
			env: map[string]string{
				"LEDGER_DATABASE_URL":    "x",
				"LEDGER_DATABASE_DRIVER": "mysql",
			},
			wantErr: "LEDGER_DATABASE_DRIVER",
		},
		{
			name: "BadMaxAttempts",
			env: map[string]string{
				"LEDGER_DATABASE_URL": "x",
				"LEDGER_MAX_ATTEMPTS": "three",
			},
			wantErr: "LEDGER_MAX_ATTEMPTS",
		},
		{
			name: "ZeroMaxAttempts",
			env: map[string]string{
				"LEDGER_DATABASE_URL": "x",
				"LEDGER_MAX_ATTEMPTS": "0",
			},
			wantErr: "LEDGER_MAX_ATTEMPTS",
		},
		{
			name: "BadFailOpen",
			env: map[string]string{
				"LEDGER_DATABASE_URL": "x",
				"LEDGER_FAIL_OPEN":    "maybe",
			},
			wantErr: "LEDGER_FAIL_OPEN",
		},
		{
			name: "NegativeLease",
			env: map[string]string{
				"LEDGER_DATABASE_URL": "x",
				"LEDGER_CLAIM_LEASE":  "-1m",
			},
			wantErr: "LEDGER_CLAIM_LEASE",
		},
		{
			name: "CriticalRateOutOfRange",
			env: map[string]string{
				"LEDGER_DATABASE_URL":         "x",
				"LEDGER_HEALTH_CRITICAL_RATE": "1.5",
			},
			wantErr: "LEDGER_HEALTH_CRITICAL_RATE",
		},
		{
			name: "BadLogLevel",
			env: map[string]string{
				"LEDGER_DATABASE_URL": "x",
				"LEDGER_LOG_LEVEL":    "loud",
			},
			wantErr: "LEDGER_LOG_LEVEL",
		},
		{
			name: "BadLogFormat",
			env: map[string]string{
				"LEDGER_DATABASE_URL": "x",
				"LEDGER_LOG_FORMAT":   "xml",
			},
			wantErr: "LEDGER_LOG_FORMAT",
		},
		{
			name: "MissingConfigFile",
			env: map[string]string{
				"LEDGER_DATABASE_URL": "x",
				"LEDGER_CONFIG_FILE":  "/nonexistent/ledger.toml",
			},
			wantErr: "LEDGER_CONFIG_FILE",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tc.wantErr != "" {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("error %q does not name %s", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.DatabaseURL != tc.env["LEDGER_DATABASE_URL"] {
				t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, tc.env["LEDGER_DATABASE_URL"])
			}
			if cfg.GRPCAddr != tc.wantGRPCAddr {
				t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, tc.wantGRPCAddr)
			}
			if cfg.HTTPAddr != tc.wantHTTPAddr {
				t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, tc.wantHTTPAddr)
			}
			if cfg.NATSURL != tc.wantNATSURL {
				t.Errorf("NATSURL = %q, want %q", cfg.NATSURL, tc.wantNATSURL)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("LEDGER_DATABASE_URL", "postgres://localhost/ledger")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := cfg.LedgerPolicy()
	if p.MaxAttempts != 3 || p.MaxErrorLength != 1000 || !p.FailOpen || p.Lease != 0 || p.RecentLimit != 20 {
		t.Errorf("unexpected default policy %+v", p)
	}
	if cfg.DatabaseDriver != DriverPostgres {
		t.Errorf("DatabaseDriver = %q, want postgres", cfg.DatabaseDriver)
	}
	if cfg.HealthInterval != 5*time.Minute || cfg.HealthWindow != time.Hour || cfg.HealthCriticalRate != 0.2 {
		t.Errorf("unexpected health defaults: %s %s %g", cfg.HealthInterval, cfg.HealthWindow, cfg.HealthCriticalRate)
	}
	if cfg.SnapshotInterval != time.Hour || cfg.SnapshotS3Region != "us-east-1" || cfg.SnapshotS3Key != "eventledger/snapshot.jsonl" {
		t.Errorf("unexpected snapshot defaults: %s %q %q", cfg.SnapshotInterval, cfg.SnapshotS3Region, cfg.SnapshotS3Key)
	}
	if cfg.SnapshotS3Bucket != "" || cfg.SnapshotFile != "" {
		t.Errorf("expected no snapshot destinations by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearAllEnv(t)
	for k, v := range map[string]string{
		"LEDGER_DATABASE_URL":         "/var/lib/ledger.db",
		"LEDGER_DATABASE_DRIVER":      "sqlite3",
		"LEDGER_MAX_ATTEMPTS":         "5",
		"LEDGER_MAX_ERROR_LENGTH":     "200",
		"LEDGER_FAIL_OPEN":            "false",
		"LEDGER_CLAIM_LEASE":          "10m",
		"LEDGER_RECENT_LIMIT":         "50",
		"LEDGER_HEALTH_INTERVAL":      "0",
		"LEDGER_HEALTH_WINDOW":        "30m",
		"LEDGER_HEALTH_CRITICAL_RATE": "0.5",
		"LEDGER_SNAPSHOT_INTERVAL":    "15m",
		"LEDGER_SNAPSHOT_S3_BUCKET":   "backups",
		"LEDGER_SNAPSHOT_S3_ENDPOINT": "http://minio:9000",
		"LEDGER_SNAPSHOT_FILE":        "/tmp/ledger.jsonl",
		"LEDGER_LOG_LEVEL":            "debug",
		"LEDGER_LOG_FORMAT":           "json",
	} {
		t.Setenv(k, v)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := cfg.LedgerPolicy()
	if p.MaxAttempts != 5 || p.MaxErrorLength != 200 || p.FailOpen || p.Lease != 10*time.Minute || p.RecentLimit != 50 {
		t.Errorf("unexpected policy %+v", p)
	}
	if cfg.DatabaseDriver != DriverSQLite {
		t.Errorf("DatabaseDriver = %q", cfg.DatabaseDriver)
	}
	hc := cfg.HealthConfig()
	if cfg.HealthInterval != 0 || hc.Window != 30*time.Minute || hc.CriticalRate != 0.5 {
		t.Errorf("unexpected health config %s %+v", cfg.HealthInterval, hc)
	}
	if cfg.SnapshotInterval != 15*time.Minute || cfg.SnapshotS3Bucket != "backups" ||
		cfg.SnapshotS3Endpoint != "http://minio:9000" || cfg.SnapshotFile != "/tmp/ledger.jsonl" {
		t.Errorf("unexpected snapshot config %+v", cfg)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	clearAllEnv(t)
	path := filepath.Join(t.TempDir(), "ledger.toml")
	content := `
database_url = "postgres://file/ledger"
http_addr = ":7070"
max_attempts = 4
fail_open = false
claim_lease = "2m"
health_window = "45m"
log_format = "json"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LEDGER_CONFIG_FILE", path)
	// Environment wins over the file.
	t.Setenv("LEDGER_HTTP_ADDR", ":6060")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://file/ledger" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.HTTPAddr != ":6060" {
		t.Errorf("HTTPAddr = %q, want env override", cfg.HTTPAddr)
	}
	if cfg.GRPCAddr != ":9090" {
		t.Errorf("GRPCAddr = %q, want default", cfg.GRPCAddr)
	}
	if cfg.MaxAttempts != 4 || cfg.FailOpen || cfg.ClaimLease != 2*time.Minute || cfg.HealthWindow != 45*time.Minute {
		t.Errorf("unexpected file values %+v", cfg)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q", cfg.LogFormat)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"
	logger := cfg.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "event_id", "evt_1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line logged at warn level: %s", out)
	}
	if !strings.Contains(out, `"event_id":"evt_1"`) {
		t.Errorf("expected JSON output, got %s", out)
	}
}
