package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/closure-watch/internal/scan"
	_ "github.com/odyssey-erp/closure-watch/testing"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		if prev, ok := os.LookupEnv(key); ok {
			require.NoError(t, os.Unsetenv(key))
			t.Cleanup(func() { _ = os.Setenv(key, prev) })
		}
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	unsetEnv(t, "LEDGER_API_TOKEN", "SCAN_THRESHOLD_DAYS", "SCAN_CRON", "LOG_FORMAT", "APP_ENV")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "https://api.s.unit.sh", cfg.LedgerAPIURL)
	assert.Equal(t, 30*time.Second, cfg.LedgerTimeout)
	assert.Equal(t, "0 14 * * *", cfg.ScanCron)
	assert.False(t, cfg.HasLedgerToken())
	assert.False(t, cfg.IsProduction())

	policy := cfg.ScanPolicy()
	assert.Equal(t, scan.DefaultPolicy(), policy)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("PG_DSN", "postgres://u:p@db:5432/cw")
	t.Setenv("SCAN_THRESHOLD_DAYS", "45")
	t.Setenv("SCAN_WORKERS", "8")
	t.Setenv("LEDGER_API_TOKEN", "secret-token")
	t.Setenv("LEDGER_RATE_LIMIT", "2.5")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.HasLedgerToken())
	assert.Equal(t, 45, cfg.ScanPolicy().ThresholdDays)
	assert.Equal(t, 8, cfg.ScanPolicy().Workers)

	opts := cfg.LedgerOptions(nil)
	assert.Equal(t, "secret-token", opts.Token)
	assert.Equal(t, 2.5, opts.RateLimit)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"driver":    {"STORE_DRIVER": "sqlite"},
		"threshold": {"SCAN_THRESHOLD_DAYS": "0"},
		"page size": {"SCAN_PAGE_SIZE": "5000"},
		"log":       {"LOG_FORMAT": "xml"},
		"webhook":   {"WEBHOOK_URL": "not a url"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("STORE_DRIVER", "memory")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config: invalid")
		})
	}
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	unsetEnv(t, "SCAN_FALLBACK_DAYS", "WEBHOOK_URL")
	t.Setenv("STORE_DRIVER", "memory")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SCAN_FALLBACK_DAYS=10\nWEBHOOK_URL=https://hooks.example.test/T000\n"), 0o600))
	t.Setenv("CLOSUREWATCH_ENV_FILE", path)
	t.Cleanup(func() {
		_ = os.Unsetenv("SCAN_FALLBACK_DAYS")
		_ = os.Unsetenv("WEBHOOK_URL")
	})

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.ScanFallbackDays)
	assert.Equal(t, "https://hooks.example.test/T000", cfg.WebhookURL)
}

func TestLoadConfigMissingDotEnvIsIgnored(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("CLOSUREWATCH_ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	_, err := LoadConfig()
	require.NoError(t, err)
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf).Info("hidden")
	assert.Empty(t, buf.String())

	newLogger(&Config{LogFormat: "json", LogLevel: "debug"}, &buf).Debug("visible")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))
	assert.Contains(t, buf.String(), `"msg":"visible"`)

	buf.Reset()
	newLogger(nil, &buf).Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}
