package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.GetServerAddr())
	assert.Equal(t, "localhost:6379", cfg.GetRedisAddr())
	assert.Equal(t, time.Minute, cfg.Scheduler.ScanInterval)
	assert.Equal(t, time.Minute, cfg.Scheduler.PushTolerance)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.EmailTolerance)
	assert.Equal(t, 5*time.Second, cfg.Worker.PollInterval)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigFromEnv(t *testing.T) {
	os.Setenv("REMINDER_SCAN_INTERVAL", "2m")
	os.Setenv("REMINDER_PUSH_TOLERANCE", "90s")
	os.Setenv("DB_NAME", "reminders_test")
	defer func() {
		os.Unsetenv("REMINDER_SCAN_INTERVAL")
		os.Unsetenv("REMINDER_PUSH_TOLERANCE")
		os.Unsetenv("DB_NAME")
	}()

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.Scheduler.ScanInterval)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.PushTolerance)
	assert.Contains(t, cfg.GetDatabaseDSN(), "dbname=reminders_test")
}

func TestLoadConfigProductionGuards(t *testing.T) {
	os.Setenv("ENVIRONMENT", "production")
	os.Setenv("DB_PASSWORD", "secret")
	defer func() {
		os.Unsetenv("ENVIRONMENT")
		os.Unsetenv("DB_PASSWORD")
	}()

	_, err := LoadConfig()
	require.Error(t, err, "default JWT secret must be rejected in production")

	os.Setenv("JWT_SECRET", "real-secret")
	defer os.Unsetenv("JWT_SECRET")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestLoadConfigRejectsWideTolerance(t *testing.T) {
	os.Setenv("REMINDER_SCAN_INTERVAL", "1m")
	os.Setenv("REMINDER_PUSH_TOLERANCE", "10m")
	defer func() {
		os.Unsetenv("REMINDER_SCAN_INTERVAL")
		os.Unsetenv("REMINDER_PUSH_TOLERANCE")
	}()

	_, err := LoadConfig()
	assert.Error(t, err)
}
