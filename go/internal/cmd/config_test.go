package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ADMIN_TOKEN", "STORE_DRIVER", "EXAM_DURATION_MINUTES",
		"PRESENCE_SWEEP_INTERVAL", "PRESENCE_INACTIVITY_TIMEOUT", "BROADCAST_TICK_INTERVAL",
		"NATS_URL", "NATS_STREAM", "LOG_LEVEL", "CONFIG_PATH",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	config, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", config.Server.Port)
	assert.Equal(t, storeDriverPostgres, config.Store.Driver)
	assert.Equal(t, 60, config.Exam.DefaultDurationMinutes)
	assert.Equal(t, 30*time.Second, config.Presence.SweepInterval)
	assert.Equal(t, 5*time.Minute, config.Presence.InactivityTimeout)
	assert.Equal(t, time.Second, config.Broadcast.TickInterval)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
store:
  driver: memory
exam:
  default_duration_minutes: 45
presence:
  sweep_interval: 10s
  inactivity_timeout: 2m
`), 0o600))

	config, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", config.Server.Port)
	assert.Equal(t, storeDriverMemory, config.Store.Driver)
	assert.Equal(t, 45, config.Exam.DefaultDurationMinutes)
	assert.Equal(t, 10*time.Second, config.Presence.SweepInterval)
	assert.Equal(t, 2*time.Minute, config.Presence.InactivityTimeout)
	// untouched keys keep their defaults
	assert.Equal(t, time.Second, config.Broadcast.TickInterval)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := loadConfig(path)
	assert.Error(t, err)
}

func TestSetupConfig_EnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("PORT", "7000")
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("ADMIN_TOKEN", "s3cret")
	t.Setenv("PRESENCE_SWEEP_INTERVAL", "5s")
	t.Setenv("EXAM_DURATION_MINUTES", "not-a-number")

	config, err := setupConfig()
	require.NoError(t, err)

	assert.Equal(t, "7000", config.Server.Port)
	assert.Equal(t, storeDriverMemory, config.Store.Driver)
	assert.Equal(t, "s3cret", config.Server.AdminToken)
	assert.Equal(t, 5*time.Second, config.Presence.SweepInterval)
	assert.Equal(t, 60, config.Exam.DefaultDurationMinutes)
}

func TestSetupConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown driver", env: map[string]string{"STORE_DRIVER": "sqlite"}},
		{name: "zero duration", env: map[string]string{"EXAM_DURATION_MINUTES": "0"}},
		{name: "negative sweep", env: map[string]string{"PRESENCE_SWEEP_INTERVAL": "-1s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := setupConfig()
			assert.Error(t, err)
		})
	}
}
