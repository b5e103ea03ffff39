package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "Asia/Seoul", c.Timezone)
	assert.Equal(t, StorageMemory, c.Storage.Driver)
	assert.True(t, c.Reminders.Enabled)
	assert.Equal(t, 2*time.Minute, c.Reminders.Lookback)
	assert.Equal(t, "myrhythm/alarms", c.Notify.MQTT.TopicPrefix)
	require.NoError(t, c.Validate())
	assert.Equal(t, "Asia/Seoul", c.Location().String())
}

func TestNormalize_InfersDriver(t *testing.T) {
	c := &Config{Storage: StorageConfig{DSN: "postgres://x"}}
	c.Normalize()
	assert.Equal(t, StoragePostgres, c.Storage.Driver)

	c = &Config{Storage: StorageConfig{Driver: "SQLite"}}
	c.Normalize()
	assert.Equal(t, StorageSQLite, c.Storage.Driver)
	assert.Equal(t, "myrhythm.db", c.Storage.SQLitePath)
}

func TestValidate(t *testing.T) {
	c := Default()
	c.Timezone = "Mars/Base"
	assert.Error(t, c.Validate())

	c = Default()
	c.Reminders.Cron = "every minute"
	assert.Error(t, c.Validate())

	c.Reminders.Enabled = false
	assert.NoError(t, c.Validate())

	c = Default()
	c.Storage.Driver = StoragePostgres
	assert.Error(t, c.Validate())

	c = Default()
	c.Storage.Driver = "mongo"
	assert.Error(t, c.Validate())
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	err := applyEnv(c, envMap(map[string]string{
		"PORT":              "9090",
		"DB_DSN":            "postgres://db",
		"STORAGE_DRIVER":    "postgres",
		"REDIS_ADDR":        "localhost:6379",
		"JWT_SECRET":        "s3cret",
		"REMINDERS_ENABLED": "false",
		"TELEGRAM_CHATS":    "u1:100, u2:-200",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9090", c.Port)
	assert.Equal(t, ":9090", c.Addr())
	assert.Equal(t, StoragePostgres, c.Storage.Driver)
	assert.Equal(t, "localhost:6379", c.Commands.RedisAddr)
	assert.Equal(t, "s3cret", c.Auth.JWTSecret)
	assert.False(t, c.Reminders.Enabled)
	assert.Equal(t, map[string]int64{"u1": 100, "u2": -200}, c.Notify.Telegram.Chats)

	assert.Error(t, applyEnv(Default(), envMap(map[string]string{"TELEGRAM_CHATS": "u1"})))
	assert.Error(t, applyEnv(Default(), envMap(map[string]string{"REMINDERS_ENABLED": "maybe"})))
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "TIMEZONE", "STORAGE_DRIVER", "DB_DSN", "SQLITE_PATH", "REMINDERS_CRON", "REMINDERS_ENABLED", "TELEGRAM_CHATS"} {
		t.Setenv(k, "")
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
port: "7070"
timezone: UTC
storage:
  driver: sqlite
  sqlite_path: /tmp/x.db
reminders:
  enabled: true
  cron: "*/5 * * * *"
  lookback: 5m
notify:
  telegram:
    chats:
      u1: 42
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", c.Port)
	assert.Equal(t, "UTC", c.Timezone)
	assert.Equal(t, StorageSQLite, c.Storage.Driver)
	assert.Equal(t, "*/5 * * * *", c.Reminders.Cron)
	assert.Equal(t, 5*time.Minute, c.Reminders.Lookback)
	assert.Equal(t, int64(42), c.Notify.Telegram.Chats["u1"])
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, c.Port)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [1, 2"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
