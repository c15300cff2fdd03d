package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load("config.example.yaml")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 4, cfg.WorkerPool.Size)
	assert.Equal(t, "swap.events", cfg.Broadcast.SubjectPrefix)
	require.NotNil(t, cfg.Subscription.Location)
	assert.Equal(t, "Asia/Kolkata", cfg.Subscription.Location.String())
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "database:\n  dsn: x\n"))
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, 256, cfg.WorkerPool.QueueSize)
	assert.Equal(t, 32, cfg.Broadcast.SessionBuffer)
	assert.Equal(t, "@every 5m", cfg.Subscription.SweepCron)
	assert.Equal(t, "UTC", cfg.Subscription.Location.String())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "file:env.db")
	t.Setenv("PORT", "9100")
	t.Setenv("NATS_URL", "nats://bus:4222")

	cfg, err := Load(writeConfig(t, "server:\n  port: 8000\n"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:env.db", cfg.Database.DSN)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "nats://bus:4222", cfg.Broadcast.NATSURL)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "subscription:\n  timezone: Mars/Olympus\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [not, a, map]\n"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.True(t, cfg.Subscription.SeedPlans)
	assert.NotNil(t, cfg.Subscription.Location)
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)

	cfg, err = LoadOrDefault(writeConfig(t, "server:\n  port: 9100\n"))
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)

	_, err = LoadOrDefault(writeConfig(t, "server: [not, a, map]\n"))
	assert.Error(t, err)
}
