package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 8760*time.Hour, cfg.Recurrence.Horizon)
	assert.Equal(t, 1000, cfg.Recurrence.MaxOccurrences)
	assert.True(t, cfg.Recurrence.Cache.Enabled)
	assert.True(t, cfg.Sweep.Enabled)
	assert.Equal(t, "@every 12h", cfg.Sweep.Schedule)
	assert.Equal(t, 720*time.Hour, cfg.Sweep.Retention)
	assert.Equal(t, "info", cfg.Log.Level)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agenda.yaml")
	content := `
listen: ":9090"
timezone: America/Sao_Paulo
storage:
  driver: sqlite
  path: /var/lib/agenda/agenda.db
recurrence:
  horizon: 720h
  cache:
    enabled: false
sweep:
  schedule: "0 3 * * *"
  retention: 168h
log:
  level: debug
  console: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("AGENDA_LISTEN", ":7070")
	t.Setenv("AGENDA_SWEEP_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Listen)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/agenda/agenda.db", cfg.Storage.Path)
	assert.Equal(t, 720*time.Hour, cfg.Recurrence.Horizon)
	assert.False(t, cfg.Recurrence.Cache.Enabled)
	assert.False(t, cfg.Sweep.Enabled)
	assert.Equal(t, "0 3 * * *", cfg.Sweep.Schedule)
	assert.Equal(t, 168*time.Hour, cfg.Sweep.Retention)
	assert.True(t, cfg.Log.Console)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Sao_Paulo", loc.String())

	ec := cfg.EngineConfig()
	assert.False(t, ec.CacheEnabled)
	assert.Equal(t, 720*time.Hour, ec.Horizon)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Timezone:   "UTC",
			Storage:    StorageConfig{Driver: "memory"},
			Recurrence: RecurrenceConfig{Horizon: time.Hour},
			Sweep:      SweepConfig{Retention: time.Hour},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "postgres" }, true},
		{"sqlite without path", func(c *Config) { c.Storage.Driver = "sqlite" }, true},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, true},
		{"zero horizon", func(c *Config) { c.Recurrence.Horizon = 0 }, true},
		{"zero retention", func(c *Config) { c.Sweep.Retention = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
