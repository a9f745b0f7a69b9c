package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Engine.PollInterval)
	assert.Equal(t, 3, cfg.Engine.Retry.MaxAttempts)
	assert.Equal(t, []string{"QB", "RB", "WR", "TE"}, cfg.Engine.PositionPriority)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
storage:
  driver: memory
audit:
  driver: log
engine:
  poll_interval: 500ms
  retry:
    max_attempts: 5
    base_delay: 2s
    factor: 3
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("PORT", "9090")
	t.Setenv("ENGINE_POSITION_PRIORITY", "RB,WR")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 500*time.Millisecond, cfg.Engine.PollInterval)
	assert.Equal(t, 5, cfg.Engine.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Engine.Retry.BaseDelay)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"RB", "WR"}, cfg.Engine.PositionPriority)
	// untouched keys keep their defaults
	assert.Equal(t, 50, cfg.Engine.AutoPickPoolSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown storage", func(c *Config) { c.Storage.Driver = "sqlite" }},
		{"postgres audit on memory storage", func(c *Config) { c.Storage.Driver = "memory" }},
		{"zero poll interval", func(c *Config) { c.Engine.PollInterval = 0 }},
		{"no attempts", func(c *Config) { c.Engine.Retry.MaxAttempts = 0 }},
		{"shrinking backoff", func(c *Config) { c.Engine.Retry.Factor = 0.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
