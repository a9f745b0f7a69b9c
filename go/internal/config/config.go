// Package config loads the engine configuration from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port      string `yaml:"port"`
		JWTSecret string `yaml:"jwt_secret"` // empty trusts X-Actor-ID
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"`    // postgres or memory
		SeedFile string `yaml:"seed_file"` // memory only
	} `yaml:"storage"`

	Engine EngineConfig `yaml:"engine"`

	NATS struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
		Stream        string `yaml:"stream"`
	} `yaml:"nats"`

	WebSocket struct {
		Enabled         bool `yaml:"enabled"`
		ReadBufferSize  int  `yaml:"read_buffer_size"`
		WriteBufferSize int  `yaml:"write_buffer_size"`
	} `yaml:"websocket"`

	Audit struct {
		Driver string `yaml:"driver"` // postgres or log
	} `yaml:"audit"`
}

type EngineConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval"`
	ChessResumeBuffer time.Duration `yaml:"chess_resume_buffer"`
	AutoPickPoolSize  int           `yaml:"auto_pick_pool_size"`
	PositionPriority  []string      `yaml:"position_priority"`
	DerbyTurnTimeSec  int           `yaml:"derby_turn_time_sec"`
	Retry             RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	Factor      float64       `yaml:"factor"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Storage.Driver = "postgres"
	cfg.Engine = EngineConfig{
		PollInterval:      time.Second,
		ChessResumeBuffer: 10 * time.Second,
		AutoPickPoolSize:  50,
		PositionPriority:  []string{"QB", "RB", "WR", "TE"},
		DerbyTurnTimeSec:  60,
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			Factor:      2,
		},
	}
	cfg.NATS.URL = "nats://localhost:4222"
	cfg.NATS.SubjectPrefix = "draftengine"
	cfg.NATS.Stream = "DRAFT_EVENTS"
	cfg.WebSocket.Enabled = true
	cfg.WebSocket.ReadBufferSize = 1024
	cfg.WebSocket.WriteBufferSize = 1024
	cfg.Audit.Driver = "postgres"
	return cfg
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.JWTSecret = getEnv("JWT_SECRET", c.Server.JWTSecret)
	c.Storage.Driver = getEnv("STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.SeedFile = getEnv("STORAGE_SEED_FILE", c.Storage.SeedFile)
	c.Audit.Driver = getEnv("AUDIT_DRIVER", c.Audit.Driver)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.NATS.SubjectPrefix)
	c.NATS.Enabled = getEnvAsBool("NATS_ENABLED", c.NATS.Enabled)
	c.Engine.PollInterval = getEnvAsDuration("ENGINE_POLL_INTERVAL", c.Engine.PollInterval)
	c.Engine.AutoPickPoolSize = getEnvAsInt("ENGINE_AUTO_PICK_POOL_SIZE", c.Engine.AutoPickPoolSize)
	if v := os.Getenv("ENGINE_POSITION_PRIORITY"); v != "" {
		c.Engine.PositionPriority = strings.Split(v, ",")
	}
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Audit.Driver {
	case "postgres", "log":
	default:
		return fmt.Errorf("unknown audit driver %q", c.Audit.Driver)
	}
	if c.Audit.Driver == "postgres" && c.Storage.Driver != "postgres" {
		return errors.New("postgres audit requires postgres storage")
	}
	if c.Engine.PollInterval <= 0 {
		return errors.New("engine.poll_interval must be positive")
	}
	if c.Engine.Retry.MaxAttempts < 1 {
		return errors.New("engine.retry.max_attempts must be at least 1")
	}
	if c.Engine.Retry.Factor < 1 {
		return errors.New("engine.retry.factor must be at least 1")
	}
	if c.Engine.DerbyTurnTimeSec <= 0 {
		return errors.New("engine.derby_turn_time_sec must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
