package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/Priority/internal/ahp"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Hermes   HermesConfig   `yaml:"hermes"`
	Engine   EngineConfig   `yaml:"engine"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port               int    `yaml:"port"`
	MetricsPort        int    `yaml:"metrics_port"`
	AdminToken         string `yaml:"admin_token"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	ShutdownTimeoutMs  int    `yaml:"shutdown_timeout_ms"`
}

// DatabaseConfig selects the store backend. Driver is "postgres" or
// "sqlite"; for sqlite URL is a file path.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	URL    string `yaml:"url"`
}

type HermesConfig struct {
	URL string `yaml:"url"`
}

type EngineConfig struct {
	ConsistencyThreshold float64 `yaml:"consistency_threshold"`
	Parallelism          int     `yaml:"parallelism"`
	CacheSize            int     `yaml:"cache_size"`
	BudgetMode           string  `yaml:"budget_mode"`
	BudgetStrategy       string  `yaml:"budget_strategy"`
	ExactItemLimit       int     `yaml:"exact_item_limit"`
	SweepSteps           int     `yaml:"sweep_steps"`
	MaxSweepSteps        int     `yaml:"max_sweep_steps"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutMs) * time.Millisecond
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               8700,
			MetricsPort:        8701,
			RateLimitPerMinute: 120,
			ShutdownTimeoutMs:  10000,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			URL:    "priority.db",
		},
		Hermes: HermesConfig{
			URL: "nats://localhost:4222",
		},
		Engine: EngineConfig{
			ConsistencyThreshold: 0.10,
			Parallelism:          4,
			CacheSize:            256,
			BudgetMode:           "binary",
			BudgetStrategy:       "greedy",
			ExactItemLimit:       200,
			SweepSteps:           20,
			MaxSweepSteps:        1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Engine.ConsistencyThreshold <= 0 {
		return fmt.Errorf("engine.consistency_threshold must be positive, got %v", c.Engine.ConsistencyThreshold)
	}
	if c.Engine.Parallelism < 1 {
		return fmt.Errorf("engine.parallelism must be at least 1, got %d", c.Engine.Parallelism)
	}
	if c.Engine.MaxSweepSteps < 1 || c.Engine.MaxSweepSteps > ahp.MaxSweepSteps {
		return fmt.Errorf("engine.max_sweep_steps must lie in [1, %d], got %d", ahp.MaxSweepSteps, c.Engine.MaxSweepSteps)
	}
	if c.Engine.SweepSteps < 1 || c.Engine.SweepSteps > c.Engine.MaxSweepSteps {
		return fmt.Errorf("engine.sweep_steps must lie in [1, %d], got %d", c.Engine.MaxSweepSteps, c.Engine.SweepSteps)
	}
	switch c.Engine.BudgetMode {
	case "binary", "continuous":
	default:
		return fmt.Errorf("engine.budget_mode must be binary or continuous, got %q", c.Engine.BudgetMode)
	}
	switch c.Engine.BudgetStrategy {
	case "greedy", "exact":
	default:
		return fmt.Errorf("engine.budget_strategy must be greedy or exact, got %q", c.Engine.BudgetStrategy)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PRIORITY_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("PRIORITY_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("PRIORITY_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("PRIORITY_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("PRIORITY_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("PRIORITY_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v, ok := os.LookupEnv("PRIORITY_HERMES_URL"); ok {
		cfg.Hermes.URL = v
	}
	if v := os.Getenv("PRIORITY_CONSISTENCY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Engine.ConsistencyThreshold = f
		}
	}
	if v := os.Getenv("PRIORITY_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.Parallelism = n
		}
	}
	if v := os.Getenv("PRIORITY_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.CacheSize = n
		}
	}
	if v := os.Getenv("PRIORITY_MAX_SWEEP_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MaxSweepSteps = n
		}
	}
	if v := os.Getenv("PRIORITY_BUDGET_STRATEGY"); v != "" {
		cfg.Engine.BudgetStrategy = v
	}
	if v := os.Getenv("PRIORITY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PRIORITY_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
