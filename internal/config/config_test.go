package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envVars = []string{
	"PRIORITY_PORT", "PRIORITY_METRICS_PORT", "PRIORITY_ADMIN_TOKEN", "PRIORITY_RATE_LIMIT",
	"PRIORITY_DATABASE_DRIVER", "PRIORITY_DATABASE_URL", "PRIORITY_HERMES_URL",
	"PRIORITY_CONSISTENCY_THRESHOLD", "PRIORITY_PARALLELISM", "PRIORITY_CACHE_SIZE",
	"PRIORITY_BUDGET_STRATEGY", "PRIORITY_LOG_LEVEL", "PRIORITY_LOG_FORMAT",
	"PRIORITY_MAX_SWEEP_STEPS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8700 {
		t.Errorf("expected port 8700, got %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort != 8701 {
		t.Errorf("expected metrics port 8701, got %d", cfg.Server.MetricsPort)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.URL != "priority.db" {
		t.Errorf("expected sqlite priority.db, got %s %s", cfg.Database.Driver, cfg.Database.URL)
	}
	if cfg.Hermes.URL != "nats://localhost:4222" {
		t.Errorf("expected nats URL, got %s", cfg.Hermes.URL)
	}
	if cfg.Engine.ConsistencyThreshold != 0.10 {
		t.Errorf("expected threshold 0.10, got %f", cfg.Engine.ConsistencyThreshold)
	}
	if cfg.Engine.Parallelism != 4 {
		t.Errorf("expected parallelism 4, got %d", cfg.Engine.Parallelism)
	}
	if cfg.Engine.BudgetStrategy != "greedy" || cfg.Engine.BudgetMode != "binary" {
		t.Errorf("expected greedy binary budget, got %s %s", cfg.Engine.BudgetStrategy, cfg.Engine.BudgetMode)
	}
	if cfg.Engine.ExactItemLimit != 200 {
		t.Errorf("expected exact item limit 200, got %d", cfg.Engine.ExactItemLimit)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got '%s'", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected log format 'json', got '%s'", cfg.Logging.Format)
	}
	if cfg.ShutdownTimeout() != 10*time.Second {
		t.Errorf("expected ShutdownTimeout 10s, got %v", cfg.ShutdownTimeout())
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRIORITY_PORT", "9000")
	t.Setenv("PRIORITY_METRICS_PORT", "9001")
	t.Setenv("PRIORITY_ADMIN_TOKEN", "secret-token")
	t.Setenv("PRIORITY_DATABASE_DRIVER", "postgres")
	t.Setenv("PRIORITY_DATABASE_URL", "postgres://localhost/priority_test")
	t.Setenv("PRIORITY_HERMES_URL", "")
	t.Setenv("PRIORITY_CONSISTENCY_THRESHOLD", "0.2")
	t.Setenv("PRIORITY_PARALLELISM", "8")
	t.Setenv("PRIORITY_BUDGET_STRATEGY", "exact")
	t.Setenv("PRIORITY_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9000 || cfg.Server.MetricsPort != 9001 {
		t.Errorf("unexpected ports %d/%d", cfg.Server.Port, cfg.Server.MetricsPort)
	}
	if cfg.Server.AdminToken != "secret-token" {
		t.Errorf("expected admin token 'secret-token', got '%s'", cfg.Server.AdminToken)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.URL != "postgres://localhost/priority_test" {
		t.Errorf("unexpected database %+v", cfg.Database)
	}
	if cfg.Hermes.URL != "" {
		t.Errorf("expected an empty hermes URL to disable events, got '%s'", cfg.Hermes.URL)
	}
	if cfg.Engine.ConsistencyThreshold != 0.2 {
		t.Errorf("expected threshold 0.2, got %f", cfg.Engine.ConsistencyThreshold)
	}
	if cfg.Engine.Parallelism != 8 {
		t.Errorf("expected parallelism 8, got %d", cfg.Engine.Parallelism)
	}
	if cfg.Engine.BudgetStrategy != "exact" {
		t.Errorf("expected exact strategy, got %s", cfg.Engine.BudgetStrategy)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got '%s'", cfg.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "priority.yaml")
	data := []byte(`
server:
  port: 9100
database:
  driver: postgres
  url: postgres://db/priority
engine:
  cache_size: 16
  budget_mode: continuous
logging:
  format: text
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("expected port 9100, got %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort != 8701 {
		t.Errorf("expected default metrics port to survive, got %d", cfg.Server.MetricsPort)
	}
	if cfg.Engine.CacheSize != 16 || cfg.Engine.BudgetMode != "continuous" {
		t.Errorf("unexpected engine config %+v", cfg.Engine)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected text format, got %s", cfg.Logging.Format)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t)
	tests := map[string]string{
		"driver":    "PRIORITY_DATABASE_DRIVER=mysql",
		"threshold": "PRIORITY_CONSISTENCY_THRESHOLD=-1",
		"parallel":  "PRIORITY_PARALLELISM=0",
		"strategy":  "PRIORITY_BUDGET_STRATEGY=random",
		"sweep cap": "PRIORITY_MAX_SWEEP_STEPS=10",
		"sweep max": "PRIORITY_MAX_SWEEP_STEPS=1000000",
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for i := 0; i < len(kv); i++ {
				if kv[i] == '=' {
					t.Setenv(kv[:i], kv[i+1:])
					break
				}
			}
			if _, err := Load(""); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
