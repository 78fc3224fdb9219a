package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Upstream.Driver != "sqlite" {
		t.Errorf("expected driver 'sqlite', got '%s'", cfg.Upstream.Driver)
	}
	if cfg.EventBus.Type != "channel" {
		t.Errorf("expected bus 'channel', got '%s'", cfg.EventBus.Type)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cellmove.yaml")
	data := []byte(`
server:
  port: 9090
upstream:
  driver: postgres
  postgresHost: db.internal
worker:
  enabled: true
  prisonIds: [MDI]
logging:
  level: warn
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Run("File", func(t *testing.T) {
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Server.Port != 9090 {
			t.Errorf("expected port 9090, got %d", cfg.Server.Port)
		}
		if cfg.Upstream.PostgresHost != "db.internal" {
			t.Errorf("expected host 'db.internal', got '%s'", cfg.Upstream.PostgresHost)
		}
		if cfg.Server.Host != "0.0.0.0" {
			t.Errorf("expected default host to survive the overlay, got '%s'", cfg.Server.Host)
		}
		if len(cfg.Worker.PrisonIDs) != 1 || cfg.Worker.PrisonIDs[0] != "MDI" {
			t.Errorf("expected prisons [MDI], got %v", cfg.Worker.PrisonIDs)
		}
	})

	t.Run("EnvOverridesFile", func(t *testing.T) {
		t.Setenv(EnvConfigPath, path)
		t.Setenv("CELLMOVE_PORT", "7070")
		t.Setenv("CELLMOVE_WORKER_PRISONS", "mdi, lei ,")
		t.Setenv("CELLMOVE_DEBUG", "true")

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Server.Port != 7070 {
			t.Errorf("expected port 7070, got %d", cfg.Server.Port)
		}
		if len(cfg.Worker.PrisonIDs) != 2 || cfg.Worker.PrisonIDs[1] != "LEI" {
			t.Errorf("expected prisons [MDI LEI], got %v", cfg.Worker.PrisonIDs)
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected level 'debug', got '%s'", cfg.Logging.Level)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Error("expected an error for a missing file")
		}
	})
}

func TestApplyEnv(t *testing.T) {
	env := func(values map[string]string) lookupFunc {
		return func(key string) (string, bool) {
			v, ok := values[key]
			return v, ok
		}
	}

	t.Run("Tracing", func(t *testing.T) {
		cfg := domain.DefaultConfig()
		if err := applyEnv(cfg, env(map[string]string{"CELLMOVE_TRACING": "true"})); err != nil {
			t.Fatalf("applyEnv failed: %v", err)
		}
		if !cfg.Tracing.Enabled || cfg.Tracing.ExporterType != "stdout" {
			t.Errorf("expected stdout tracing, got %+v", cfg.Tracing)
		}
	})

	t.Run("Nats", func(t *testing.T) {
		cfg := domain.DefaultConfig()
		err := applyEnv(cfg, env(map[string]string{
			"CELLMOVE_BUS":      "nats",
			"CELLMOVE_NATS_URL": "nats://localhost:4222",
		}))
		if err != nil {
			t.Fatalf("applyEnv failed: %v", err)
		}
		if cfg.EventBus.Type != "nats" || cfg.EventBus.NATSUrl != "nats://localhost:4222" {
			t.Errorf("unexpected bus config %+v", cfg.EventBus)
		}
	})

	t.Run("BadNumber", func(t *testing.T) {
		cfg := domain.DefaultConfig()
		err := applyEnv(cfg, env(map[string]string{"CELLMOVE_PORT": "eighty"}))
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("BadBool", func(t *testing.T) {
		cfg := domain.DefaultConfig()
		err := applyEnv(cfg, env(map[string]string{"CELLMOVE_WORKER": "sometimes"}))
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Config)
	}{
		{"port", func(c *domain.Config) { c.Server.Port = 0 }},
		{"driver", func(c *domain.Config) { c.Upstream.Driver = "mysql" }},
		{"bus", func(c *domain.Config) { c.EventBus.Type = "kafka" }},
		{"natsURL", func(c *domain.Config) { c.EventBus.Type = "nats" }},
		{"workerPrisons", func(c *domain.Config) { c.Worker.Enabled = true }},
		{"logLevel", func(c *domain.Config) { c.Logging.Level = "trace" }},
		{"exporter", func(c *domain.Config) { c.Tracing.ExporterType = "jaeger" }},
	}

	if err := Validate(domain.DefaultConfig()); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := domain.DefaultConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}
