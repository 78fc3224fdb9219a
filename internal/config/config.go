// Package config builds the service configuration from defaults, an optional YAML
// file and CELLMOVE_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
)

// EnvConfigPath names the YAML file read when Load is given no path.
const EnvConfigPath = "CELLMOVE_CONFIG"

// Load returns the validated configuration. An empty path falls back to
// CELLMOVE_CONFIG; with neither set only defaults and the environment apply.
func Load(path string) (*domain.Config, error) {
	cfg := domain.DefaultConfig()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *domain.Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s must be a number, got %q", domain.ErrInvalidInput, key, v)
		}
		*dst = n
		return nil
	}
	flag := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s must be true or false, got %q", domain.ErrInvalidInput, key, v)
		}
		*dst = b
		return nil
	}

	str("CELLMOVE_HOST", &cfg.Server.Host)
	if err := num("CELLMOVE_PORT", &cfg.Server.Port); err != nil {
		return err
	}

	str("CELLMOVE_UPSTREAM_DRIVER", &cfg.Upstream.Driver)
	str("CELLMOVE_SQLITE_PATH", &cfg.Upstream.SQLitePath)
	str("CELLMOVE_POSTGRES_HOST", &cfg.Upstream.PostgresHost)
	if err := num("CELLMOVE_POSTGRES_PORT", &cfg.Upstream.PostgresPort); err != nil {
		return err
	}
	str("CELLMOVE_POSTGRES_USER", &cfg.Upstream.PostgresUser)
	str("CELLMOVE_POSTGRES_PASSWORD", &cfg.Upstream.PostgresPassword)
	str("CELLMOVE_POSTGRES_DB", &cfg.Upstream.PostgresDB)
	str("CELLMOVE_POSTGRES_SSLMODE", &cfg.Upstream.PostgresSSLMode)

	str("CELLMOVE_BUS", &cfg.EventBus.Type)
	str("CELLMOVE_NATS_URL", &cfg.EventBus.NATSUrl)
	str("CELLMOVE_NATS_TOKEN", &cfg.EventBus.NATSToken)

	if err := flag("CELLMOVE_WORKER", &cfg.Worker.Enabled); err != nil {
		return err
	}
	if v, ok := lookup("CELLMOVE_WORKER_PRISONS"); ok && v != "" {
		cfg.Worker.PrisonIDs = splitList(v)
	}

	str("CELLMOVE_LOG_LEVEL", &cfg.Logging.Level)
	debug := false
	if err := flag("CELLMOVE_DEBUG", &debug); err != nil {
		return err
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	if err := flag("CELLMOVE_TRACING", &cfg.Tracing.Enabled); err != nil {
		return err
	}
	if cfg.Tracing.Enabled && (cfg.Tracing.ExporterType == "" || cfg.Tracing.ExporterType == "none") {
		cfg.Tracing.ExporterType = "stdout"
	}
	return nil
}

// splitList parses a comma-separated list of establishment codes.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects configurations the service cannot start with.
func Validate(cfg *domain.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d out of range", domain.ErrInvalidInput, cfg.Server.Port)
	}

	switch cfg.Upstream.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unsupported upstream driver %q", domain.ErrInvalidInput, cfg.Upstream.Driver)
	}

	switch cfg.EventBus.Type {
	case "channel":
	case "nats":
		if cfg.EventBus.NATSUrl == "" {
			return fmt.Errorf("%w: nats bus requires a url", domain.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unsupported event bus %q", domain.ErrInvalidInput, cfg.EventBus.Type)
	}

	if cfg.Worker.Enabled && len(cfg.Worker.PrisonIDs) == 0 {
		return fmt.Errorf("%w: worker requires at least one prison", domain.ErrInvalidInput)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", domain.ErrInvalidInput, cfg.Logging.Level)
	}

	switch cfg.Tracing.ExporterType {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("%w: unknown trace exporter %q", domain.ErrInvalidInput, cfg.Tracing.ExporterType)
	}
	return nil
}
