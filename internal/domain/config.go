package domain

import "time"

// Config holds the complete service configuration. It is built once at start-up
// and handed to each collaborator's constructor.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Upstream UpstreamConfig `json:"upstream" yaml:"upstream"`
	EventBus EventBusConfig `json:"eventBus" yaml:"eventBus"`
	Worker   WorkerConfig   `json:"worker" yaml:"worker"`

	// Observability
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	ReadTimeout  int    `json:"readTimeout" yaml:"readTimeout"`   // seconds
	WriteTimeout int    `json:"writeTimeout" yaml:"writeTimeout"` // seconds
}

// UpstreamConfig selects and configures the store answering upstream queries.
type UpstreamConfig struct {
	// Driver is "sqlite" or "postgres"
	Driver string `json:"driver" yaml:"driver"`

	// SQLite specific
	SQLitePath string `json:"sqlitePath" yaml:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `json:"postgresHost" yaml:"postgresHost"`
	PostgresPort     int    `json:"postgresPort" yaml:"postgresPort"`
	PostgresUser     string `json:"postgresUser" yaml:"postgresUser"`
	PostgresPassword string `json:"-" yaml:"postgresPassword"`
	PostgresDB       string `json:"postgresDb" yaml:"postgresDb"`
	PostgresSSLMode  string `json:"postgresSslMode" yaml:"postgresSslMode"`

	// Connection pool settings
	MaxOpenConns    int           `json:"maxOpenConns" yaml:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`
}

// WorkerConfig controls serving consider-risks over the event bus. Off by default.
type WorkerConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// PrisonIDs are the establishments to serve.
	PrisonIDs []string `json:"prisonIds" yaml:"prisonIds"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	ServiceName  string `json:"serviceName" yaml:"serviceName"`
	ExporterType string `json:"exporterType" yaml:"exporterType"` // none, stdout
}

// DefaultConfig returns a configuration suitable for local development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Upstream: UpstreamConfig{
			Driver:     "sqlite",
			SQLitePath: "./cellmove.db",
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			RequestTimeout:    30,
			ChannelBufferSize: 100,
			NATSQueueGroup:    "cellmove",
		},
		Worker: WorkerConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			ServiceName:  "cellmove",
			ExporterType: "none",
		},
	}
}
