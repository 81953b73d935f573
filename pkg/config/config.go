package config

import (
	"context"
	"time"
)

// Config represents the complete configuration of a task worker process.
type Config struct {
	Temporal   TemporalConfig   `koanf:"temporal"   validate:"required"`
	Project    ProjectConfig    `koanf:"project"    validate:"required"`
	Worker     WorkerConfig     `koanf:"worker"     validate:"required"`
	Runtime    RuntimeConfig    `koanf:"runtime"    validate:"required"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
}

// TemporalConfig contains the orchestrator connection settings.
type TemporalConfig struct {
	HostPort  string `koanf:"host_port"  validate:"required" env:"TEMPORAL_HOST_PORT"  flag:"temporal-host-port"`
	Namespace string `koanf:"namespace"  validate:"required" env:"TEMPORAL_NAMESPACE"  flag:"temporal-namespace"`
	TaskQueue string `koanf:"task_queue"                     env:"TEMPORAL_TASK_QUEUE" flag:"task-queue"`
}

// ProjectConfig identifies the project whose workflows are served.
type ProjectConfig struct {
	Name string `koanf:"name" validate:"required" env:"MOOSE_PROJECT_NAME" flag:"project"`
}

// WorkerConfig contains task execution settings.
type WorkerConfig struct {
	HeartbeatInterval       time.Duration `koanf:"heartbeat_interval"        validate:"gt=0"  env:"WORKER_HEARTBEAT_INTERVAL"        flag:"heartbeat-interval"`
	MaxConcurrentActivities int           `koanf:"max_concurrent_activities" validate:"min=1" env:"WORKER_MAX_CONCURRENT_ACTIVITIES" flag:"max-concurrent-activities"`
	ShutdownTimeout         time.Duration `koanf:"shutdown_timeout"          validate:"gt=0"  env:"WORKER_SHUTDOWN_TIMEOUT"          flag:"shutdown-timeout"`
	DialRetries             uint64        `koanf:"dial_retries"                               env:"WORKER_DIAL_RETRIES"              flag:"dial-retries"`
	DialBackoff             time.Duration `koanf:"dial_backoff"              validate:"gt=0"  env:"WORKER_DIAL_BACKOFF"`
}

// RuntimeConfig contains process-level behavior.
type RuntimeConfig struct {
	LogLevel  string `koanf:"log_level"  validate:"oneof=debug info warn error disabled" env:"RUNTIME_LOG_LEVEL"  flag:"log-level"`
	LogJSON   bool   `koanf:"log_json"                                                   env:"RUNTIME_LOG_JSON"   flag:"log-json"`
	LogSource bool   `koanf:"log_source"                                                 env:"RUNTIME_LOG_SOURCE" flag:"log-source"`
}

// MonitoringConfig contains the metrics endpoint settings.
type MonitoringConfig struct {
	Enabled bool   `koanf:"enabled" env:"MONITORING_ENABLED" flag:"monitoring"`
	Path    string `koanf:"path"    env:"MONITORING_PATH"`
	Host    string `koanf:"host"    env:"MONITORING_HOST"`
	Port    int    `koanf:"port"    env:"MONITORING_PORT"    flag:"monitoring-port" validate:"min=1,max=65535"`
}

// Service defines the configuration management service interface.
type Service interface {
	// Load loads configuration from the specified sources with precedence order.
	Load(ctx context.Context, sources ...Source) (*Config, error)
	// Validate checks if the configuration meets all validation requirements.
	Validate(config *Config) error
	// GetSource returns the source type that provided a configuration key.
	GetSource(key string) SourceType
}

// Source defines the interface for configuration sources.
type Source interface {
	// Load reads configuration from the source.
	Load() (map[string]any, error)
	// Type returns the source type identifier.
	Type() SourceType
}

// SourceType identifies the type of configuration source.
type SourceType string

const (
	SourceCLI     SourceType = "cli"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceDefault SourceType = "default"
)

// Metadata contains metadata about configuration sources.
type Metadata struct {
	Sources  map[string]SourceType `json:"sources"`
	LoadedAt time.Time             `json:"loaded_at"`
}

// Load loads configuration from defaults and the environment.
func Load() (*Config, error) {
	service := NewService()
	return service.Load(context.Background())
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Temporal: TemporalConfig{
			HostPort:  "localhost:7233",
			Namespace: "default",
		},
		Project: ProjectConfig{
			Name: "moose",
		},
		Worker: WorkerConfig{
			HeartbeatInterval:       5 * time.Second,
			MaxConcurrentActivities: 100,
			ShutdownTimeout:         30 * time.Second,
			DialRetries:             5,
			DialBackoff:             500 * time.Millisecond,
		},
		Runtime: RuntimeConfig{
			LogLevel: "info",
		},
		Monitoring: MonitoringConfig{
			Enabled: true,
			Path:    "/metrics",
			Host:    "0.0.0.0",
			Port:    9464,
		},
	}
}
