package monitoring

import (
	"fmt"
	"strings"
)

// Config holds configuration for monitoring service
type Config struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Path    string `json:"path"    yaml:"path"    mapstructure:"path"`
	Host    string `json:"host"    yaml:"host"    mapstructure:"host"`
	Port    int    `json:"port"    yaml:"port"    mapstructure:"port"`
}

// DefaultConfig returns default monitoring configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Path:    "/metrics",
		Host:    "0.0.0.0",
		Port:    9464,
	}
}

// Address returns host:port for the metrics listener.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate validates the monitoring configuration
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("monitoring path cannot be empty")
	}
	if c.Path[0] != '/' {
		return fmt.Errorf("monitoring path must start with '/': got %s", c.Path)
	}
	if c.Path == "/health" {
		return fmt.Errorf("monitoring path cannot shadow the health endpoint")
	}
	if strings.ContainsRune(c.Path, '?') {
		return fmt.Errorf("monitoring path cannot contain query parameters")
	}
	if c.Enabled && (c.Port < 1 || c.Port > 65535) {
		return fmt.Errorf("monitoring port must be between 1 and 65535: got %d", c.Port)
	}
	return nil
}
