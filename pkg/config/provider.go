package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/providers/structs"
	"gopkg.in/yaml.v3"
)

// cliProvider implements Source interface for CLI flags.
type cliProvider struct {
	flags map[string]any
}

// NewCLIProvider creates a source from changed CLI flags keyed by flag name.
func NewCLIProvider(flags map[string]any) Source {
	return &cliProvider{flags: flags}
}

// Load maps flag names to configuration paths through flag struct tags.
func (c *cliProvider) Load() (map[string]any, error) {
	config := make(map[string]any)
	if c.flags == nil {
		return config, nil
	}
	flagToPath := GenerateFlagToConfigMap()
	for key, value := range c.flags {
		path, ok := flagToPath[key]
		if !ok {
			continue
		}
		if err := setNested(config, path, value); err != nil {
			return nil, fmt.Errorf("failed to set CLI flag %s: %w", key, err)
		}
	}
	return config, nil
}

func (c *cliProvider) Type() SourceType {
	return SourceCLI
}

// setNested sets a value in a nested map structure using dot notation.
// It returns an error if a path conflict is encountered.
func setNested(m map[string]any, path string, value any) error {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	current := m
	for i := 0; i < len(parts)-1; i++ {
		part := parts[i]
		if _, exists := current[part]; !exists {
			current[part] = make(map[string]any)
		}
		next, ok := current[part].(map[string]any)
		if !ok {
			return fmt.Errorf("configuration conflict: key %q is not a map", strings.Join(parts[:i+1], "."))
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
	return nil
}

// yamlProvider implements Source interface for YAML files.
type yamlProvider struct {
	path string
}

// NewYAMLProvider creates a YAML file source. A missing file yields no values.
func NewYAMLProvider(path string) Source {
	return &yamlProvider{path: path}
}

func (y *yamlProvider) Load() (map[string]any, error) {
	if y.path == "" {
		return make(map[string]any), nil
	}
	data, err := os.ReadFile(y.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]any), nil
		}
		return nil, fmt.Errorf("failed to read YAML file: %w", err)
	}
	var config map[string]any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML file: %w", err)
	}
	return filterNilValues(config), nil
}

// filterNilValues recursively removes nil values so an empty YAML key never
// overrides a default.
func filterNilValues(m map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		if v == nil {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			if filtered := filterNilValues(nested); len(filtered) > 0 {
				result[k] = filtered
			}
			continue
		}
		result[k] = v
	}
	return result
}

func (y *yamlProvider) Type() SourceType {
	return SourceYAML
}

// defaultProvider implements Source interface for default values.
type defaultProvider struct{}

// NewDefaultProvider creates a source with the built-in defaults.
func NewDefaultProvider() Source {
	return &defaultProvider{}
}

func (d *defaultProvider) Load() (map[string]any, error) {
	data, err := structs.Provider(Default(), "koanf").Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read defaults: %w", err)
	}
	return data, nil
}

func (d *defaultProvider) Type() SourceType {
	return SourceDefault
}
