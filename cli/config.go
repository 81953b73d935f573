package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/514-labs/moosestack/pkg/config"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ConfigCmd returns the config command
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management and diagnostics",
	}
	cmd.AddCommand(
		configShowCmd(),
		configValidateCmd(),
	)
	return cmd
}

// configShowCmd shows the current configuration with source information
func configShowCmd() *cobra.Command {
	var (
		format      string
		showSources bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration values and their sources",
		Long: `Display the resolved configuration with optional source information.
Sources are applied in order: defaults, YAML file, environment, CLI flags.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager := config.ManagerFromContext(cmd.Context())
			values, err := flattenConfig(manager.Get())
			if err != nil {
				return err
			}
			sources := make(map[string]config.SourceType, len(values))
			for key := range values {
				sources[key] = manager.Service.GetSource(key)
			}
			return formatConfigOutput(cmd.OutOrStdout(), values, sources, format, showSources)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (json, yaml, table)")
	cmd.Flags().BoolVarP(&showSources, "sources", "s", false, "Show configuration sources")
	return cmd
}

// configValidateCmd reports whether the configuration loads and validates.
func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager := config.ManagerFromContext(cmd.Context())
			if err := manager.Service.Validate(manager.Get()); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	}
}

// flattenConfig returns the configuration as dot-separated keys.
func flattenConfig(cfg *config.Config) (map[string]any, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is not loaded")
	}
	k := koanf.New(".")
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	values := k.All()
	for key, value := range values {
		if d, ok := value.(time.Duration); ok {
			values[key] = d.String()
		}
	}
	return values, nil
}

func nestConfig(values map[string]any) (map[string]any, error) {
	k := koanf.New(".")
	for key, value := range values {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return k.Raw(), nil
}

// formatConfigOutput formats and outputs configuration based on requested format
func formatConfigOutput(
	out io.Writer,
	values map[string]any,
	sources map[string]config.SourceType,
	format string,
	showSources bool,
) error {
	switch format {
	case "json", "yaml":
		nested, err := nestConfig(values)
		if err != nil {
			return err
		}
		output := map[string]any{"config": nested}
		if showSources {
			output["sources"] = sources
		}
		if format == "json" {
			encoder := json.NewEncoder(out)
			encoder.SetIndent("", "  ")
			return encoder.Encode(output)
		}
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		if err := encoder.Encode(output); err != nil {
			return err
		}
		return encoder.Close()
	case "table":
		return outputTable(out, values, sources, showSources)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func outputTable(out io.Writer, values map[string]any, sources map[string]config.SourceType, showSources bool) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if showSources {
		fmt.Fprintln(w, "KEY\tVALUE\tSOURCE\tENV")
	} else {
		fmt.Fprintln(w, "KEY\tVALUE")
	}
	for _, key := range keys {
		if showSources {
			env := config.GetEnvVarForConfigPath(key)
			if env == "" {
				env = "-"
			}
			fmt.Fprintf(w, "%s\t%v\t%s\t%s\n", key, values[key], sources[key], env)
			continue
		}
		fmt.Fprintf(w, "%s\t%v\n", key, values[key])
	}
	return w.Flush()
}
