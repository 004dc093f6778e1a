package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/punchclock/am"
	"github.com/teranos/punchclock/errors"
)

// AmCmd shows and validates configuration
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Show and validate configuration",
	Long: `Show and validate punchclock configuration.

Configuration sources (later overrides earlier):
1. Built-in defaults
2. System config (/etc/punchclock/config.toml)
3. User config (~/.punchclock/am.toml)
4. Project config (./am.toml, searched up from the working directory)
5. Environment variables (PUNCHCLOCK_* prefix)

Examples:
  punchclock am show
  punchclock am show --format json
  punchclock am validate
  punchclock am where`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the merged configuration",
	Args:  cobra.NoArgs,
	RunE:  runAmShow,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the merged configuration",
	Args:  cobra.NoArgs,
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "List the config files in effect",
	Args:  cobra.NoArgs,
	RunE:  runAmWhere,
}

var configFormat string

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")
	AmCmd.AddCommand(amShowCmd, amValidateCmd, amWhereCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	// the signing secret never goes to a terminal
	if cfg.Server.JWTSecret != "" {
		cfg.Server.JWTSecret = "********"
	}
	data, err := marshalConfig(cfg, configFormat)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func marshalConfig(cfg *am.Config, format string) ([]byte, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal config to JSON")
		}
		return append(data, '\n'), nil
	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal config to YAML")
		}
		return append([]byte("# punchclock configuration\n"), data...), nil
	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal config to TOML")
		}
		return append([]byte("# punchclock configuration\n"), data...), nil
	}
	return nil, errors.NewValidationError("unsupported format: %s (supported: toml, json, yaml)", format)
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	for _, path := range am.ActiveConfigPaths() {
		unknown, err := am.UnknownKeys(path)
		if err != nil {
			return err
		}
		for _, key := range unknown {
			pterm.Warning.Printfln("%s: unknown key %q is ignored", path, key)
		}
	}
	pterm.Success.Println("Configuration is valid")
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration cascade (later overrides earlier):")
	fmt.Fprintln(out, "  1. [DEFAULT]  Built-in defaults")
	fmt.Fprintln(out, "  2. [SYSTEM]   /etc/punchclock/config.toml")
	fmt.Fprintf(out, "  3. [USER]     %s\n", am.UserConfigPath())
	fmt.Fprintln(out, "  4. [PROJECT]  ./am.toml (searches up directories)")
	fmt.Fprintln(out, "  5. [ENV]      PUNCHCLOCK_* environment variables")
	fmt.Fprintln(out)

	paths := am.ActiveConfigPaths()
	if len(paths) == 0 {
		fmt.Fprintln(out, "No config files found; running on defaults")
		return nil
	}
	fmt.Fprintln(out, "Files in effect:")
	for _, p := range paths {
		fmt.Fprintf(out, "  %s\n", p)
	}
	return nil
}
