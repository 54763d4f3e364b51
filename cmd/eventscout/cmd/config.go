package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/eventscout/eventscout/configs"
	"github.com/eventscout/eventscout/internal/config"
	"github.com/eventscout/eventscout/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the EventScout configuration files.

User configuration holds machine-specific settings that apply to all
projects on this machine: logging destinations, the cache backend,
the telemetry environment. Project configuration (.eventscout.yaml)
holds search tuning meant to be version controlled: trusted domains,
quality weights, resilience overrides.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/eventscout/config.yaml)
  3. Project config (.eventscout.yaml)
  4. Environment variables (EVENTSCOUT_*)

Secrets are never read from these files. API keys and DSNs come from
the environment; the files only name the variable to read.`,
		Example: `  # Create user config from template
  eventscout config init

  # Create a project config in the current repo
  eventscout config init --project

  # Show effective configuration (merged from all sources)
  eventscout config show

  # Print user config file path
  eventscout config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigRestoreCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool
	var project bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file from a template",
		Long: `Create a configuration file from the built-in template.

By default the user config is created at ~/.config/eventscout/config.yaml
(or $XDG_CONFIG_HOME/eventscout/config.yaml if XDG_CONFIG_HOME is set).
With --project, a .eventscout.yaml is created in the project root
instead.`,
		Example: `  # Create user config
  eventscout config init

  # Create project config
  eventscout config init --project

  # Overwrite existing user config (a backup is kept)
  eventscout config init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if project {
				return runConfigInitProject(cmd, force)
			}
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration (keeps a backup)")
	cmd.Flags().BoolVar(&project, "project", false, "Create a project config instead of the user config")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the effective configuration after merging all sources.

By default, shows the merged configuration from:
  1. Hardcoded defaults
  2. User config (~/.config/eventscout/config.yaml)
  3. Project config (.eventscout.yaml)
  4. Environment variables`,
		Example: `  # Show merged configuration
  eventscout config show

  # Show as JSON
  eventscout config show --json

  # Show only user config
  eventscout config show --source user`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, project, defaults")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		Long:  `Print the path to the user configuration file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return nil
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "restore [backup-path]",
		Short: "Restore the user config from a backup",
		Long: `Restore the user configuration from a timestamped backup.

Backups are written next to the config file whenever 'config init
--force' or a restore overwrites it. Without an argument the newest
backup is restored.`,
		Example: `  # List available backups
  eventscout config restore --list

  # Restore the newest backup
  eventscout config restore

  # Restore a specific backup
  eventscout config restore ~/.config/eventscout/config.yaml.bak.20260823-104500`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backupPath := ""
			if len(args) == 1 {
				backupPath = args[0]
			}
			return runConfigRestore(cmd, backupPath, list)
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List available backups")

	return cmd
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())

	configPath := config.GetUserConfigPath()
	configDir := config.GetUserConfigDir()

	if config.UserConfigExists() {
		if !force {
			out.Warning("User configuration already exists")
			out.Statusf("📁", "Location: %s", configPath)
			out.Newline()
			out.Status("💡", "Use --force to replace it with a fresh template (a backup is kept)")
			return nil
		}

		backupPath, err := config.BackupUserConfig()
		if err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
		if err := os.WriteFile(configPath, []byte(configs.UserConfigTemplate), 0644); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}

		out.Success("Replaced user configuration with a fresh template")
		out.Statusf("📁", "Location: %s", configPath)
		out.Statusf("💾", "Backup: %s", backupPath)
		out.Newline()
		out.Status("💡", "Run 'eventscout config restore' to go back to the previous file")
		return nil
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}

	if err := os.WriteFile(configPath, []byte(configs.UserConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created user configuration")
	out.Statusf("📁", "Location: %s", configPath)
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Edit the file to customize settings")
	out.Status("", "  2. Export provider API keys (FIRECRAWL_API_KEY, SERPER_API_KEY)")
	out.Status("", "  3. Run 'eventscout config show' to verify")

	return nil
}

func runConfigInitProject(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}
	configPath := filepath.Join(root, ".eventscout.yaml")

	if _, err := os.Stat(configPath); err == nil && !force {
		out.Warning("Project configuration already exists")
		out.Statusf("📁", "Location: %s", configPath)
		out.Newline()
		out.Status("💡", "Use --force to overwrite it")
		return nil
	}

	if err := os.WriteFile(configPath, []byte(configs.ProjectConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created project configuration")
	out.Statusf("📁", "Location: %s", configPath)
	out.Newline()
	out.Status("💡", "Commit this file; it carries the search tuning for the project")

	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool, source string) error {
	out := output.New(cmd.OutOrStdout())

	var cfg *config.Config
	var sourceDesc string

	switch source {
	case "merged":
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		root, err := config.FindProjectRoot(cwd)
		if err != nil {
			root = cwd
		}

		cfg, err = config.Load(root)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		sourceDesc = "merged (defaults + user + project + env)"

	case "user":
		configPath := config.GetUserConfigPath()
		if !config.UserConfigExists() {
			out.Warning("No user configuration file found")
			out.Statusf("📁", "Expected at: %s", configPath)
			out.Status("💡", "Run 'eventscout config init' to create one")
			return nil
		}

		var err error
		cfg, err = readConfigFile(configPath)
		if err != nil {
			return err
		}
		sourceDesc = fmt.Sprintf("user (%s)", configPath)

	case "project":
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		root, err := config.FindProjectRoot(cwd)
		if err != nil {
			root = cwd
		}

		yamlPath := filepath.Join(root, ".eventscout.yaml")
		ymlPath := filepath.Join(root, ".eventscout.yml")

		var configPath string
		if _, err := os.Stat(yamlPath); err == nil {
			configPath = yamlPath
		} else if _, err := os.Stat(ymlPath); err == nil {
			configPath = ymlPath
		} else {
			out.Warning("No project configuration file found")
			out.Statusf("📁", "Expected at: %s", yamlPath)
			out.Status("💡", "Run 'eventscout config init --project' to create one")
			return nil
		}

		cfg, err = readConfigFile(configPath)
		if err != nil {
			return err
		}
		sourceDesc = fmt.Sprintf("project (%s)", configPath)

	case "defaults":
		cfg = config.NewConfig()
		sourceDesc = "defaults (hardcoded)"

	default:
		return fmt.Errorf("invalid source: %s (use: merged, user, project, defaults)", source)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		out.Statusf("📋", "Configuration source: %s", sourceDesc)
		out.Newline()

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	}

	return nil
}

// readConfigFile parses one layer on top of the defaults, without the
// other layers or env overrides.
func readConfigFile(path string) (*config.Config, error) {
	cfg := config.NewConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func runConfigRestore(cmd *cobra.Command, backupPath string, list bool) error {
	out := output.New(cmd.OutOrStdout())

	backups, err := config.ListUserConfigBackups()
	if err != nil {
		return err
	}

	if list {
		if len(backups) == 0 {
			out.Warning("No backups found")
			return nil
		}
		out.Section("Backups (newest first)")
		for _, b := range backups {
			out.Statusf("", "  %s", b)
		}
		return nil
	}

	if backupPath == "" {
		if len(backups) == 0 {
			out.Warning("No backups to restore")
			out.Status("💡", "Backups are created by 'eventscout config init --force'")
			return nil
		}
		backupPath = backups[0]
	}

	if err := config.RestoreUserConfig(backupPath); err != nil {
		return err
	}

	out.Success("Restored user configuration")
	out.Statusf("💾", "From: %s", backupPath)
	out.Statusf("📁", "To: %s", config.GetUserConfigPath())

	return nil
}
