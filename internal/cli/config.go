package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PinkPanter/gitlock/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config <command>",
	Short: "Manage gitlock configuration",
	Long: `Manage gitlock configuration stored in .gitlock/config.yaml.

Configuration options:
  git_binary            - git executable to run (default: git)
  renew_interval        - how often the lock list is refreshed (e.g. 60s, 5m)
  tick_interval         - how often pending results are applied (e.g. 1s)
  multi_root_policy     - fail_fast or partial, for refreshes over submodules
  auto_detect_username  - probe the server for the username on startup
  state_db              - preference database path, relative to the root
  logging.level         - debug, info, warn, error
  logging.format        - text or json
  telemetry.sentry_dsn  - Sentry DSN for error reporting
  metrics.addr          - listen address for ` + "`gitlock watch`" + ` metrics

Available commands:
  show              - Show current configuration
  set <key> <value> - Set a configuration value
  get <key>         - Get a configuration value`,
	DisableFlagsInUseLine: true,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Show the current gitlock configuration from .gitlock/config.yaml.",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := requireRoot()
		if err != nil {
			return err
		}
		cfg, err := config.Load(root)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		if jsonOutput {
			return outputJSON(cfg)
		}

		fmt.Println("# gitlock configuration")
		fmt.Printf("# Location: %s\n\n", config.Path(root))
		for _, key := range config.Keys() {
			value, err := cfg.Get(key)
			if err != nil {
				return err
			}
			if value == "" {
				value = "(not set)"
			}
			fmt.Printf("%s: %s\n", key, value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in .gitlock/config.yaml.

Examples:
  gitlock config set renew_interval 2m
  gitlock config set multi_root_policy partial
  gitlock config set logging.level debug`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := requireRoot()
		if err != nil {
			return err
		}
		cfg, err := config.Load(root)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		key := args[0]
		value := args[1]

		if err := cfg.Set(key, value); err != nil {
			return fmt.Errorf("set config: %w", err)
		}
		if err := config.Save(root, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		if jsonOutput {
			return outputJSON(map[string]string{key: value})
		}
		fmt.Printf("Set %s = %s\n", key, value)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a configuration value from .gitlock/config.yaml.

Examples:
  gitlock config get renew_interval
  gitlock config get multi_root_policy`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := requireRoot()
		if err != nil {
			return err
		}
		cfg, err := config.Load(root)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		key := args[0]
		value, err := cfg.Get(key)
		if err != nil {
			return fmt.Errorf("get config: %w", err)
		}

		if jsonOutput {
			return outputJSON(map[string]string{key: value})
		}
		fmt.Println(value)
		return nil
	},
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) != 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return config.Keys(), cobra.ShellCompDirectiveNoFileComp
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	rootCmd.AddCommand(configCmd)
}
