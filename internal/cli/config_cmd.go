package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/easysoft/xuanxuan-host/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage host configuration",
		Long: `Configuration management commands for the xuanxuan host.

Commands:
  init  - Write a host.conf with default values
  show  - Display the effective configuration
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultHostConfigPath()
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default host.conf",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Configuration already exists at: %s\n", path)
					fmt.Fprintln(cmd.OutOrStdout(), "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			if err := config.SaveHostConfig(config.NewHostConfig(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config file: %s\n\n", configPath())
			fmt.Fprintln(out, "[host]")
			fmt.Fprintf(out, "  entry_path  = %s\n", cfg.Host.EntryPath)
			fmt.Fprintf(out, "  debug       = %t\n", cfg.Host.Debug)
			fmt.Fprintf(out, "  endpoint    = %s\n", resolveEndpoint(cfg))
			fmt.Fprintln(out, "[window]")
			fmt.Fprintf(out, "  size        = %dx%d (min %dx%d)\n", cfg.Window.Width, cfg.Window.Height, cfg.Window.MinWidth, cfg.Window.MinHeight)
			fmt.Fprintf(out, "  url         = %s\n", cfg.WindowURL())
			fmt.Fprintln(out, "[tray]")
			fmt.Fprintf(out, "  icon        = %s\n", cfg.ResolvePath(cfg.Tray.Icon))
			fmt.Fprintf(out, "  icon_blank  = %s\n", cfg.ResolvePath(cfg.Tray.IconBlank))
			fmt.Fprintf(out, "  tooltip     = %s\n", cfg.Tray.Tooltip)
			fmt.Fprintln(out, "[log]")
			if path := cfg.LogFilePath("host"); path != "" {
				fmt.Fprintf(out, "  file        = %s\n", path)
			} else {
				fmt.Fprintln(out, "  file        = (disabled)")
			}
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), configPath())
		},
	}
}
