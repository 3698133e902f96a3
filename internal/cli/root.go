// Package cli provides the command-line entry points: the host (default),
// the hidden window process command, and config helpers.
package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/easysoft/xuanxuan-host/internal/config"
	"github.com/easysoft/xuanxuan-host/internal/ipc"
	"github.com/easysoft/xuanxuan-host/internal/logging"
	"github.com/easysoft/xuanxuan-host/internal/version"
)

var (
	// Global flags
	cfgFile  string
	debug    bool
	endpoint string
	noTray   bool

	logger *logging.Logger
)

// NewRootCmd creates the root command. Without a subcommand it runs the host.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "xuanxuan",
		Short: "Xuanxuan desktop host",
		Long: `Xuanxuan ` + version.Version + ` - Built: ` + version.BuildTime + `

Runs the desktop host process: it owns the application windows, the
status-area icon and the message routing between windows. Launching it
again while it is running asks the running host to open another window.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if envDebug() {
				debug = true
			}
			logger = logging.NewLogger("cli")
			if debug {
				logging.EnableDebug()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(cmd.Context(), args)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Host configuration file (default: "+config.DefaultHostConfigPath()+")")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging and event tracing (or set XUANXUAN_DEBUG=1)")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "IPC endpoint (default: "+ipc.DefaultEndpoint()+")")
	rootCmd.Flags().BoolVar(&noTray, "no-tray", false, "Run without a status-area icon")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	rootCmd.AddCommand(newHostCmd())
	rootCmd.AddCommand(newWindowCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func envDebug() bool {
	v, err := strconv.ParseBool(os.Getenv("XUANXUAN_DEBUG"))
	return err == nil && v
}

// loadConfig reads the host config and applies flag overrides.
func loadConfig() (*config.HostConfig, error) {
	path := cfgFile
	if path == "" {
		path = config.DefaultHostConfigPath()
	}
	cfg, err := config.LoadHostConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if debug {
		cfg.Host.Debug = true
	}
	if endpoint != "" {
		cfg.Host.SocketPath = endpoint
	}
	return cfg, nil
}

func resolveEndpoint(cfg *config.HostConfig) string {
	if cfg != nil && cfg.Host.SocketPath != "" {
		return cfg.Host.SocketPath
	}
	if endpoint != "" {
		return endpoint
	}
	return ipc.DefaultEndpoint()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "xuanxuan %s (built %s)\n", version.Version, version.BuildTime)
		},
	}
}
