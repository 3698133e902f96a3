package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/easysoft/xuanxuan-host/internal/logging"
	"github.com/easysoft/xuanxuan-host/internal/window"
	"github.com/easysoft/xuanxuan-host/internal/windowapp"
)

// newWindowCmd creates the hidden command the host runs for each window.
func newWindowCmd() *cobra.Command {
	var (
		name     string
		optsJSON string
	)

	cmd := &cobra.Command{
		Use:    "window",
		Short:  "Internal: run one application window",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts window.Options
			if optsJSON != "" {
				if err := json.Unmarshal([]byte(optsJSON), &opts); err != nil {
					return fmt.Errorf("invalid --options: %w", err)
				}
			}

			path := ""
			cfg, err := loadConfig()
			if err == nil {
				path = cfg.LogFilePath("window-" + name)
			}
			winLogger, err := logging.New(logging.Options{
				Component: "window",
				Debug:     debug || opts.Debug,
				FilePath:  path,
			})
			if err != nil {
				return err
			}
			defer winLogger.Close()

			return windowapp.Run(cmd.Context(), windowapp.Options{
				Name:     name,
				Endpoint: resolveEndpoint(cfg),
				Window:   opts,
				Logger:   winLogger.Named(name),
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Window name")
	cmd.Flags().StringVar(&optsJSON, "options", "", "Window options as JSON")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}
