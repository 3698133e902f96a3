package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/easysoft/xuanxuan-host/internal/config"
	"github.com/easysoft/xuanxuan-host/internal/constants"
	"github.com/easysoft/xuanxuan-host/internal/host"
	"github.com/easysoft/xuanxuan-host/internal/ipc"
	"github.com/easysoft/xuanxuan-host/internal/launcher"
	"github.com/easysoft/xuanxuan-host/internal/logging"
	"github.com/easysoft/xuanxuan-host/internal/singleinstance"
	"github.com/easysoft/xuanxuan-host/internal/tray"
)

func newHostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Run the desktop host (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(cmd.Context(), args)
		},
	}
	cmd.Flags().BoolVar(&noTray, "no-tray", false, "Run without a status-area icon")
	return cmd
}

func runHost(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ep := resolveEndpoint(cfg)

	lock, err := singleinstance.Acquire("host")
	if errors.Is(err, singleinstance.ErrAlreadyRunning) {
		logger.Info().Msg("Host already running, forwarding launch")
		return forwardSecondInstance(ctx, ep, args)
	}
	if err != nil {
		return fmt.Errorf("failed to acquire instance lock: %w", err)
	}
	defer lock.Release()

	hostLogger, err := newHostLogger(cfg)
	if err != nil {
		return err
	}
	defer hostLogger.Close()

	listener, err := ipc.Listen(ep)
	if err != nil {
		return err
	}
	defer ipc.CleanupEndpoint(ep)

	var backend tray.Backend = tray.NopBackend{}
	var systray *tray.SystrayBackend
	if !noTray {
		systray = tray.NewSystrayBackend(hostLogger.Named("systray"))
		backend = systray
	}

	platform := launcher.New(launcher.Options{
		Spawn:  launcher.ExecSpawner("", ep, cfg.Host.Debug),
		Logger: hostLogger.Named("launcher"),
	})

	h, err := host.New(host.Options{
		Config:   cfg,
		Logger:   hostLogger,
		Platform: platform,
		Tray:     backend,
	})
	if err != nil {
		listener.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := h.Start(listener); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Run(ctx)
		if systray != nil {
			systray.Quit()
		}
	}()

	// The status-area loop must own the main goroutine.
	if systray != nil {
		systray.Run(nil, nil)
	}
	<-done

	h.Stop()
	return nil
}

func newHostLogger(cfg *config.HostConfig) (*logging.Logger, error) {
	path := cfg.LogFilePath("host")
	if path != "" {
		if err := config.EnsureLogDirectory(); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	return logging.New(logging.Options{
		Component:  "host",
		Debug:      cfg.Host.Debug,
		FilePath:   path,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
}

// forwardSecondInstance hands this launch to the running host and returns.
func forwardSecondInstance(ctx context.Context, ep string, args []string) error {
	dialCtx, cancel := context.WithTimeout(ctx, constants.DialTimeout)
	defer cancel()

	client, err := ipc.Connect(dialCtx, ep, logger)
	if err != nil {
		return fmt.Errorf("another instance is running but not reachable: %w", err)
	}
	defer client.Close()

	wd, _ := os.Getwd()
	return client.Send(ipc.ChannelSecondInstance, ipc.SecondInstanceData{Args: args, WorkingDir: wd})
}
