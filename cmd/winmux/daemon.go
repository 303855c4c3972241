package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/winmux/winmux/internal/config"
	"github.com/winmux/winmux/internal/daemonboot"
	"github.com/winmux/winmux/internal/pipeserver"
	"github.com/winmux/winmux/internal/registry"
	"github.com/winmux/winmux/internal/wmuxlog"
)

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background winmux daemon",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start the daemon if it is not already running",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := daemonboot.Start(); err != nil {
				return err
			}
			fmt.Println("daemon started")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := daemonboot.Stop(); err != nil {
				return err
			}
			fmt.Println("daemon stopped")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Report whether the daemon is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, running := daemonboot.Status()
			if !running {
				fmt.Println("daemon is not running")
				os.Exit(1)
			}
			fmt.Printf("daemon is running (pid %d)\n", pid)
			return nil
		},
	})
	return cmd
}

// runDaemon is the __daemon subcommand's body: load config, open the
// log file, start the registry and pipe server, and block until a
// shutdown signal arrives.
func runDaemon() error {
	log, logFile, err := wmuxlog.Open(daemonboot.LogPath(), slog.LevelInfo)
	if err != nil {
		return fmt.Errorf("daemon: open log: %w", err)
	}
	defer logFile.Close()
	slog.SetDefault(log)

	if err := daemonboot.WritePid(os.Getpid()); err != nil {
		log.Error("failed to write pid file", "error", err)
		return err
	}
	defer os.Remove(daemonboot.PidPath())

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "error", err)
		return err
	}

	reg := registry.New(cfg, nil, log)

	pipeName, err := daemonboot.PipeName()
	if err != nil {
		log.Error("failed to resolve pipe name", "error", err)
		return err
	}

	ln, err := pipeserver.Listen(pipeName)
	if err != nil {
		log.Error("failed to listen on pipe", "pipe", pipeName, "error", err)
		return err
	}
	log.Info("daemon listening", "pipe", pipeName, "pid", os.Getpid())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := pipeserver.New(reg, log)
	if err := srv.Serve(ctx, ln); err != nil {
		log.Error("pipe server stopped with error", "error", err)
		return err
	}
	log.Info("daemon shutting down")
	return nil
}
