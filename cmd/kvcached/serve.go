package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kvcached/kvcached/internal/adminhttp"
	"github.com/kvcached/kvcached/internal/config"
	"github.com/kvcached/kvcached/internal/engine"
	"github.com/kvcached/kvcached/internal/kvlog"
	"github.com/kvcached/kvcached/internal/transport"
)

const defaultConfigFilePath = "./kvcached.yml"

var configFilePath string

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the kvcached server",
	Example: "kvcached serve --config ./kvcached.yml",
	RunE:    runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&configFilePath, "config", "c", defaultConfigFilePath, "path to the kvcached YAML configuration file")
}

// runServe wires and starts the engine, the TCP command server, and the
// optional admin HTTP surface, then blocks until SIGINT/SIGTERM triggers
// an orderly shutdown. A startup failure or a server failure returns an
// error (exit code 1); otherwise it returns nil (exit code 0) once
// shutdown has run, including when the engine's drain exceeds its grace
// period, which is logged as a warning.
func runServe(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.Load(configFilePath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	eng, err := engine.Open(cfg)
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	kvlog.Info("engine started", zap.Int("shard_count", eng.ShardCount()), zap.String("journal_path", cfg.Journal.Path))

	srv := transport.New(cfg.Listen.TCPAddr, eng.Executor)
	srvErrCh := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			srvErrCh <- err
		}
	}()
	kvlog.Info("tcp command server listening", zap.String("addr", cfg.Listen.TCPAddr))

	var admin *adminhttp.Server
	adminErrCh := make(chan error, 1)
	if cfg.Listen.AdminAddr != "" {
		admin = adminhttp.New(cfg.Listen.AdminAddr, eng.Registry)
		admin.MarkReady()
		go func() {
			if err := admin.Run(); err != nil {
				adminErrCh <- err
			}
		}()
		kvlog.Info("admin http surface listening", zap.String("addr", cfg.Listen.AdminAddr))
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signalCh:
		kvlog.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-srvErrCh:
		kvlog.Error("tcp command server failed", zap.Error(err))
		return fmt.Errorf("tcp command server: %w", err)
	case err := <-adminErrCh:
		kvlog.Error("admin http surface failed", zap.Error(err))
		return fmt.Errorf("admin http surface: %w", err)
	}

	_ = srv.Close()
	if admin != nil {
		_ = admin.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := eng.Close(ctx); err != nil {
		kvlog.Warn("engine shutdown did not complete within the grace period", zap.Error(err))
	}
	_ = kvlog.Sync()

	return nil
}
