package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/memohai/sharekit/internal/codec"
	"github.com/memohai/sharekit/internal/config"
	"github.com/memohai/sharekit/internal/logger"
	"github.com/memohai/sharekit/internal/version"
)

type app struct {
	configPath string
	cfg        config.Config
	codec      *codec.Codec
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			logger.Warn("interrupted")
		}
		logger.Error("sharekit failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "sharekit",
		Short:         "Build, validate and hand off photos for sharing",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(); err != nil {
				return err
			}
			log := logger.L.With(slog.String("component", "cli"), slog.String("command", cmd.Name()))
			cmd.SetContext(logger.WithContext(cmd.Context(), log))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", envOr("SHAREKIT_CONFIG", config.DefaultConfigPath), "path to the TOML config file")

	root.AddCommand(
		newEncodeCommand(a),
		newDecodeCommand(a),
		newValidateCommand(a),
		newLibraryCommand(a),
		newDraftsCommand(a),
		newVersionCommand(),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	if _, err := os.Stat(a.configPath); errors.Is(err, fs.ErrNotExist) {
		logger.Info("config file not found, using defaults", slog.String("path", a.configPath))
	} else {
		logger.Debug("config loaded", slog.String("path", a.configPath))
	}
	a.cfg = cfg
	a.codec = cfg.Codec.New()
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeJSON(cmd.OutOrStdout(), version.Get())
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
