package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cospace/cospace-server/internal/app"
	"github.com/cospace/cospace-server/internal/config"
	"github.com/cospace/cospace-server/internal/log"
)

var (
	flagConfig   string
	flagAddr     string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "cospace-server",
	Short: "Real-time collaboration presence and locking server",
	Long: `cospace-server tracks live connections, room presence, content locks
and edit relays for collaborative workspaces over WebSocket.`,
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&flagAddr, "addr", "", "HTTP listen address (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	bootLogger := log.New("info")

	cfg, path, err := config.Load(bootLogger, flagConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flagAddr != "" {
		cfg.Addr = flagAddr
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}

	logger := log.New(cfg.LogLevel)
	logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting cospace server")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
