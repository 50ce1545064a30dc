// Questd is the questboard daemon: the JSON API over SQLite, with optional
// NATS event publication and collaboration-channel integration.
//
// Configuration is read from ~/.config/questboard/config.yaml and
// QUESTBOARD_-prefixed environment variables. See internal/config.
//
// Usage:
//
//	# Start with defaults
//	questd
//
//	# Publish events through an in-process NATS server
//	QUESTBOARD_NATS_ENABLED=true QUESTBOARD_NATS_EMBEDDED=true questd
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questboard/internal/completion"
	"github.com/fyrsmithlabs/questboard/internal/config"
	qbhttp "github.com/fyrsmithlabs/questboard/internal/http"
	"github.com/fyrsmithlabs/questboard/internal/logging"
	"github.com/fyrsmithlabs/questboard/internal/services"
	"github.com/fyrsmithlabs/questboard/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configPath string
	logLevel   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "questd",
	Short: "questboard project lifecycle and XP daemon",
	Long: `questd serves the questboard API: users, projects, XP, activity and
notifications, persisted in SQLite.`,
	Version:      version,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := config.LoadWithFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if logLevel != "" {
			if cfg.Logging.Level, err = logging.LevelFromString(logLevel); err != nil {
				return fmt.Errorf("--log-level: %w", err)
			}
		}
		return run(ctx, cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "questd by Fyrsmith Labs\n")
		fmt.Fprintf(cmd.OutOrStdout(), "Version:    %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "Commit:     %s\n", gitCommit)
		fmt.Fprintf(cmd.OutOrStdout(), "Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/questboard/config.yaml)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "override logging.level (trace, debug, info, warn, error)")
	rootCmd.AddCommand(versionCmd)
}

// run starts questd and blocks until ctx is cancelled.
//
// Order of initialization:
//  1. Logger and telemetry
//  2. Infrastructure (SQLite store, NATS, channel adapter)
//  3. Services
//  4. HTTP server
//
// Shutdown runs in reverse within cfg.Server.ShutdownTimeout.
func run(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zl := logger.Underlying()

	tel, err := telemetry.New(ctx, &cfg.Telemetry, zl.Named("telemetry"))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	zl.Info("starting questd",
		zap.String("version", version),
		zap.String("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)),
		zap.String("storage", cfg.Storage.Path),
		zap.Bool("nats", cfg.NATS.Enabled),
		zap.Bool("channel", cfg.Channel.Enabled))

	deps, err := initDependencies(cfg, zl)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	reg := services.Wire(services.WireOptions{
		Store:     deps.store,
		Publisher: deps.publisher,
		Channel:   deps.channel,
		Logger:    zl,
		Completion: completion.Config{
			MaxParallel:        cfg.Completion.MaxParallel,
			ParticipantTimeout: cfg.Completion.ParticipantTimeout.Duration(),
			ChannelTimeout:     cfg.Completion.ChannelTimeout.Duration(),
		},
		ChannelTimeout: cfg.Channel.RequestTimeout.Duration(),
	})

	srv, err := qbhttp.NewServer(reg, zl.Named("http"), &qbhttp.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	zl.Info("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	zl.Info("questd stopped")
	return errors.Join(errs...)
}
