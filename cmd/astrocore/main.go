// Command astrocore serves and administers the astrocore record store.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"astrocore/internal/core"
	"astrocore/internal/platform/config"
	"astrocore/internal/platform/logging"

	"github.com/spf13/cobra"
)

// version is overridden at link time.
var version = "0.1.0"

const appName = "astrocore"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	var logLevel, logFormat string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Scientists, planets and the missions between them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			logger, err := logging.New(stderr, cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			a.cfg = cfg
			a.logger = logger
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")

	cmd.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newSeedCmd(a),
		newBackupCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(*cobra.Command, []string) {
				_, _ = fmt.Fprintf(stdout, "%s version %s\n", appName, version)
			},
		},
	)
	return cmd
}

// openService opens the configured store and wraps it in a logged, audited service.
func (a *app) openService(opts ...core.Option) (*core.Service, func(), error) {
	store, err := core.OpenPersistentStore(a.cfg.Storage, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	base := []core.Option{
		core.WithLogger(a.logger),
		core.WithAuditRecorder(core.LogAuditRecorder{Logger: a.logger}),
	}
	svc := core.NewService(store, append(base, opts...)...)
	closeFn := func() {
		if err := store.Close(); err != nil {
			a.logger.Warn("close store", "error", err)
		}
	}
	return svc, closeFn, nil
}
