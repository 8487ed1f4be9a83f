// Package server provides the cobra commands of the mosaicod binary.
package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"mosaicod/internal/app/server"
	"mosaicod/internal/config"
)

// Options are the command line overrides shared by all commands
type Options struct {
	ConfigPath string
	GRPCAddr   string
	LogLevel   string
}

// AddFlags registers the options on fs
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ConfigPath, "config", "", "Path to configuration file")
	fs.StringVar(&o.GRPCAddr, "grpc-addr", "", "gRPC server address (overrides config)")
	fs.StringVar(&o.LogLevel, "log-level", "", "Log level: error, info, debug or trace (overrides config)")
}

// Load reads the configuration and applies the overrides
func (o *Options) Load() (*config.Config, error) {
	cfg, err := config.NewConfig(o.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.GRPCAddr != "" {
		cfg.Server.GRPCAddr = o.GRPCAddr
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the process logger for a log level
func NewLogger(out io.Writer, level string) logr.Logger {
	switch strings.ToLower(level) {
	case "trace":
		stdr.SetVerbosity(2)
	case "debug":
		stdr.SetVerbosity(1)
	default:
		stdr.SetVerbosity(0)
	}
	return stdr.New(log.New(out, "", log.LstdFlags|log.Lmicroseconds))
}

// NewRootCommand creates the mosaicod command tree
func NewRootCommand(ctx context.Context, out, errOut io.Writer) *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:           "mosaicod",
		Short:         "Mosaico data platform server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	opts.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		NewCommandServe(ctx, opts, errOut),
		NewCommandMigrate(ctx, opts, errOut),
	)
	return cmd
}

// NewCommandServe creates the command that runs the server until ctx is done
func NewCommandServe(ctx context.Context, opts *Options, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Launch the mosaicod server",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := opts.Load()
			if err != nil {
				return err
			}
			logger := NewLogger(errOut, cfg.Log.Level).WithName(cfg.App.Name)
			logger.Info("starting", "version", cfg.App.Version,
				"repository", cfg.Repository.Type, "store", cfg.Store.Type, "locks", cfg.Locks.Type)

			app, err := server.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Close(); err != nil {
					logger.Error(err, "shutdown")
				}
			}()
			return app.Run(ctx)
		},
	}
}

// NewCommandMigrate creates the command that prepares the repository schema
func NewCommandMigrate(ctx context.Context, opts *Options, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply repository schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := opts.Load()
			if err != nil {
				return err
			}
			logger := NewLogger(errOut, cfg.Log.Level).WithName(cfg.App.Name)
			if err := server.Migrate(ctx, cfg, logger); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			logger.Info("migrations applied", "repository", cfg.Repository.Type)
			return nil
		},
	}
}
