// Package cli implements craftlinkctl, the operator command line for the
// engagement service.
package cli

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/forgo/craftlink/internal/app"
	"github.com/forgo/craftlink/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile string
	Format  string // "text" | "json" | "yaml"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for craftlinkctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "craftlinkctl",
		Short: "Operate the craftlink engagement service",
		Long: `Operator tooling for craftlink.

Mints access tokens, runs the expiry reconciler and the rating recompute
once against the configured store, and prints the lifecycle table.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load before the environment")
	cmd.PersistentFlags().StringVarP(&opts.Format, "format", "o", "text", "output format (text|json|yaml)")

	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewRecomputeRatingCommand(opts))
	cmd.AddCommand(NewTransitionsCommand(opts))

	return cmd
}

// loadConfig reads and validates configuration the same way the server does
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// withApp builds the application for one command and closes it afterwards.
// Logs go to stderr so structured output on stdout stays parseable.
func withApp(ctx context.Context, opts *RootOptions, stderr io.Writer, fn func(*app.App) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	application, err := app.New(ctx, cfg, app.Options{Logger: app.NewLogger(stderr, cfg.Log)})
	if err != nil {
		return err
	}
	defer func() { _ = application.Close() }()
	return fn(application)
}
