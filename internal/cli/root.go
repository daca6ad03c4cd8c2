// Package cli implements enrichctl, the operator command line for the
// enrichment pipeline. It builds the same pipeline as the API server from
// the environment (and an optional .env file) and drives it in-process.
package cli

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"track-enricher/internal/app"
	"track-enricher/internal/observability/logging"
	"track-enricher/internal/provider"
)

type commandContext struct {
	pipeline *string
	sources  []provider.Source
}

// settings reads the environment, letting --pipeline override PIPELINE_CONFIG.
func (c *commandContext) settings() (app.Settings, error) {
	s, err := app.LoadSettings()
	if err != nil {
		return s, err
	}
	if p := strings.TrimSpace(*c.pipeline); p != "" {
		s.PipelinePath = p
	}
	return s, nil
}

func (c *commandContext) buildApp(ctx context.Context) (*app.App, error) {
	s, err := c.settings()
	if err != nil {
		return nil, err
	}
	if s.DeadLetterBackend == app.BackendMemory {
		slog.Warn("DLQ_BACKEND is memory; dead letters do not outlive this command")
	}
	return app.Build(ctx, s, c.sources)
}

func (c *commandContext) closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		slog.Warn("failed to close backends", slog.Any("error", err))
	}
}

// NewRootCommand returns the enrichctl command tree. sources replaces the
// catalog clients built from the environment when non-nil.
func NewRootCommand(sources []provider.Source) *cobra.Command {
	var envFile, pipeline string
	cc := &commandContext{pipeline: &pipeline, sources: sources}

	root := &cobra.Command{
		Use:           "enrichctl",
		Short:         "Enrich track metadata and manage the dead-letter queue",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
					return err
				}
			}
			slog.SetDefault(logging.NewTextLogger(cmd.ErrOrStderr()))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().StringVarP(&pipeline, "pipeline", "p", "", "pipeline file (overrides PIPELINE_CONFIG)")

	root.AddCommand(newEnrichCommand(cc))
	root.AddCommand(newDeadLetterCommand(cc))
	root.AddCommand(newProvidersCommand(cc))
	root.AddCommand(newConfigCommand(cc))
	root.AddCommand(newTokenCommand())

	return root
}
