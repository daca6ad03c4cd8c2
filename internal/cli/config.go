package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"track-enricher/internal/app"
	"track-enricher/internal/config"
)

func newConfigCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Pipeline configuration helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the pipeline file without contacting any provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cc.settings()
			if err != nil {
				return err
			}
			p, err := config.LoadPipeline(s.PipelinePath)
			if err != nil {
				return err
			}

			sources := cc.sources
			if sources == nil {
				llmCfg, err := config.LoadLLMConfig()
				if err != nil {
					return err
				}
				if sources, err = app.Sources(s, llmCfg); err != nil {
					return err
				}
			}
			names := make([]string, 0, len(sources))
			for _, src := range sources {
				names = append(names, src.Name())
			}
			if err := p.Validate(names); err != nil {
				return fmt.Errorf("%s: %w", s.PipelinePath, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration valid: %s (%d providers, %d fields)\n",
				s.PipelinePath, len(p.Providers), len(p.Fields))
			return nil
		},
	})
	return cmd
}
