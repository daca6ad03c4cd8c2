package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newProvidersCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "Show provider breaker and rate limit state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cc.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cc.closeApp(a)
			states := a.Registry.States()
			rows := make([][]string, 0, len(states))
			for _, s := range states {
				openUntil := ""
				if !s.OpenUntil.IsZero() {
					openUntil = s.OpenUntil.Local().Format(stampLayout)
				}
				rows = append(rows, []string{
					s.Provider,
					strconv.FormatBool(s.Enabled),
					string(s.Breaker),
					strconv.Itoa(s.ConsecutiveFailures),
					openUntil,
					fmt.Sprintf("%.1f/%d per %s", s.Tokens, s.Budget, s.Window),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Provider", "Enabled", "Breaker", "Failures", "Open until", "Tokens"}, rows, 4))
			return nil
		},
	}
}
