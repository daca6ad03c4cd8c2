package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"track-enricher/internal/handler/http/auth"
	pkgconfig "track-enricher/pkg/config"
)

func newTokenCommand() *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the API (signed with JWT_SECRET)",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := pkgconfig.GetEnvString("JWT_SECRET", "")
			if secret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			tok, err := auth.IssueToken(secret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "enrichctl", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
