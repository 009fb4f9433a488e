package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/99minutos/user-directory/internal/api/middleware"
)

// NewTokenCommand creates the token command, which signs a bearer token with
// the server's AUTH_JWT_SECRET.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		secret  string
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:          "token",
		Short:        "Issue a bearer token for write operations",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("a signing secret is required (--secret or AUTH_JWT_SECRET)")
			}
			if role != middleware.RoleAdmin && role != middleware.RoleEditor {
				return fmt.Errorf("invalid role %q: must be %s or %s", role, middleware.RoleAdmin, middleware.RoleEditor)
			}
			token, err := middleware.IssueToken(secret, subject, role, ttl)
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return (&OutputFormatter{Writer: cmd.OutOrStdout()}).JSON(map[string]string{"token": token})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("AUTH_JWT_SECRET"), "HS256 signing secret")
	cmd.Flags().StringVar(&subject, "subject", "userctl", "token subject")
	cmd.Flags().StringVar(&role, "role", middleware.RoleEditor, "role claim (admin|editor)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
