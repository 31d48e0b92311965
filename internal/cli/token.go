package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tansive/tablebase/internal/tablesrv/auth"
	"github.com/tansive/tablebase/internal/tablesrv/config"
	"github.com/tansive/tablebase/internal/tablesrv/tblcommon"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue bearer tokens",
	}
	cmd.AddCommand(newTokenCreateCmd())
	return cmd
}

func newTokenCreateCmd() *cobra.Command {
	var user, scope, ttl string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Sign a token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return fmt.Errorf("--user is required")
			}
			switch tblcommon.Scope(scope) {
			case tblcommon.ScopeDefault, tblcommon.ScopeTrusted:
			default:
				return fmt.Errorf("unknown scope %q", scope)
			}
			d, err := config.ParseDuration(ttl)
			if err != nil {
				return fmt.Errorf("invalid --ttl: %v", err)
			}
			token, aerr := auth.NewToken(user, tblcommon.Scope(scope), d)
			if aerr != nil {
				return aerr
			}
			if jsonOutput {
				printJSON(map[string]any{
					"token":     token,
					"user":      user,
					"expiresAt": time.Now().Add(d).UTC(),
				})
				return nil
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User ID placed in the subject claim")
	cmd.Flags().StringVar(&scope, "scope", "", `Token scope, "" or "trusted"`)
	cmd.Flags().StringVar(&ttl, "ttl", "24h", "Lifetime of the token, e.g. 30m, 24h, 7d")
	return cmd
}
