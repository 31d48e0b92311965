package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tansive/tablebase/internal/tablesrv/db"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the catalog schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := log.Logger.WithContext(context.Background())
			if err := db.Init(ctx); err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer db.Shutdown()
			if err := runMigrate(ctx); err != nil {
				return err
			}
			printOK("catalog schema is up to date", map[string]string{"status": "migrated"})
			return nil
		},
	}
}

func runMigrate(ctx context.Context) error {
	ctx, err := db.ConnCtx(ctx)
	if err != nil {
		return err
	}
	defer db.DB(ctx).Close(context.Background())
	if aerr := db.DB(ctx).Migrate(ctx); aerr != nil {
		return aerr
	}
	return nil
}
