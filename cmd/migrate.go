package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/opsched/internal/infrastructure/postgres"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, d, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()
			if err := postgres.Migrate(ctx, d); err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, "schema up to date")
			return nil
		},
	}
}
