package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/opsched/internal/db"
	"github.com/example/opsched/internal/infrastructure/config"
	"github.com/example/opsched/internal/infrastructure/postgres"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "opsched",
		Short: "Scheduling core: recurrence expansion, fulfillment graphs, resource assignment",
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newContractCmd())
	root.AddCommand(newOccurrenceCmd())
	root.AddCommand(newGraphCmd())
	root.AddCommand(newAssignmentCmd())
	root.AddCommand(newWorkerCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDB loads config and opens the store with the schema applied. Every
// data-touching command starts here.
func openDB(ctx context.Context) (config.Config, *db.DB, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, nil, err
	}
	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := postgres.Migrate(ctx, d); err != nil {
		d.Close()
		return config.Config{}, nil, err
	}
	return cfg, d, nil
}
