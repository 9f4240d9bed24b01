package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/opsched/internal/application/usecases"
	"github.com/example/opsched/internal/infrastructure/commerce"
	"github.com/example/opsched/internal/infrastructure/logging"
	"github.com/example/opsched/internal/infrastructure/postgres"
)

func newOccurrenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "occurrence",
		Short: "Occurrence lifecycle operations",
	}
	cmd.AddCommand(newOccurrenceMaterializeCmd())
	cmd.AddCommand(newOccurrenceSkipCmd())
	cmd.AddCommand(newOccurrenceCancelCmd())
	return cmd
}

func newOccurrenceMaterializeCmd() *cobra.Command {
	var (
		tenantID string
		key      string
	)
	c := &cobra.Command{
		Use:   "materialize",
		Short: "Materialize due occurrences into orders (or one, with --key)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, d, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			materialize := usecases.MaterializeOccurrence{
				Contracts:   postgres.NewContractRepo(d),
				Occurrences: postgres.NewOccurrenceRepo(d),
				Orders:      commerce.New(cfg.CommerceBaseURL),
			}
			now := time.Now().UTC()

			if key != "" {
				order, err := materialize.Execute(ctx, tenantID, key, now)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "order %s [%s, %s)\n", order.ID,
					order.ConfirmedStart.Format(time.RFC3339), order.ConfirmedEnd.Format(time.RFC3339))
				return nil
			}

			sweep := usecases.MaterializeDue{
				Materialize: materialize,
				Occurrences: postgres.NewOccurrenceRepo(d),
				Lead:        cfg.MaterializeLead,
				Limit:       100,
				Log:         log,
			}
			orders, err := sweep.Execute(ctx, now)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "materialized %d orders\n", len(orders))
			return nil
		},
	}
	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id (required with --key)")
	c.Flags().StringVar(&key, "key", "", "materialize one occurrence by key")
	return c
}

func newOccurrenceSkipCmd() *cobra.Command {
	var tenantID, key, reason string
	c := &cobra.Command{
		Use:   "skip",
		Short: "Skip one occurrence with a reason",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, d, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			lc := usecases.OccurrenceLifecycle{Occurrences: postgres.NewOccurrenceRepo(d)}
			return lc.Skip(ctx, tenantID, key, reason, time.Now().UTC())
		},
	}
	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	c.Flags().StringVar(&key, "key", "", "occurrence key")
	c.Flags().StringVar(&reason, "reason", "", "skip reason")
	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("key")
	_ = c.MarkFlagRequired("reason")
	return c
}

func newOccurrenceCancelCmd() *cobra.Command {
	var tenantID, key, reason string
	c := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel one occurrence with a reason",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, d, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			lc := usecases.OccurrenceLifecycle{Occurrences: postgres.NewOccurrenceRepo(d)}
			return lc.Cancel(ctx, tenantID, key, reason, time.Now().UTC())
		},
	}
	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	c.Flags().StringVar(&key, "key", "", "occurrence key")
	c.Flags().StringVar(&reason, "reason", "", "cancel reason")
	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("key")
	_ = c.MarkFlagRequired("reason")
	return c
}
