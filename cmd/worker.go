package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/opsched/internal/application/scheduler"
	"github.com/example/opsched/internal/application/usecases"
	"github.com/example/opsched/internal/infrastructure/commerce"
	"github.com/example/opsched/internal/infrastructure/logging"
	"github.com/example/opsched/internal/infrastructure/postgres"
)

func newWorkerCmd() *cobra.Command {
	var batchSize int

	c := &cobra.Command{
		Use:   "worker",
		Short: "Run the generation and materialization sweeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

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

			contracts := postgres.NewContractRepo(d)
			occurrences := postgres.NewOccurrenceRepo(d)

			materialize := usecases.MaterializeOccurrence{
				Contracts:   contracts,
				Occurrences: occurrences,
				Orders:      commerce.New(cfg.CommerceBaseURL),
			}

			w := &scheduler.Worker{
				Contracts: contracts,
				Expand: usecases.ExpandContract{
					Contracts:   contracts,
					Exceptions:  postgres.NewExceptionRepo(d),
					Occurrences: occurrences,
				},
				Materialize: usecases.MaterializeDue{
					Materialize: materialize,
					Occurrences: occurrences,
					Lead:        cfg.MaterializeLead,
					Limit:       batchSize,
					Log:         log,
				},
				HorizonDays:         cfg.DefaultHorizonDays,
				GenerateInterval:    cfg.GenerateInterval,
				MaterializeInterval: cfg.MaterializeInterval,
				BatchSize:           batchSize,
				Log:                 log,
			}

			log.Info("worker starting")
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Info("worker stopped")
			return nil
		},
	}
	c.Flags().IntVar(&batchSize, "batch-size", 25, "entities per sweep")
	return c
}
