package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/opsched/internal/application/usecases"
	"github.com/example/opsched/internal/domain/contract"
	"github.com/example/opsched/internal/infrastructure/postgres"
)

func newContractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contract",
		Short: "Manage standing reservation contracts",
	}
	cmd.AddCommand(newContractCreateCmd())
	cmd.AddCommand(newContractListCmd())
	cmd.AddCommand(newContractExpandCmd())
	cmd.AddCommand(newContractStatusCmd("pause", "Pause a contract", contract.StatusPaused))
	cmd.AddCommand(newContractStatusCmd("resume", "Resume a paused contract", contract.StatusActive))
	cmd.AddCommand(newContractStatusCmd("cancel", "Cancel a contract", contract.StatusCancelled))
	return cmd
}

func newContractStatusCmd(use, short string, to contract.Status) *cobra.Command {
	var tenantID, contractID string
	c := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, d, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			repo := postgres.NewContractRepo(d)
			if err := repo.SetStatus(ctx, tenantID, contractID, to, time.Now().UTC()); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "contract %s: %s\n", contractID, to)
			return nil
		},
	}
	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	c.Flags().StringVar(&contractID, "contract", "", "contract id")
	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("contract")
	return c
}

func newContractCreateCmd() *cobra.Command {
	var (
		tenantID     string
		customerID   string
		customerKind string
		anchor       string
		timezone     string
		recurrence   string
		durationMin  int
		aheadDays    int
		autoCreate   bool
		sellableID   string
		locationID   string
		partySize    int
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Create a standing contract (starts active)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, d, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			loc, err := time.LoadLocation(timezone)
			if err != nil {
				return fmt.Errorf("invalid --timezone: %w", err)
			}
			anchorAt, err := time.ParseInLocation("2006-01-02 15:04", anchor, loc)
			if err != nil {
				return fmt.Errorf("invalid --anchor (want 'YYYY-MM-DD HH:MM'): %w", err)
			}

			now := time.Now().UTC()
			ct := contract.Contract{
				ID:             uuid.NewString(),
				TenantID:       tenantID,
				CustomerID:     customerID,
				CustomerKind:   contract.CustomerKind(customerKind),
				AnchorAt:       anchorAt.UTC(),
				Timezone:       timezone,
				Recurrence:     recurrence,
				DurationMin:    durationMin,
				EffectiveStart: anchorAt.UTC(),
				MaxAheadDays:   aheadDays,
				AutoCreate:     autoCreate,
				Policy: contract.PolicySnapshot{
					SellableID: sellableID,
					LocationID: locationID,
					PartySize:  partySize,
				},
				Status:    contract.StatusActive,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := ct.Validate(); err != nil {
				return err
			}

			if err := postgres.NewContractRepo(d).Create(ctx, ct); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "created contract id=%s\n", ct.ID)
			return nil
		},
	}

	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	c.Flags().StringVar(&customerID, "customer", "", "customer id")
	c.Flags().StringVar(&customerKind, "customer-kind", "individual", "individual or group")
	c.Flags().StringVar(&anchor, "anchor", "", "first instant of the series, local 'YYYY-MM-DD HH:MM'")
	c.Flags().StringVar(&timezone, "timezone", "UTC", "IANA timezone for recurrence math")
	c.Flags().StringVar(&recurrence, "recurrence", "", "RFC 5545 RRULE body, e.g. FREQ=WEEKLY;BYDAY=TU")
	c.Flags().IntVar(&durationMin, "duration-minutes", 60, "default occurrence duration")
	c.Flags().IntVar(&aheadDays, "max-ahead-days", 60, "generation horizon cap")
	c.Flags().BoolVar(&autoCreate, "auto-create", true, "materialize orders automatically when due")
	c.Flags().StringVar(&sellableID, "sellable", "", "sellable id for the policy snapshot")
	c.Flags().StringVar(&locationID, "location", "", "location id for the policy snapshot")
	c.Flags().IntVar(&partySize, "party-size", 1, "party size for the policy snapshot")

	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("customer")
	_ = c.MarkFlagRequired("anchor")
	_ = c.MarkFlagRequired("recurrence")
	_ = c.MarkFlagRequired("sellable")
	return c
}

func newContractListCmd() *cobra.Command {
	var tenantID string
	c := &cobra.Command{
		Use:   "list",
		Short: "List contracts for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, d, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			cs, err := postgres.NewContractRepo(d).ListByTenant(ctx, tenantID)
			if err != nil {
				return err
			}
			for _, ct := range cs {
				fmt.Fprintf(os.Stdout, "%s\t%s\t%s\t%s\n", ct.ID, ct.Status, ct.Recurrence, ct.Timezone)
			}
			return nil
		},
	}
	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	_ = c.MarkFlagRequired("tenant")
	return c
}

func newContractExpandCmd() *cobra.Command {
	var (
		tenantID   string
		contractID string
		horizon    int
	)
	c := &cobra.Command{
		Use:   "expand",
		Short: "Expand a contract's recurrence into occurrences",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, d, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			if horizon == 0 {
				horizon = cfg.DefaultHorizonDays
			}
			expand := usecases.ExpandContract{
				Contracts:   postgres.NewContractRepo(d),
				Exceptions:  postgres.NewExceptionRepo(d),
				Occurrences: postgres.NewOccurrenceRepo(d),
			}
			occs, err := expand.Execute(ctx, tenantID, contractID, horizon, time.Now().UTC())
			if err != nil {
				return err
			}
			for _, o := range occs {
				fmt.Fprintf(os.Stdout, "%s\t%s\t%s\n", o.Key, o.Status, o.PlannedStart.Format(time.RFC3339))
			}
			return nil
		},
	}
	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	c.Flags().StringVar(&contractID, "contract", "", "contract id")
	c.Flags().IntVar(&horizon, "horizon-days", 0, "look-ahead horizon (default from env)")
	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("contract")
	return c
}
