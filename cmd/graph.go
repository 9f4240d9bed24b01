package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/opsched/internal/application/usecases"
	"github.com/example/opsched/internal/domain/fulfillment"
	"github.com/example/opsched/internal/infrastructure/catalog"
	"github.com/example/opsched/internal/infrastructure/postgres"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Build and validate fulfillment graphs",
	}
	cmd.AddCommand(newGraphBuildCmd())
	cmd.AddCommand(newGraphValidateCmd())
	cmd.AddCommand(newUnitTransitionCmd("unit-ready", "Mark a planned unit ready"))
	cmd.AddCommand(newUnitTransitionCmd("unit-start", "Start a ready unit"))
	cmd.AddCommand(newUnitTransitionCmd("unit-complete", "Complete an in-progress unit"))
	cmd.AddCommand(newUnitTransitionCmd("unit-fail", "Mark a unit failed"))
	cmd.AddCommand(newUnitTransitionCmd("unit-cancel", "Cancel a unit"))
	cmd.AddCommand(newGraphRetimeCmd())
	return cmd
}

func newUnitTransitionCmd(use, short string) *cobra.Command {
	var tenantID, unitID string
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

			lc := usecases.UnitLifecycle{Graph: postgres.NewFulfillmentRepo(d)}
			now := time.Now().UTC()
			switch use {
			case "unit-ready":
				err = lc.MarkReady(ctx, tenantID, unitID, now)
			case "unit-start":
				err = lc.Start(ctx, tenantID, unitID, now)
			case "unit-complete":
				err = lc.Complete(ctx, tenantID, unitID, now)
			case "unit-fail":
				err = lc.Fail(ctx, tenantID, unitID, now)
			case "unit-cancel":
				err = lc.Cancel(ctx, tenantID, unitID, now)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "unit %s: %s ok\n", unitID, use)
			return nil
		},
	}
	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	c.Flags().StringVar(&unitID, "unit", "", "fulfillment unit id")
	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("unit")
	return c
}

func newGraphRetimeCmd() *cobra.Command {
	var tenantID, unitID, start, end string
	c := &cobra.Command{
		Use:   "retime",
		Short: "Re-window a unit and re-check its gap bounds",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, d, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			ws, err := time.Parse(time.RFC3339, start)
			if err != nil {
				return fmt.Errorf("invalid --start (want RFC3339): %w", err)
			}
			we, err := time.Parse(time.RFC3339, end)
			if err != nil {
				return fmt.Errorf("invalid --end (want RFC3339): %w", err)
			}

			lc := usecases.UnitLifecycle{Graph: postgres.NewFulfillmentRepo(d)}
			report, err := lc.SetTiming(ctx, tenantID, unitID, ws, we, time.Now().UTC())
			if err != nil {
				return err
			}
			for _, e := range report.Edges {
				fmt.Fprintf(os.Stdout, "%s -> %s\t%s\n", e.PredecessorID, e.SuccessorID, e.Code)
			}
			if report.OK() {
				fmt.Fprintln(os.Stdout, "graph ok")
			}
			return nil
		},
	}
	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	c.Flags().StringVar(&unitID, "unit", "", "fulfillment unit id")
	c.Flags().StringVar(&start, "start", "", "new start, RFC3339")
	c.Flags().StringVar(&end, "end", "", "new end, RFC3339")
	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("unit")
	_ = c.MarkFlagRequired("start")
	_ = c.MarkFlagRequired("end")
	return c
}

func newGraphBuildCmd() *cobra.Command {
	var tenantID, orderID string
	c := &cobra.Command{
		Use:   "build",
		Short: "Expand an order into fulfillment units and edges",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, d, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			build := usecases.BuildGraph{
				Occurrences: postgres.NewOccurrenceRepo(d),
				Templates:   catalog.New(cfg.CatalogBaseURL),
				Graph:       postgres.NewFulfillmentRepo(d),
			}
			units, deps, err := build.Execute(ctx, tenantID, orderID, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "built %d units, %d edges\n", len(units), len(deps))
			return nil
		},
	}
	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	c.Flags().StringVar(&orderID, "order", "", "order id")
	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("order")
	return c
}

func newGraphValidateCmd() *cobra.Command {
	var tenantID, orderID string
	c := &cobra.Command{
		Use:   "validate",
		Short: "Validate an order's graph (cycles, gap bounds)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, d, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			validate := usecases.ValidateGraph{Graph: postgres.NewFulfillmentRepo(d)}
			report, err := validate.Execute(ctx, tenantID, orderID)
			if err != nil {
				return err
			}
			if report.Cyclic {
				fmt.Fprintf(os.Stdout, "CYCLE: units %v\n", report.CycleUnitIDs)
			}
			for _, e := range report.Edges {
				fmt.Fprintf(os.Stdout, "%s -> %s\t%s", e.PredecessorID, e.SuccessorID, e.Code)
				if e.Code == fulfillment.VerdictGapViolation && e.HardBlock {
					fmt.Fprint(os.Stdout, "\t(hard block)")
				}
				fmt.Fprintln(os.Stdout)
			}
			if report.OK() {
				fmt.Fprintln(os.Stdout, "graph ok")
			}
			return nil
		},
	}
	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	c.Flags().StringVar(&orderID, "order", "", "order id")
	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("order")
	return c
}
