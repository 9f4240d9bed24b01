package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/opsched/internal/application/usecases"
	"github.com/example/opsched/internal/domain/assignment"
	"github.com/example/opsched/internal/infrastructure/postgres"
)

func newAssignmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assignment",
		Short: "Bind resources to fulfillment units",
	}
	cmd.AddCommand(newAssignmentProposeCmd())
	cmd.AddCommand(newAssignmentTransitionCmd("confirm", "Confirm a reserved assignment"))
	cmd.AddCommand(newAssignmentTransitionCmd("start", "Start a confirmed assignment"))
	cmd.AddCommand(newAssignmentTransitionCmd("complete", "Complete an in-progress assignment"))
	cmd.AddCommand(newAssignmentCancelCmd())
	cmd.AddCommand(newAssignmentReassignCmd())
	cmd.AddCommand(newAssignmentListCmd())
	cmd.AddCommand(newAssignmentHistoryCmd())
	return cmd
}

func newAssignmentReassignCmd() *cobra.Command {
	var (
		tenantID   string
		id         string
		resourceID string
		start, end string
		actor      string
		reason     string
	)
	c := &cobra.Command{
		Use:   "reassign",
		Short: "Move an assignment to a new resource and/or window",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, d, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			var w *assignment.Window
			if start != "" || end != "" {
				ws, err := time.Parse(time.RFC3339, start)
				if err != nil {
					return fmt.Errorf("invalid --start (want RFC3339): %w", err)
				}
				we, err := time.Parse(time.RFC3339, end)
				if err != nil {
					return fmt.Errorf("invalid --end (want RFC3339): %w", err)
				}
				w = &assignment.Window{Start: ws, End: we}
			}

			lc := usecases.AssignmentLifecycle{Assignments: postgres.NewAssignmentRepo(d)}
			a, err := lc.Reassign(ctx, tenantID, id, resourceID, w, actor, reason, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "assignment %s -> resource %s\n", a.ID, a.ResourceID)
			return nil
		},
	}
	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	c.Flags().StringVar(&id, "id", "", "assignment id")
	c.Flags().StringVar(&resourceID, "resource", "", "new resource id (optional)")
	c.Flags().StringVar(&start, "start", "", "new window start, RFC3339 (optional, with --end)")
	c.Flags().StringVar(&end, "end", "", "new window end, RFC3339 (optional, with --start)")
	c.Flags().StringVar(&actor, "actor", "cli", "actor recorded on the event")
	c.Flags().StringVar(&reason, "reason", "", "reason recorded on the event")
	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("id")
	return c
}

func newAssignmentListCmd() *cobra.Command {
	var tenantID, unitID string
	c := &cobra.Command{
		Use:   "list",
		Short: "List assignments for a unit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, d, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			as, err := postgres.NewAssignmentRepo(d).ListByUnit(ctx, tenantID, unitID)
			if err != nil {
				return err
			}
			for _, a := range as {
				window := "-"
				if a.Window != nil {
					window = a.Window.Start.Format(time.RFC3339) + " .. " + a.Window.End.Format(time.RFC3339)
				}
				fmt.Fprintf(os.Stdout, "%s\t%s\t%s\t%s\n", a.ID, a.Status, a.ResourceID, window)
			}
			return nil
		},
	}
	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	c.Flags().StringVar(&unitID, "unit", "", "fulfillment unit id")
	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("unit")
	return c
}

func newAssignmentProposeCmd() *cobra.Command {
	var (
		tenantID   string
		unitID     string
		resourceID string
		start, end string
		policy     string
		role       string
		primary    bool
		actor      string
	)
	c := &cobra.Command{
		Use:   "propose",
		Short: "Propose a resource for a unit over a window",
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

			propose := usecases.ProposeAssignment{
				Graph:       postgres.NewFulfillmentRepo(d),
				Assignments: postgres.NewAssignmentRepo(d),
			}
			a, err := propose.Execute(ctx, tenantID, usecases.ProposalInput{
				UnitID:     unitID,
				ResourceID: resourceID,
				Window:     assignment.Window{Start: ws, End: we},
				Policy:     assignment.ConflictPolicy(policy),
				Role:       role,
				Primary:    primary,
				Actor:      actor,
			}, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "assignment %s %s\n", a.ID, a.Status)
			return nil
		},
	}
	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	c.Flags().StringVar(&unitID, "unit", "", "fulfillment unit id")
	c.Flags().StringVar(&resourceID, "resource", "", "resource id")
	c.Flags().StringVar(&start, "start", "", "window start (RFC3339)")
	c.Flags().StringVar(&end, "end", "", "window end (RFC3339)")
	c.Flags().StringVar(&policy, "policy", string(assignment.EnforceNoOverlap), "enforce_no_overlap or allow_overlap")
	c.Flags().StringVar(&role, "role", "", "optional role")
	c.Flags().BoolVar(&primary, "primary", false, "mark as primary assignment")
	c.Flags().StringVar(&actor, "actor", "cli", "actor recorded on the event")
	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("unit")
	_ = c.MarkFlagRequired("resource")
	_ = c.MarkFlagRequired("start")
	_ = c.MarkFlagRequired("end")
	return c
}

func newAssignmentTransitionCmd(use, short string) *cobra.Command {
	var tenantID, id, actor string
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

			lc := usecases.AssignmentLifecycle{Assignments: postgres.NewAssignmentRepo(d)}
			now := time.Now().UTC()

			var a assignment.Assignment
			switch use {
			case "confirm":
				a, err = lc.Confirm(ctx, tenantID, id, actor, now)
			case "start":
				a, err = lc.Start(ctx, tenantID, id, actor, now)
			case "complete":
				a, err = lc.Complete(ctx, tenantID, id, actor, now)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "assignment %s %s\n", a.ID, a.Status)
			return nil
		},
	}
	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	c.Flags().StringVar(&id, "id", "", "assignment id")
	c.Flags().StringVar(&actor, "actor", "cli", "actor recorded on the event")
	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("id")
	return c
}

func newAssignmentCancelCmd() *cobra.Command {
	var tenantID, id, actor, reason string
	c := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel an assignment with a reason",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, d, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			lc := usecases.AssignmentLifecycle{Assignments: postgres.NewAssignmentRepo(d)}
			a, err := lc.Cancel(ctx, tenantID, id, actor, reason, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "assignment %s %s\n", a.ID, a.Status)
			return nil
		},
	}
	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	c.Flags().StringVar(&id, "id", "", "assignment id")
	c.Flags().StringVar(&actor, "actor", "cli", "actor recorded on the event")
	c.Flags().StringVar(&reason, "reason", "", "cancellation reason")
	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("id")
	_ = c.MarkFlagRequired("reason")
	return c
}

func newAssignmentHistoryCmd() *cobra.Command {
	var tenantID, id string
	c := &cobra.Command{
		Use:   "history",
		Short: "Print an assignment's event log",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, d, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			lc := usecases.AssignmentLifecycle{Assignments: postgres.NewAssignmentRepo(d)}
			events, err := lc.History(ctx, tenantID, id)
			if err != nil {
				return err
			}
			for _, ev := range events {
				from := "-"
				if ev.Before != nil {
					from = string(ev.Before.Status)
				}
				fmt.Fprintf(os.Stdout, "%s\t%s\t%s -> %s\t%s\n",
					ev.At.Format(time.RFC3339), ev.Type, from, ev.After.Status, ev.Actor)
			}
			return nil
		},
	}
	c.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	c.Flags().StringVar(&id, "id", "", "assignment id")
	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("id")
	return c
}
