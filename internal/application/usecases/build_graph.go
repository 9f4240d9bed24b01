package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/example/opsched/internal/domain/fulfillment"
	"github.com/example/opsched/internal/internaltypes"
)

// BuildGraph expands a confirmed order into fulfillment units and
// dependency edges from the sellable's component template.
type BuildGraph struct {
	Occurrences OccurrenceStore
	Templates   TemplateSource
	Graph       GraphStore
}

func (u BuildGraph) Execute(ctx context.Context, tenantID, orderID string, now time.Time) ([]fulfillment.Unit, []fulfillment.Dependency, error) {
	occ, err := u.Occurrences.GetByOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("order %s: %w", orderID, err)
	}

	tpl, err := u.Templates.Template(ctx, tenantID, occ.SellableID)
	if err != nil {
		return nil, nil, err
	}

	units, deps, err := fulfillment.BuildGraph(fulfillment.OrderRef{
		ID:             orderID,
		TenantID:       tenantID,
		ConfirmedStart: occ.PlannedStart,
		ConfirmedEnd:   occ.PlannedEnd,
	}, tpl, now)
	if err != nil {
		return nil, nil, err
	}

	// A template whose relations form a cycle is rejected outright; nothing
	// is persisted.
	if report := fulfillment.Validate(orderID, units, deps); report.Cyclic {
		return nil, nil, fmt.Errorf("%w: template %s", internaltypes.ErrCycleDetected, tpl.SellableID)
	}

	if err := u.Graph.SaveGraph(ctx, units, deps); err != nil {
		return nil, nil, err
	}
	return units, deps, nil
}

// ValidateGraph checks acyclicity and gap satisfiability for one order's
// graph and returns the per-edge report.
type ValidateGraph struct {
	Graph GraphStore
}

func (u ValidateGraph) Execute(ctx context.Context, tenantID, orderID string) (fulfillment.Report, error) {
	units, deps, err := u.Graph.LoadGraph(ctx, tenantID, orderID)
	if err != nil {
		return fulfillment.Report{}, err
	}
	if len(units) == 0 {
		return fulfillment.Report{}, fmt.Errorf("order %s has no fulfillment graph", orderID)
	}
	return fulfillment.Validate(orderID, units, deps), nil
}
