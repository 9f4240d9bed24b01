package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/example/opsched/internal/domain/fulfillment"
)

// UnitLifecycle drives guarded status changes on fulfillment units. The
// conditional store update keeps a racing terminal transition from being
// resurrected.
type UnitLifecycle struct {
	Graph GraphStore
}

func (u UnitLifecycle) MarkReady(ctx context.Context, tenantID, unitID string, now time.Time) error {
	return u.Graph.SetUnitStatus(ctx, tenantID, unitID,
		[]fulfillment.UnitStatus{fulfillment.UnitPlanned}, fulfillment.UnitReady, now)
}

func (u UnitLifecycle) Start(ctx context.Context, tenantID, unitID string, now time.Time) error {
	return u.Graph.SetUnitStatus(ctx, tenantID, unitID,
		[]fulfillment.UnitStatus{fulfillment.UnitReady}, fulfillment.UnitInProgress, now)
}

func (u UnitLifecycle) Complete(ctx context.Context, tenantID, unitID string, now time.Time) error {
	return u.Graph.SetUnitStatus(ctx, tenantID, unitID,
		[]fulfillment.UnitStatus{fulfillment.UnitInProgress}, fulfillment.UnitCompleted, now)
}

func (u UnitLifecycle) Fail(ctx context.Context, tenantID, unitID string, now time.Time) error {
	return u.Graph.SetUnitStatus(ctx, tenantID, unitID,
		[]fulfillment.UnitStatus{fulfillment.UnitPlanned, fulfillment.UnitReady, fulfillment.UnitInProgress},
		fulfillment.UnitFailed, now)
}

func (u UnitLifecycle) Cancel(ctx context.Context, tenantID, unitID string, now time.Time) error {
	return u.Graph.SetUnitStatus(ctx, tenantID, unitID,
		[]fulfillment.UnitStatus{fulfillment.UnitPlanned, fulfillment.UnitReady, fulfillment.UnitInProgress},
		fulfillment.UnitCancelled, now)
}

// SetTiming places (or moves) a unit's planned window and returns the
// refreshed validation report, so the caller sees which gap verdicts the
// move changed.
func (u UnitLifecycle) SetTiming(ctx context.Context, tenantID, unitID string, start, end time.Time, now time.Time) (fulfillment.Report, error) {
	if !end.After(start) {
		return fulfillment.Report{}, fmt.Errorf("unit timing end must be after start")
	}
	unit, err := u.Graph.GetUnit(ctx, tenantID, unitID)
	if err != nil {
		return fulfillment.Report{}, err
	}
	if err := u.Graph.SetUnitTiming(ctx, tenantID, unitID, start, end, now); err != nil {
		return fulfillment.Report{}, err
	}
	units, deps, err := u.Graph.LoadGraph(ctx, tenantID, unit.OrderID)
	if err != nil {
		return fulfillment.Report{}, err
	}
	return fulfillment.Validate(unit.OrderID, units, deps), nil
}
