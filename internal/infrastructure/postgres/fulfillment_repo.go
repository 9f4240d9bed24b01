package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/example/opsched/internal/db"
	"github.com/example/opsched/internal/domain/fulfillment"
	"github.com/example/opsched/internal/internaltypes"
)

type FulfillmentRepo struct{ db *db.DB }

func NewFulfillmentRepo(d *db.DB) *FulfillmentRepo { return &FulfillmentRepo{db: d} }

// SaveGraph persists an order's units and edges in one transaction, so a
// half-written graph is never observable. Every row must belong to the
// same tenant.
func (r *FulfillmentRepo) SaveGraph(ctx context.Context, units []fulfillment.Unit, deps []fulfillment.Dependency) error {
	if err := sameTenant(units, deps); err != nil {
		return err
	}
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		for _, u := range units {
			if _, err := tx.Exec(ctx, `
INSERT INTO fulfillment_units
	(tenant_id, id, order_id, component_id, kind, status, planned_start, planned_end, location_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
				u.TenantID, u.ID, u.OrderID, u.ComponentID, u.Kind, u.Status,
				u.PlannedStart, u.PlannedEnd, u.LocationID, u.CreatedAt, u.UpdatedAt,
			); err != nil {
				return err
			}
		}
		for _, d := range deps {
			if _, err := tx.Exec(ctx, `
INSERT INTO fulfillment_dependencies
	(tenant_id, id, order_id, predecessor_id, successor_id, dep_type, min_gap_min, max_gap_min, hard_block, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
				d.TenantID, d.ID, d.OrderID, d.PredecessorID, d.SuccessorID, d.Type,
				d.MinGapMin, d.MaxGapMin, d.HardBlock, d.CreatedAt,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func sameTenant(units []fulfillment.Unit, deps []fulfillment.Dependency) error {
	tenant := ""
	for _, u := range units {
		if tenant == "" {
			tenant = u.TenantID
		}
		if u.TenantID != tenant {
			return fmt.Errorf("%w: unit %s belongs to %s, graph to %s", internaltypes.ErrTenantMismatch, u.ID, u.TenantID, tenant)
		}
	}
	for _, d := range deps {
		if d.TenantID != tenant {
			return fmt.Errorf("%w: dependency %s belongs to %s, graph to %s", internaltypes.ErrTenantMismatch, d.ID, d.TenantID, tenant)
		}
	}
	return nil
}

func (r *FulfillmentRepo) LoadGraph(ctx context.Context, tenantID, orderID string) ([]fulfillment.Unit, []fulfillment.Dependency, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, component_id, kind, status, planned_start, planned_end, actual_start, actual_end, location_id, created_at, updated_at
FROM fulfillment_units
WHERE tenant_id=$1 AND order_id=$2
ORDER BY created_at, id`, tenantID, orderID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var units []fulfillment.Unit
	for rows.Next() {
		u := fulfillment.Unit{TenantID: tenantID, OrderID: orderID}
		if err := rows.Scan(&u.ID, &u.ComponentID, &u.Kind, &u.Status,
			&u.PlannedStart, &u.PlannedEnd, &u.ActualStart, &u.ActualEnd,
			&u.LocationID, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, nil, err
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	depRows, err := r.db.Query(ctx, `
SELECT id, predecessor_id, successor_id, dep_type, min_gap_min, max_gap_min, hard_block, created_at
FROM fulfillment_dependencies
WHERE tenant_id=$1 AND order_id=$2
ORDER BY created_at, id`, tenantID, orderID)
	if err != nil {
		return nil, nil, err
	}
	defer depRows.Close()

	var deps []fulfillment.Dependency
	for depRows.Next() {
		d := fulfillment.Dependency{TenantID: tenantID, OrderID: orderID}
		if err := depRows.Scan(&d.ID, &d.PredecessorID, &d.SuccessorID, &d.Type,
			&d.MinGapMin, &d.MaxGapMin, &d.HardBlock, &d.CreatedAt); err != nil {
			return nil, nil, err
		}
		deps = append(deps, d)
	}
	return units, deps, depRows.Err()
}

func (r *FulfillmentRepo) GetUnit(ctx context.Context, tenantID, unitID string) (fulfillment.Unit, error) {
	u := fulfillment.Unit{TenantID: tenantID}
	err := r.db.QueryRow(ctx, `
SELECT id, order_id, component_id, kind, status, planned_start, planned_end, actual_start, actual_end, location_id, created_at, updated_at
FROM fulfillment_units
WHERE tenant_id=$1 AND id=$2`, tenantID, unitID).Scan(
		&u.ID, &u.OrderID, &u.ComponentID, &u.Kind, &u.Status,
		&u.PlannedStart, &u.PlannedEnd, &u.ActualStart, &u.ActualEnd,
		&u.LocationID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fulfillment.Unit{}, db.WrapNotFound(err)
	}
	return u, nil
}

// SetUnitStatus applies a guarded status change: the update only lands if
// the unit is still in one of the expected states, so in-flight work that
// raced a terminal transition aborts instead of resurrecting the unit.
// Execution timestamps ride along: entering in_progress stamps
// actual_start, reaching completed or failed stamps actual_end.
func (r *FulfillmentRepo) SetUnitStatus(ctx context.Context, tenantID, unitID string, from []fulfillment.UnitStatus, to fulfillment.UnitStatus, now time.Time) error {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	n, err := r.db.ExecAffected(ctx, `
UPDATE fulfillment_units
SET status=$3, updated_at=$4,
    actual_start=CASE WHEN $3 = 'in_progress' THEN $4 ELSE actual_start END,
    actual_end=CASE WHEN $3 IN ('completed','failed') THEN $4 ELSE actual_end END
WHERE tenant_id=$1 AND id=$2 AND status = ANY($5)`, tenantID, unitID, to, now, states)
	if err != nil {
		return err
	}
	if n == 0 {
		cur, err := r.GetUnit(ctx, tenantID, unitID)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: unit %s %s -> %s", internaltypes.ErrInvalidTransition, unitID, cur.Status, to)
	}
	return nil
}

func (r *FulfillmentRepo) SetUnitTiming(ctx context.Context, tenantID, unitID string, start, end time.Time, now time.Time) error {
	n, err := r.db.ExecAffected(ctx, `
UPDATE fulfillment_units SET planned_start=$3, planned_end=$4, updated_at=$5
WHERE tenant_id=$1 AND id=$2`, tenantID, unitID, start, end, now)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}
