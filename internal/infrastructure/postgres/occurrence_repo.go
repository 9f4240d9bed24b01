package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/opsched/internal/db"
	"github.com/example/opsched/internal/domain/contract"
	"github.com/example/opsched/internal/internaltypes"
)

type OccurrenceRepo struct{ db *db.DB }

func NewOccurrenceRepo(d *db.DB) *OccurrenceRepo { return &OccurrenceRepo{db: d} }

const occurrenceColumns = `tenant_id, occurrence_key, id, contract_id, planned_start, planned_end,
	status, order_id, location_id, sellable_id, reason, generated_at, created_at, updated_at`

// UpsertPlanned writes the planner's candidate set. Existing rows are left
// untouched (ON CONFLICT DO NOTHING on the deterministic key), which makes
// repeated expansion and racing workers converge on the same row set.
// Returns the number of rows actually created.
func (r *OccurrenceRepo) UpsertPlanned(ctx context.Context, tenantID, contractID string, planned []contract.PlannedOccurrence, now time.Time) (int, error) {
	created := 0
	for _, p := range planned {
		n, err := r.db.ExecAffected(ctx, `
INSERT INTO occurrences (`+occurrenceColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,NULL,$8,$9,$10,$11,$11,$11)
ON CONFLICT (tenant_id, occurrence_key) DO NOTHING`,
			tenantID, p.Key, uuid.NewString(), contractID, p.Start, p.End,
			p.Status, p.LocationID, p.SellableID, p.Reason, now,
		)
		if err != nil {
			return created, err
		}
		created += int(n)
	}
	return created, nil
}

func (r *OccurrenceRepo) GetByKey(ctx context.Context, tenantID, key string) (contract.Occurrence, error) {
	row := r.db.QueryRow(ctx, `SELECT `+occurrenceColumns+` FROM occurrences WHERE tenant_id=$1 AND occurrence_key=$2`, tenantID, key)
	return scanOccurrence(row)
}

func (r *OccurrenceRepo) GetByOrder(ctx context.Context, tenantID, orderID string) (contract.Occurrence, error) {
	row := r.db.QueryRow(ctx, `SELECT `+occurrenceColumns+` FROM occurrences WHERE tenant_id=$1 AND order_id=$2`, tenantID, orderID)
	return scanOccurrence(row)
}

func (r *OccurrenceRepo) ListByContract(ctx context.Context, tenantID, contractID string) ([]contract.Occurrence, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+occurrenceColumns+` FROM occurrences
WHERE tenant_id=$1 AND contract_id=$2
ORDER BY planned_start`, tenantID, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOccurrences(rows)
}

// MarkGenerated promotes a contract's freshly planned rows to generated,
// the state the planner leaves behind once a pass has persisted them.
// Returns the number of rows promoted.
func (r *OccurrenceRepo) MarkGenerated(ctx context.Context, tenantID, contractID string, now time.Time) (int, error) {
	n, err := r.db.ExecAffected(ctx, `
UPDATE occurrences SET status=$3, updated_at=$4
WHERE tenant_id=$1 AND contract_id=$2 AND status='planned'`,
		tenantID, contractID, contract.OccurrenceGenerated, now)
	return int(n), err
}

// DueForMaterialization returns unbooked occurrences starting within the
// lead window whose contract has auto-create set.
func (r *OccurrenceRepo) DueForMaterialization(ctx context.Context, now time.Time, lead time.Duration, limit int) ([]contract.Occurrence, error) {
	rows, err := r.db.Query(ctx, `
SELECT o.tenant_id, o.occurrence_key, o.id, o.contract_id, o.planned_start, o.planned_end,
       o.status, o.order_id, o.location_id, o.sellable_id, o.reason, o.generated_at, o.created_at, o.updated_at
FROM occurrences o
JOIN standing_contracts c ON c.tenant_id = o.tenant_id AND c.id = o.contract_id
WHERE o.status IN ('planned','generated') AND c.auto_create AND c.status = 'active'
  AND o.planned_start <= $1 AND o.planned_start > $2
ORDER BY o.planned_start
LIMIT $3`, now.Add(lead), now.Add(-lead), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOccurrences(rows)
}

// LinkOrder is the materialization check-and-set: the order link is written
// only while it is still null. A racing worker that loses the conditional
// update observes ErrAlreadyBooked and discards its work.
func (r *OccurrenceRepo) LinkOrder(ctx context.Context, tenantID, key, orderID string, now time.Time) error {
	n, err := r.db.ExecAffected(ctx, `
UPDATE occurrences
SET order_id=$3, status=$4, updated_at=$5
WHERE tenant_id=$1 AND occurrence_key=$2 AND order_id IS NULL AND status IN ('planned','generated')`,
		tenantID, key, orderID, contract.OccurrenceBooked, now)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetByKey(ctx, tenantID, key); err != nil {
			return err
		}
		return internaltypes.ErrAlreadyBooked
	}
	return nil
}

// SetStatus applies a terminal or intermediate transition. generated_at is
// deliberately absent from the SET list: the anchor is never overwritten.
func (r *OccurrenceRepo) SetStatus(ctx context.Context, tenantID, key string, from []contract.OccurrenceStatus, to contract.OccurrenceStatus, reason string, now time.Time) error {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	n, err := r.db.ExecAffected(ctx, `
UPDATE occurrences
SET status=$3, reason=CASE WHEN $4 <> '' THEN $4 ELSE reason END, updated_at=$5
WHERE tenant_id=$1 AND occurrence_key=$2 AND status = ANY($6)`,
		tenantID, key, to, reason, now, states)
	if err != nil {
		return err
	}
	if n == 0 {
		cur, err := r.GetByKey(ctx, tenantID, key)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: occurrence %s %s -> %s", internaltypes.ErrInvalidTransition, key, cur.Status, to)
	}
	return nil
}

func scanOccurrence(row db.Row) (contract.Occurrence, error) {
	var o contract.Occurrence
	err := row.Scan(
		&o.TenantID, &o.Key, &o.ID, &o.ContractID, &o.PlannedStart, &o.PlannedEnd,
		&o.Status, &o.OrderID, &o.LocationID, &o.SellableID, &o.Reason, &o.GeneratedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return contract.Occurrence{}, db.WrapNotFound(err)
	}
	return o, nil
}

func collectOccurrences(rows db.Rows) ([]contract.Occurrence, error) {
	var out []contract.Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
