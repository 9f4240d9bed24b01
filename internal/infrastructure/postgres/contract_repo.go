package postgres

import (
	"context"
	"time"

	"github.com/example/opsched/internal/db"
	"github.com/example/opsched/internal/domain/contract"
)

type ContractRepo struct{ db *db.DB }

func NewContractRepo(d *db.DB) *ContractRepo { return &ContractRepo{db: d} }

const contractColumns = `tenant_id, id, customer_id, customer_kind, anchor_at, timezone, recurrence, duration_min,
	effective_start, effective_end, max_ahead_days, auto_create,
	policy_sellable_id, policy_location_id, policy_party_size, policy_notes,
	status, last_generated_at, next_planned_at, created_at, updated_at`

func (r *ContractRepo) Create(ctx context.Context, c contract.Contract) error {
	return r.db.Exec(ctx, `
INSERT INTO standing_contracts (`+contractColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		c.TenantID, c.ID, c.CustomerID, c.CustomerKind, c.AnchorAt, c.Timezone, c.Recurrence, c.DurationMin,
		c.EffectiveStart, c.EffectiveEnd, c.MaxAheadDays, c.AutoCreate,
		c.Policy.SellableID, c.Policy.LocationID, c.Policy.PartySize, c.Policy.Notes,
		c.Status, c.LastGeneratedAt, c.NextPlannedAt, c.CreatedAt, c.UpdatedAt,
	)
}

func (r *ContractRepo) GetByID(ctx context.Context, tenantID, id string) (contract.Contract, error) {
	row := r.db.QueryRow(ctx, `SELECT `+contractColumns+` FROM standing_contracts WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	return scanContract(row)
}

func (r *ContractRepo) ListByTenant(ctx context.Context, tenantID string) ([]contract.Contract, error) {
	rows, err := r.db.Query(ctx, `SELECT `+contractColumns+` FROM standing_contracts WHERE tenant_id=$1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []contract.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DueForGeneration returns active contracts whose next planned instant has
// arrived or was never computed. Ordering by next_planned_at keeps the
// sweep fair across tenants.
func (r *ContractRepo) DueForGeneration(ctx context.Context, now time.Time, limit int) ([]contract.Contract, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+contractColumns+`
FROM standing_contracts
WHERE status='active' AND (next_planned_at IS NULL OR next_planned_at <= $1)
ORDER BY next_planned_at NULLS FIRST
LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []contract.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ContractRepo) SetStatus(ctx context.Context, tenantID, id string, status contract.Status, now time.Time) error {
	n, err := r.db.ExecAffected(ctx, `
UPDATE standing_contracts SET status=$3, updated_at=$4 WHERE tenant_id=$1 AND id=$2`, tenantID, id, status, now)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

// UpdateBookkeeping records the planner's generation watermark.
func (r *ContractRepo) UpdateBookkeeping(ctx context.Context, tenantID, id string, lastGeneratedAt time.Time, nextPlannedAt *time.Time) error {
	return r.db.Exec(ctx, `
UPDATE standing_contracts
SET last_generated_at=$3, next_planned_at=$4, updated_at=$3
WHERE tenant_id=$1 AND id=$2`, tenantID, id, lastGeneratedAt, nextPlannedAt)
}

func scanContract(row db.Row) (contract.Contract, error) {
	var c contract.Contract
	err := row.Scan(
		&c.TenantID, &c.ID, &c.CustomerID, &c.CustomerKind, &c.AnchorAt, &c.Timezone, &c.Recurrence, &c.DurationMin,
		&c.EffectiveStart, &c.EffectiveEnd, &c.MaxAheadDays, &c.AutoCreate,
		&c.Policy.SellableID, &c.Policy.LocationID, &c.Policy.PartySize, &c.Policy.Notes,
		&c.Status, &c.LastGeneratedAt, &c.NextPlannedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return contract.Contract{}, db.WrapNotFound(err)
	}
	return c, nil
}
