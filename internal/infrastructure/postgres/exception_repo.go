package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/example/opsched/internal/db"
	"github.com/example/opsched/internal/domain/contract"
)

type ExceptionRepo struct{ db *db.DB }

func NewExceptionRepo(d *db.DB) *ExceptionRepo { return &ExceptionRepo{db: d} }

// Create persists one exception. The action union flattens into the
// per-kind columns; Validate has already enforced the shape.
func (r *ExceptionRepo) Create(ctx context.Context, e contract.Exception) error {
	if err := e.Validate(); err != nil {
		return err
	}

	var (
		targetKey                    string
		targetDate                   *time.Time
		newStart, newEnd             *time.Time
		newLocationID, newSellableID string
		pauseStart, pauseEnd         *time.Time
		reason                       string
	)
	switch a := e.Action.(type) {
	case contract.Skip:
		targetKey, targetDate = splitTarget(a.Target)
		reason = a.Reason
	case contract.Cancel:
		targetKey, targetDate = splitTarget(a.Target)
		reason = a.Reason
	case contract.Reschedule:
		targetKey, targetDate = splitTarget(a.Target)
		newStart = &a.NewStart
		if !a.NewEnd.IsZero() {
			newEnd = &a.NewEnd
		}
		newLocationID = a.NewLocationID
		newSellableID = a.NewSellableID
	case contract.Pause:
		pauseStart, pauseEnd = &a.Start, &a.End
	default:
		return fmt.Errorf("unknown exception action %T", e.Action)
	}

	return r.db.Exec(ctx, `
INSERT INTO contract_exceptions
	(tenant_id, id, contract_id, action, target_key, target_date, new_start, new_end,
	 new_location_id, new_sellable_id, pause_start, pause_end, reason, active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		e.TenantID, e.ID, e.ContractID, e.Action.Kind(), targetKey, targetDate, newStart, newEnd,
		newLocationID, newSellableID, pauseStart, pauseEnd, reason, e.Active, e.CreatedAt,
	)
}

// Deactivate toggles an exception inactive. Exceptions are never deleted.
func (r *ExceptionRepo) Deactivate(ctx context.Context, tenantID, id string) error {
	n, err := r.db.ExecAffected(ctx, `
UPDATE contract_exceptions SET active=FALSE WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *ExceptionRepo) ListActive(ctx context.Context, tenantID, contractID string) ([]contract.Exception, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, action, target_key, target_date, new_start, new_end, new_location_id, new_sellable_id,
       pause_start, pause_end, reason, active, created_at
FROM contract_exceptions
WHERE tenant_id=$1 AND contract_id=$2 AND active
ORDER BY created_at`, tenantID, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []contract.Exception
	for rows.Next() {
		var (
			e                            contract.Exception
			kind                         contract.ActionKind
			targetKey                    string
			targetDate                   *time.Time
			newStart, newEnd             *time.Time
			newLocationID, newSellableID string
			pauseStart, pauseEnd         *time.Time
			reason                       string
		)
		if err := rows.Scan(&e.ID, &kind, &targetKey, &targetDate, &newStart, &newEnd,
			&newLocationID, &newSellableID, &pauseStart, &pauseEnd, &reason, &e.Active, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.TenantID = tenantID
		e.ContractID = contractID

		target := joinTarget(targetKey, targetDate)
		switch kind {
		case contract.ActionSkip:
			e.Action = contract.Skip{Target: target, Reason: reason}
		case contract.ActionCancel:
			e.Action = contract.Cancel{Target: target, Reason: reason}
		case contract.ActionReschedule:
			a := contract.Reschedule{Target: target, NewLocationID: newLocationID, NewSellableID: newSellableID}
			if newStart != nil {
				a.NewStart = *newStart
			}
			if newEnd != nil {
				a.NewEnd = *newEnd
			}
			e.Action = a
		case contract.ActionPause:
			a := contract.Pause{}
			if pauseStart != nil {
				a.Start = *pauseStart
			}
			if pauseEnd != nil {
				a.End = *pauseEnd
			}
			e.Action = a
		default:
			return nil, fmt.Errorf("exception %s: unknown action %q", e.ID, kind)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func splitTarget(t contract.Target) (string, *time.Time) {
	if t.Key != "" {
		return t.Key, nil
	}
	d := t.Date
	return "", &d
}

func joinTarget(key string, date *time.Time) contract.Target {
	t := contract.Target{Key: key}
	if date != nil {
		t.Date = *date
	}
	return t
}
