package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/example/opsched/internal/db"
	"github.com/example/opsched/internal/domain/assignment"
	"github.com/example/opsched/internal/internaltypes"
)

type AssignmentRepo struct{ db *db.DB }

func NewAssignmentRepo(d *db.DB) *AssignmentRepo { return &AssignmentRepo{db: d} }

// Propose inserts the assignment and its created event atomically with the
// overlap check. An advisory transaction lock on (tenant, resource)
// serializes concurrent proposals for the same resource, closing the
// stale-read-then-write window.
func (r *AssignmentRepo) Propose(ctx context.Context, a assignment.Assignment, ev assignment.Event) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		if err := lockResource(ctx, tx, a.TenantID, a.ResourceID); err != nil {
			return err
		}
		if a.Policy == assignment.EnforceNoOverlap && a.Window != nil {
			conflict, err := hasOverlap(ctx, tx, a.TenantID, a.ResourceID, *a.Window, "")
			if err != nil {
				return err
			}
			if conflict {
				return fmt.Errorf("%w: resource %s window [%s, %s)", internaltypes.ErrResourceConflict,
					a.ResourceID, a.Window.Start, a.Window.End)
			}
		}
		if err := insertAssignment(ctx, tx, a); err != nil {
			return err
		}
		return insertEvent(ctx, tx, ev)
	})
}

// Update persists a transition or reassignment plus its event. When
// revalidate is set (window, resource, or policy changed into an
// exclusivity-relevant shape) the overlap check reruns under the same
// per-resource serialization as Propose.
func (r *AssignmentRepo) Update(ctx context.Context, a assignment.Assignment, ev assignment.Event, revalidate bool) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		if revalidate {
			if err := lockResource(ctx, tx, a.TenantID, a.ResourceID); err != nil {
				return err
			}
			if a.Policy == assignment.EnforceNoOverlap && a.Window != nil {
				conflict, err := hasOverlap(ctx, tx, a.TenantID, a.ResourceID, *a.Window, a.ID)
				if err != nil {
					return err
				}
				if conflict {
					return fmt.Errorf("%w: resource %s window [%s, %s)", internaltypes.ErrResourceConflict,
						a.ResourceID, a.Window.Start, a.Window.End)
				}
			}
		}

		var windowStart, windowEnd any
		if a.Window != nil {
			windowStart, windowEnd = a.Window.Start, a.Window.End
		}
		tag, err := tx.Exec(ctx, `
UPDATE assignments
SET resource_id=$3, window_start=$4, window_end=$5, conflict_policy=$6, status=$7, updated_at=$8
WHERE tenant_id=$1 AND id=$2`,
			a.TenantID, a.ID, a.ResourceID, windowStart, windowEnd, a.Policy, a.Status, a.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return db.ErrNotFound
		}
		return insertEvent(ctx, tx, ev)
	})
}

func (r *AssignmentRepo) GetByID(ctx context.Context, tenantID, id string) (assignment.Assignment, error) {
	row := r.db.QueryRow(ctx, `
SELECT tenant_id, id, unit_id, resource_id, window_start, window_end, conflict_policy, status, role, is_primary, created_at, updated_at
FROM assignments WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	return scanAssignment(row)
}

func (r *AssignmentRepo) ListByUnit(ctx context.Context, tenantID, unitID string) ([]assignment.Assignment, error) {
	rows, err := r.db.Query(ctx, `
SELECT tenant_id, id, unit_id, resource_id, window_start, window_end, conflict_policy, status, role, is_primary, created_at, updated_at
FROM assignments WHERE tenant_id=$1 AND unit_id=$2 ORDER BY created_at`, tenantID, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []assignment.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListEvents returns the append-only history, oldest first. Folding it
// reconstructs every state the assignment has been through.
func (r *AssignmentRepo) ListEvents(ctx context.Context, tenantID, assignmentID string) ([]assignment.Event, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, event_type,
       before_status, before_resource_id, before_window_start, before_window_end, before_policy,
       after_status, after_resource_id, after_window_start, after_window_end, after_policy,
       actor, reason, occurred_at
FROM assignment_events
WHERE tenant_id=$1 AND assignment_id=$2
ORDER BY occurred_at, id`, tenantID, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []assignment.Event
	for rows.Next() {
		var (
			ev                     assignment.Event
			beforeStatus           *assignment.Status
			beforeResource         *string
			beforePolicy           *assignment.ConflictPolicy
			beforeStart, beforeEnd *time.Time
			afterStart, afterEnd   *time.Time
		)
		if err := rows.Scan(&ev.ID, &ev.Type,
			&beforeStatus, &beforeResource, &beforeStart, &beforeEnd, &beforePolicy,
			&ev.After.Status, &ev.After.ResourceID, &afterStart, &afterEnd, &ev.After.Policy,
			&ev.Actor, &ev.Reason, &ev.At); err != nil {
			return nil, err
		}
		ev.TenantID = tenantID
		ev.AssignmentID = assignmentID
		if beforeStatus != nil {
			ev.Before = &assignment.Snapshot{
				Status:     *beforeStatus,
				ResourceID: deref(beforeResource),
				Window:     windowOf(beforeStart, beforeEnd),
				Policy:     derefPolicy(beforePolicy),
			}
		}
		ev.After.Window = windowOf(afterStart, afterEnd)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func lockResource(ctx context.Context, tx pgx.Tx, tenantID, resourceID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, tenantID+":"+resourceID)
	return err
}

// hasOverlap checks for an active enforce-no-overlap assignment on the
// resource whose half-open window intersects w. excludeID skips the row
// being updated during reassignment.
func hasOverlap(ctx context.Context, tx pgx.Tx, tenantID, resourceID string, w assignment.Window, excludeID string) (bool, error) {
	var conflict bool
	err := tx.QueryRow(ctx, `
SELECT EXISTS(
	SELECT 1 FROM assignments
	WHERE tenant_id=$1 AND resource_id=$2
	  AND status IN ('reserved','confirmed','in_progress')
	  AND conflict_policy='enforce_no_overlap'
	  AND id <> $3
	  AND window_start < $5 AND $4 < window_end
)`, tenantID, resourceID, excludeID, w.Start, w.End).Scan(&conflict)
	return conflict, err
}

func insertAssignment(ctx context.Context, tx pgx.Tx, a assignment.Assignment) error {
	var windowStart, windowEnd any
	if a.Window != nil {
		windowStart, windowEnd = a.Window.Start, a.Window.End
	}
	_, err := tx.Exec(ctx, `
INSERT INTO assignments
	(tenant_id, id, unit_id, resource_id, window_start, window_end, conflict_policy, status, role, is_primary, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		a.TenantID, a.ID, a.UnitID, a.ResourceID, windowStart, windowEnd,
		a.Policy, a.Status, a.Role, a.Primary, a.CreatedAt, a.UpdatedAt)
	return err
}

func insertEvent(ctx context.Context, tx pgx.Tx, ev assignment.Event) error {
	var (
		beforeStatus, beforeResource, beforePolicy any
		beforeStart, beforeEnd                     any
	)
	if ev.Before != nil {
		beforeStatus = ev.Before.Status
		beforeResource = ev.Before.ResourceID
		beforePolicy = ev.Before.Policy
		if ev.Before.Window != nil {
			beforeStart, beforeEnd = ev.Before.Window.Start, ev.Before.Window.End
		}
	}
	var afterStart, afterEnd any
	if ev.After.Window != nil {
		afterStart, afterEnd = ev.After.Window.Start, ev.After.Window.End
	}
	_, err := tx.Exec(ctx, `
INSERT INTO assignment_events
	(tenant_id, id, assignment_id, event_type,
	 before_status, before_resource_id, before_window_start, before_window_end, before_policy,
	 after_status, after_resource_id, after_window_start, after_window_end, after_policy,
	 actor, reason, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		ev.TenantID, ev.ID, ev.AssignmentID, ev.Type,
		beforeStatus, beforeResource, beforeStart, beforeEnd, beforePolicy,
		ev.After.Status, ev.After.ResourceID, afterStart, afterEnd, ev.After.Policy,
		ev.Actor, ev.Reason, ev.At)
	return err
}

func scanAssignment(row db.Row) (assignment.Assignment, error) {
	var (
		a                      assignment.Assignment
		windowStart, windowEnd *time.Time
	)
	err := row.Scan(&a.TenantID, &a.ID, &a.UnitID, &a.ResourceID, &windowStart, &windowEnd,
		&a.Policy, &a.Status, &a.Role, &a.Primary, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return assignment.Assignment{}, db.WrapNotFound(err)
	}
	a.Window = windowOf(windowStart, windowEnd)
	return a, nil
}

func windowOf(start, end *time.Time) *assignment.Window {
	if start == nil || end == nil {
		return nil
	}
	return &assignment.Window{Start: *start, End: *end}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefPolicy(p *assignment.ConflictPolicy) assignment.ConflictPolicy {
	if p == nil {
		return ""
	}
	return *p
}
