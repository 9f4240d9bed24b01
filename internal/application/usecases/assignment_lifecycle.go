package usecases

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/example/opsched/internal/domain/assignment"
)

// AssignmentLifecycle drives guarded transitions on an existing
// assignment. Every change appends a snapshot-diff event; reassignment
// additionally re-runs the overlap check inside the store transaction.
type AssignmentLifecycle struct {
	Assignments AssignmentStore
}

func (u AssignmentLifecycle) Confirm(ctx context.Context, tenantID, id, actor string, now time.Time) (assignment.Assignment, error) {
	return u.transition(ctx, tenantID, id, assignment.StatusConfirmed, actor, "", now)
}

func (u AssignmentLifecycle) Start(ctx context.Context, tenantID, id, actor string, now time.Time) (assignment.Assignment, error) {
	return u.transition(ctx, tenantID, id, assignment.StatusInProgress, actor, "", now)
}

func (u AssignmentLifecycle) Complete(ctx context.Context, tenantID, id, actor string, now time.Time) (assignment.Assignment, error) {
	return u.transition(ctx, tenantID, id, assignment.StatusCompleted, actor, "", now)
}

func (u AssignmentLifecycle) Cancel(ctx context.Context, tenantID, id, actor, reason string, now time.Time) (assignment.Assignment, error) {
	return u.transition(ctx, tenantID, id, assignment.StatusCancelled, actor, reason, now)
}

func (u AssignmentLifecycle) transition(ctx context.Context, tenantID, id string, to assignment.Status, actor, reason string, now time.Time) (assignment.Assignment, error) {
	a, err := u.Assignments.GetByID(ctx, tenantID, id)
	if err != nil {
		return assignment.Assignment{}, err
	}
	before := a.Snapshot()
	if err := a.Transition(to, now); err != nil {
		return assignment.Assignment{}, err
	}
	ev := assignment.Event{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		AssignmentID: a.ID,
		Type:         assignment.EventTransition,
		Before:       &before,
		After:        a.Snapshot(),
		Actor:        actor,
		Reason:       reason,
		At:           now,
	}
	if err := u.Assignments.Update(ctx, a, ev, false); err != nil {
		return assignment.Assignment{}, err
	}
	return a, nil
}

// Reassign moves an assignment to a new resource and/or window. Because
// the occupied slot changes, exclusivity is re-validated atomically with
// the write.
func (u AssignmentLifecycle) Reassign(ctx context.Context, tenantID, id, newResource string, newWindow *assignment.Window, actor, reason string, now time.Time) (assignment.Assignment, error) {
	a, err := u.Assignments.GetByID(ctx, tenantID, id)
	if err != nil {
		return assignment.Assignment{}, err
	}
	before := a.Snapshot()
	if err := a.Reassign(newResource, newWindow, now); err != nil {
		return assignment.Assignment{}, err
	}
	ev := assignment.Event{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		AssignmentID: a.ID,
		Type:         assignment.EventReassigned,
		Before:       &before,
		After:        a.Snapshot(),
		Actor:        actor,
		Reason:       reason,
		At:           now,
	}
	revalidate := a.Active() && a.Policy == assignment.EnforceNoOverlap
	if err := u.Assignments.Update(ctx, a, ev, revalidate); err != nil {
		return assignment.Assignment{}, err
	}
	return a, nil
}

// History returns the assignment's append-only event log, oldest first.
func (u AssignmentLifecycle) History(ctx context.Context, tenantID, id string) ([]assignment.Event, error) {
	return u.Assignments.ListEvents(ctx, tenantID, id)
}
