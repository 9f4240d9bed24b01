package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/opsched/internal/domain/assignment"
	"github.com/example/opsched/internal/domain/fulfillment"
	"github.com/example/opsched/internal/internaltypes"
)

// ProposeAssignment binds a resource to a unit over a window. The unit's
// graph is re-validated first: a unit blocked by a cycle or a hard gap
// violation is not eligible for assignment until timings are fixed.
type ProposeAssignment struct {
	Graph       GraphStore
	Assignments AssignmentStore
}

type ProposalInput struct {
	UnitID     string
	ResourceID string
	Window     assignment.Window
	Policy     assignment.ConflictPolicy
	Role       string
	Primary    bool
	Actor      string
}

func (u ProposeAssignment) Execute(ctx context.Context, tenantID string, in ProposalInput, now time.Time) (assignment.Assignment, error) {
	unit, err := u.Graph.GetUnit(ctx, tenantID, in.UnitID)
	if err != nil {
		return assignment.Assignment{}, err
	}

	units, deps, err := u.Graph.LoadGraph(ctx, tenantID, unit.OrderID)
	if err != nil {
		return assignment.Assignment{}, err
	}
	report := fulfillment.Validate(unit.OrderID, units, deps)
	for _, id := range report.CycleUnitIDs {
		if id == in.UnitID {
			return assignment.Assignment{}, fmt.Errorf("%w: unit %s", internaltypes.ErrCycleDetected, in.UnitID)
		}
	}
	for _, blocked := range report.BlockedUnitIDs() {
		if blocked == in.UnitID {
			return assignment.Assignment{}, fmt.Errorf("unit %s is blocked by graph validation", in.UnitID)
		}
	}

	w := in.Window
	a := assignment.Assignment{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		UnitID:     in.UnitID,
		ResourceID: in.ResourceID,
		Window:     &w,
		Policy:     in.Policy,
		Status:     assignment.StatusReserved,
		Role:       in.Role,
		Primary:    in.Primary,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := a.Validate(); err != nil {
		return assignment.Assignment{}, err
	}

	ev := assignment.Event{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		AssignmentID: a.ID,
		Type:         assignment.EventCreated,
		After:        a.Snapshot(),
		Actor:        in.Actor,
		At:           now,
	}

	// The store runs the overlap check atomically with the insert.
	if err := u.Assignments.Propose(ctx, a, ev); err != nil {
		return assignment.Assignment{}, err
	}
	return a, nil
}
