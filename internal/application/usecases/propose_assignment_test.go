package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/opsched/internal/domain/assignment"
	"github.com/example/opsched/internal/domain/fulfillment"
	"github.com/example/opsched/internal/internaltypes"
)

// seedUnit plants one schedulable unit with planned timing in the graph.
func seedUnit(graph *fakeGraph, orderID string, start, end time.Time) fulfillment.Unit {
	u := fulfillment.Unit{
		ID:           uuid.NewString(),
		TenantID:     "t1",
		OrderID:      orderID,
		ComponentID:  "serve",
		Kind:         fulfillment.KindServiceTask,
		Status:       fulfillment.UnitPlanned,
		PlannedStart: &start,
		PlannedEnd:   &end,
	}
	graph.units = append(graph.units, u)
	return u
}

func proposalFor(unitID string, startHour, endHour int) ProposalInput {
	return ProposalInput{
		UnitID:     unitID,
		ResourceID: "staff-1",
		Window: assignment.Window{
			Start: time.Date(2026, 2, 3, startHour, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 2, 3, endHour, 0, 0, 0, time.UTC),
		},
		Policy: assignment.EnforceNoOverlap,
		Role:   "server",
		Actor:  "ops@t1",
	}
}

func TestProposeAssignment_ReservesAndLogsEvent(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	graph := &fakeGraph{}
	unit := seedUnit(graph, "ord-1",
		time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 3, 16, 0, 0, 0, time.UTC))
	store := newFakeAssignments()
	uc := ProposeAssignment{Graph: graph, Assignments: store}

	a, err := uc.Execute(ctx, "t1", proposalFor(unit.ID, 14, 16), now)
	require.NoError(t, err)
	assert.Equal(t, assignment.StatusReserved, a.Status)
	assert.Equal(t, "staff-1", a.ResourceID)

	events, err := store.ListEvents(ctx, "t1", a.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, assignment.EventCreated, events[0].Type)
	assert.Nil(t, events[0].Before)
	assert.Equal(t, assignment.StatusReserved, events[0].After.Status)
}

func TestProposeAssignment_OverlapRejected(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	graph := &fakeGraph{}
	u1 := seedUnit(graph, "ord-1",
		time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 3, 16, 0, 0, 0, time.UTC))
	u2 := seedUnit(graph, "ord-2",
		time.Date(2026, 2, 3, 15, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 3, 17, 0, 0, 0, time.UTC))
	store := newFakeAssignments()
	uc := ProposeAssignment{Graph: graph, Assignments: store}

	_, err := uc.Execute(ctx, "t1", proposalFor(u1.ID, 14, 16), now)
	require.NoError(t, err)

	_, err = uc.Execute(ctx, "t1", proposalFor(u2.ID, 15, 17), now)
	require.ErrorIs(t, err, internaltypes.ErrResourceConflict)
}

func TestProposeAssignment_BackToBackAllowed(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	graph := &fakeGraph{}
	u1 := seedUnit(graph, "ord-1",
		time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 3, 16, 0, 0, 0, time.UTC))
	u2 := seedUnit(graph, "ord-2",
		time.Date(2026, 2, 3, 16, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 3, 18, 0, 0, 0, time.UTC))
	store := newFakeAssignments()
	uc := ProposeAssignment{Graph: graph, Assignments: store}

	_, err := uc.Execute(ctx, "t1", proposalFor(u1.ID, 14, 16), now)
	require.NoError(t, err)

	// Half-open windows: ending at 16:00 and starting at 16:00 coexist.
	_, err = uc.Execute(ctx, "t1", proposalFor(u2.ID, 16, 18), now)
	require.NoError(t, err)
}

func TestProposeAssignment_AllowOverlapOptsOut(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	graph := &fakeGraph{}
	u1 := seedUnit(graph, "ord-1",
		time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 3, 16, 0, 0, 0, time.UTC))
	u2 := seedUnit(graph, "ord-2",
		time.Date(2026, 2, 3, 15, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 3, 17, 0, 0, 0, time.UTC))
	store := newFakeAssignments()
	uc := ProposeAssignment{Graph: graph, Assignments: store}

	_, err := uc.Execute(ctx, "t1", proposalFor(u1.ID, 14, 16), now)
	require.NoError(t, err)

	overlapping := proposalFor(u2.ID, 15, 17)
	overlapping.Policy = assignment.AllowOverlap
	_, err = uc.Execute(ctx, "t1", overlapping, now)
	require.NoError(t, err, "explicit opt-out skips exclusion")
}

func TestProposeAssignment_BlockedUnitRejected(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	graph := &fakeGraph{}

	// Two units whose hard finish-to-start edge is violated by 90 minutes
	// over a 60-minute cap: the successor is blocked.
	pred := seedUnit(graph, "ord-1",
		time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 3, 11, 0, 0, 0, time.UTC))
	succ := seedUnit(graph, "ord-1",
		time.Date(2026, 2, 3, 13, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC))
	maxGap := 60
	graph.deps = append(graph.deps, fulfillment.Dependency{
		ID: uuid.NewString(), TenantID: "t1", OrderID: "ord-1",
		PredecessorID: pred.ID, SuccessorID: succ.ID,
		Type: fulfillment.FinishToStart, MaxGapMin: &maxGap, HardBlock: true,
	})
	uc := ProposeAssignment{Graph: graph, Assignments: newFakeAssignments()}

	_, err := uc.Execute(ctx, "t1", proposalFor(succ.ID, 13, 14), now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")

	// The predecessor itself is not blocked.
	_, err = uc.Execute(ctx, "t1", proposalFor(pred.ID, 10, 11), now)
	require.NoError(t, err)
}

func TestProposeAssignment_CyclicGraphRejected(t *testing.T) {
	ctx := context.Background()
	graph := &fakeGraph{}
	u1 := seedUnit(graph, "ord-1",
		time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 3, 11, 0, 0, 0, time.UTC))
	u2 := seedUnit(graph, "ord-1",
		time.Date(2026, 2, 3, 11, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC))
	graph.deps = append(graph.deps,
		fulfillment.Dependency{ID: uuid.NewString(), TenantID: "t1", OrderID: "ord-1",
			PredecessorID: u1.ID, SuccessorID: u2.ID, Type: fulfillment.FinishToStart},
		fulfillment.Dependency{ID: uuid.NewString(), TenantID: "t1", OrderID: "ord-1",
			PredecessorID: u2.ID, SuccessorID: u1.ID, Type: fulfillment.FinishToStart},
	)
	uc := ProposeAssignment{Graph: graph, Assignments: newFakeAssignments()}

	_, err := uc.Execute(ctx, "t1", proposalFor(u1.ID, 10, 11), time.Now())
	require.ErrorIs(t, err, internaltypes.ErrCycleDetected)
}

func TestProposeAssignment_UnknownUnit(t *testing.T) {
	uc := ProposeAssignment{Graph: &fakeGraph{}, Assignments: newFakeAssignments()}
	_, err := uc.Execute(context.Background(), "t1", proposalFor("ghost", 14, 16), time.Now())
	require.Error(t, err)
}
