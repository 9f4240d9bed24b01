package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/opsched/internal/domain/fulfillment"
	"github.com/example/opsched/internal/internaltypes"
)

func TestUnitLifecycle_FullPath(t *testing.T) {
	ctx := context.Background()
	graph := &fakeGraph{}
	unit := seedUnit(graph, "ord-1",
		time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 3, 15, 0, 0, 0, time.UTC))
	lc := UnitLifecycle{Graph: graph}
	now := time.Now()

	require.NoError(t, lc.MarkReady(ctx, "t1", unit.ID, now))
	require.NoError(t, lc.Start(ctx, "t1", unit.ID, now))
	require.NoError(t, lc.Complete(ctx, "t1", unit.ID, now))

	got, err := graph.GetUnit(ctx, "t1", unit.ID)
	require.NoError(t, err)
	assert.Equal(t, fulfillment.UnitCompleted, got.Status)
	require.NotNil(t, got.ActualStart, "starting stamps the execution start")
	require.NotNil(t, got.ActualEnd, "completion stamps the execution end")
	assert.False(t, got.ActualEnd.Before(*got.ActualStart))

	// Terminal units reject further transitions.
	require.Error(t, lc.Fail(ctx, "t1", unit.ID, now))
	require.Error(t, lc.Start(ctx, "t1", unit.ID, now))
}

func TestUnitLifecycle_FailStampsActualEnd(t *testing.T) {
	ctx := context.Background()
	graph := &fakeGraph{}
	unit := seedUnit(graph, "ord-1",
		time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 3, 15, 0, 0, 0, time.UTC))
	lc := UnitLifecycle{Graph: graph}
	now := time.Now()

	require.NoError(t, lc.MarkReady(ctx, "t1", unit.ID, now))
	require.NoError(t, lc.Start(ctx, "t1", unit.ID, now))
	require.NoError(t, lc.Fail(ctx, "t1", unit.ID, now))

	got, err := graph.GetUnit(ctx, "t1", unit.ID)
	require.NoError(t, err)
	assert.Equal(t, fulfillment.UnitFailed, got.Status)
	require.NotNil(t, got.ActualStart)
	require.NotNil(t, got.ActualEnd)
}

func TestUnitLifecycle_GuardedOrder(t *testing.T) {
	ctx := context.Background()
	graph := &fakeGraph{}
	unit := seedUnit(graph, "ord-1",
		time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 3, 15, 0, 0, 0, time.UTC))
	lc := UnitLifecycle{Graph: graph}
	now := time.Now()

	// Planned cannot start or complete without passing through ready; the
	// row exists, so the error names the transition, not a missing unit.
	require.ErrorIs(t, lc.Start(ctx, "t1", unit.ID, now), internaltypes.ErrInvalidTransition)
	require.ErrorIs(t, lc.Complete(ctx, "t1", unit.ID, now), internaltypes.ErrInvalidTransition)

	// Cancellation works from any non-terminal state.
	require.NoError(t, lc.Cancel(ctx, "t1", unit.ID, now))
}

func TestUnitLifecycle_SetTimingRevalidates(t *testing.T) {
	ctx := context.Background()
	graph := &fakeGraph{}
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
	lc := UnitLifecycle{Graph: graph}
	now := time.Now()

	// Moving the successor inside the allowed gap clears the violation.
	report, err := lc.SetTiming(ctx, "t1", succ.ID,
		time.Date(2026, 2, 3, 11, 30, 0, 0, time.UTC),
		time.Date(2026, 2, 3, 12, 30, 0, 0, time.UTC), now)
	require.NoError(t, err)
	assert.True(t, report.OK())
	require.Len(t, report.Edges, 1)
	assert.Equal(t, fulfillment.VerdictOK, report.Edges[0].Code)

	_, err = lc.SetTiming(ctx, "t1", succ.ID,
		time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 3, 11, 0, 0, 0, time.UTC), now)
	require.Error(t, err, "inverted window rejected")

	_, err = lc.SetTiming(ctx, "t1", "ghost",
		time.Date(2026, 2, 3, 11, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC), now)
	require.Error(t, err)
}
