package fulfillment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timedUnit(id string, start, end time.Time) Unit {
	return Unit{ID: id, TenantID: "t1", OrderID: "ord-1", Status: UnitPlanned, PlannedStart: &start, PlannedEnd: &end}
}

func untimedUnit(id string) Unit {
	return Unit{ID: id, TenantID: "t1", OrderID: "ord-1", Status: UnitPlanned}
}

func edge(id, pred, succ string, typ DependencyType) Dependency {
	return Dependency{ID: id, TenantID: "t1", OrderID: "ord-1", PredecessorID: pred, SuccessorID: succ, Type: typ}
}

func TestValidate_AcyclicClean(t *testing.T) {
	base := time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC)
	units := []Unit{
		timedUnit("a", base, base.Add(30*time.Minute)),
		timedUnit("b", base.Add(30*time.Minute), base.Add(time.Hour)),
	}
	deps := []Dependency{edge("e1", "a", "b", FinishToStart)}

	report := Validate("ord-1", units, deps)
	assert.True(t, report.OK())
	assert.False(t, report.Cyclic)
	assert.Empty(t, report.BlockedUnitIDs())
	require.Len(t, report.Edges, 1)
	assert.Equal(t, VerdictOK, report.Edges[0].Code)
}

func TestValidate_CycleDetected(t *testing.T) {
	units := []Unit{untimedUnit("a"), untimedUnit("b"), untimedUnit("c"), untimedUnit("d")}
	deps := []Dependency{
		edge("e1", "a", "b", FinishToStart),
		edge("e2", "b", "c", FinishToStart),
		edge("e3", "c", "b", FinishToStart), // b <-> c cycle
		edge("e4", "c", "d", FinishToStart),
	}

	report := Validate("ord-1", units, deps)
	assert.True(t, report.Cyclic)
	assert.False(t, report.OK())

	blocked := report.BlockedUnitIDs()
	assert.Contains(t, blocked, "b")
	assert.Contains(t, blocked, "c")
	assert.Contains(t, blocked, "d", "unit downstream of the cycle never resolves")
	assert.NotContains(t, blocked, "a")
}

func TestValidate_HardGapViolationBlocksSuccessor(t *testing.T) {
	base := time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC)
	units := []Unit{
		timedUnit("a", base, base.Add(30*time.Minute)),
		// b starts 90 minutes after a finishes.
		timedUnit("b", base.Add(2*time.Hour), base.Add(3*time.Hour)),
	}
	dep := edge("e1", "a", "b", FinishToStart)
	dep.MaxGapMin = intp(60)
	dep.HardBlock = true

	report := Validate("ord-1", units, []Dependency{dep})
	assert.False(t, report.OK())
	require.Len(t, report.Edges, 1)
	assert.Equal(t, VerdictGapViolation, report.Edges[0].Code)
	assert.Equal(t, 90, report.Edges[0].ActualGapMin)
	assert.Equal(t, []string{"b"}, report.BlockedUnitIDs())
}

func TestValidate_SoftGapViolationWarnsOnly(t *testing.T) {
	base := time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC)
	units := []Unit{
		timedUnit("a", base, base.Add(30*time.Minute)),
		timedUnit("b", base.Add(2*time.Hour), base.Add(3*time.Hour)),
	}
	dep := edge("e1", "a", "b", FinishToStart)
	dep.MaxGapMin = intp(60)

	report := Validate("ord-1", units, []Dependency{dep})
	assert.True(t, report.OK(), "soft violation does not fail the graph")
	require.Len(t, report.Edges, 1)
	assert.Equal(t, VerdictGapViolation, report.Edges[0].Code)
	assert.Empty(t, report.BlockedUnitIDs())
}

func TestValidate_MinGapViolation(t *testing.T) {
	base := time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC)
	units := []Unit{
		timedUnit("a", base, base.Add(30*time.Minute)),
		// b starts 10 minutes after a finishes; edge demands at least 30.
		timedUnit("b", base.Add(40*time.Minute), base.Add(90*time.Minute)),
	}
	dep := edge("e1", "a", "b", FinishToStart)
	dep.MinGapMin = intp(30)

	report := Validate("ord-1", units, []Dependency{dep})
	require.Len(t, report.Edges, 1)
	assert.Equal(t, VerdictGapViolation, report.Edges[0].Code)
	assert.Equal(t, 10, report.Edges[0].ActualGapMin)
}

func TestValidate_UnresolvedTiming(t *testing.T) {
	base := time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC)
	units := []Unit{
		timedUnit("a", base, base.Add(30*time.Minute)),
		untimedUnit("b"),
	}
	dep := edge("e1", "a", "b", FinishToStart)
	dep.MinGapMin = intp(0)
	dep.HardBlock = true

	report := Validate("ord-1", units, []Dependency{dep})
	assert.True(t, report.OK(), "unresolved timing is not a violation")
	require.Len(t, report.Edges, 1)
	assert.Equal(t, VerdictUnresolved, report.Edges[0].Code)
}

func TestValidate_GapPerDependencyType(t *testing.T) {
	base := time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC)
	a := timedUnit("a", base, base.Add(30*time.Minute))
	b := timedUnit("b", base.Add(45*time.Minute), base.Add(105*time.Minute))
	units := []Unit{a, b}

	cases := []struct {
		typ DependencyType
		gap int
	}{
		{FinishToStart, 15},   // a end 14:30 -> b start 14:45
		{StartToStart, 45},    // a start 14:00 -> b start 14:45
		{FinishToFinish, 75},  // a end 14:30 -> b end 15:45
		{StartToFinish, 105},  // a start 14:00 -> b end 15:45
	}
	for _, tc := range cases {
		dep := edge("e1", "a", "b", tc.typ)
		dep.MaxGapMin = intp(0) // force a violation so the gap is reported
		report := Validate("ord-1", units, []Dependency{dep})
		require.Len(t, report.Edges, 1)
		assert.Equal(t, tc.gap, report.Edges[0].ActualGapMin, "type %s", tc.typ)
	}
}
