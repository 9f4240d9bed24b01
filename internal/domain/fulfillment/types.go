package fulfillment

import (
	"fmt"
	"time"
)

type UnitKind string

const (
	KindServiceTask UnitKind = "service_task"
	KindTransport   UnitKind = "transport_leg"
	KindReview      UnitKind = "async_review"
)

type UnitStatus string

const (
	UnitPlanned    UnitStatus = "planned"
	UnitReady      UnitStatus = "ready"
	UnitInProgress UnitStatus = "in_progress"
	UnitCompleted  UnitStatus = "completed"
	UnitFailed     UnitStatus = "failed"
	UnitCancelled  UnitStatus = "cancelled"
)

// Unit is one atomic work item belonging to an order's fulfillment graph.
type Unit struct {
	ID       string
	TenantID string
	OrderID  string

	// ComponentID names the catalog component this unit was materialized
	// from; edges in the template reference components by this id.
	ComponentID string

	Kind   UnitKind
	Status UnitStatus

	// Planned timing may be nil for components the builder could not place;
	// those are scheduled later by the allocator.
	PlannedStart *time.Time
	PlannedEnd   *time.Time
	ActualStart  *time.Time
	ActualEnd    *time.Time

	LocationID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type DependencyType string

const (
	FinishToStart  DependencyType = "finish_to_start"
	StartToStart   DependencyType = "start_to_start"
	FinishToFinish DependencyType = "finish_to_finish"
	StartToFinish  DependencyType = "start_to_finish"
)

// Dependency is a directed predecessor -> successor edge with optional gap
// bounds in minutes. HardBlock edges halt downstream scheduling on
// violation; soft edges only warn.
type Dependency struct {
	ID       string
	TenantID string
	OrderID  string

	PredecessorID string
	SuccessorID   string

	Type      DependencyType
	MinGapMin *int
	MaxGapMin *int
	HardBlock bool

	CreatedAt time.Time
}

func (d Dependency) Validate() error {
	if d.PredecessorID == d.SuccessorID {
		return fmt.Errorf("edge %s -> %s: self-loop", d.PredecessorID, d.SuccessorID)
	}
	switch d.Type {
	case FinishToStart, StartToStart, FinishToFinish, StartToFinish:
	default:
		return fmt.Errorf("unknown dependency type %q", d.Type)
	}
	if d.MinGapMin != nil && d.MaxGapMin != nil && *d.MinGapMin > *d.MaxGapMin {
		return fmt.Errorf("gap bounds out of order: min %d > max %d", *d.MinGapMin, *d.MaxGapMin)
	}
	return nil
}

var unitTransitions = map[UnitStatus][]UnitStatus{
	UnitPlanned:    {UnitReady, UnitCancelled, UnitFailed},
	UnitReady:      {UnitInProgress, UnitCancelled, UnitFailed},
	UnitInProgress: {UnitCompleted, UnitFailed, UnitCancelled},
}

func (u Unit) CanTransition(to UnitStatus) bool {
	for _, s := range unitTransitions[u.Status] {
		if s == to {
			return true
		}
	}
	return false
}
