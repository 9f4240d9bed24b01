package assignment

import (
	"fmt"
	"time"
)

// Window is a half-open interval [Start, End). Half-open comparison keeps
// an assignment ending at T from conflicting with one starting at T.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("window needs start and end")
	}
	if !w.End.After(w.Start) {
		return fmt.Errorf("window end must be after start")
	}
	return nil
}

func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

type ConflictPolicy string

const (
	// EnforceNoOverlap rejects proposals whose window overlaps another
	// active assignment for the same resource.
	EnforceNoOverlap ConflictPolicy = "enforce_no_overlap"
	// AllowOverlap is an explicit, per-assignment opt-out. Never inherited
	// from the resource.
	AllowOverlap ConflictPolicy = "allow_overlap"
)

type Status string

const (
	StatusProposed   Status = "proposed"
	StatusReserved   Status = "reserved"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// activeStatuses are the states that occupy the resource: only these
// participate in overlap exclusion.
var activeStatuses = map[Status]bool{
	StatusReserved:   true,
	StatusConfirmed:  true,
	StatusInProgress: true,
}

// Assignment binds one resource to one fulfillment unit over a window.
type Assignment struct {
	ID         string
	TenantID   string
	UnitID     string
	ResourceID string

	Window *Window
	Policy ConflictPolicy
	Status Status

	Role    string
	Primary bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a Assignment) Active() bool { return activeStatuses[a.Status] }

// Terminal reports whether the assignment has reached a state with no
// outgoing transitions. Terminal rows are history: they never move again
// and never reoccupy a resource.
func (a Assignment) Terminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusCancelled
}

func (a Assignment) Validate() error {
	if a.TenantID == "" {
		return fmt.Errorf("tenant id is required")
	}
	if a.UnitID == "" || a.ResourceID == "" {
		return fmt.Errorf("unit id and resource id are required")
	}
	switch a.Policy {
	case EnforceNoOverlap, AllowOverlap:
	default:
		return fmt.Errorf("unknown conflict policy %q", a.Policy)
	}
	if a.Active() && a.Window == nil {
		return fmt.Errorf("active assignment %s needs a window", a.ID)
	}
	if a.Window != nil {
		return a.Window.Validate()
	}
	return nil
}
