package assignment

import (
	"fmt"
	"time"

	"github.com/example/opsched/internal/internaltypes"
)

var transitions = map[Status][]Status{
	StatusProposed:   {StatusReserved, StatusCancelled},
	StatusReserved:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func (a Assignment) CanTransition(to Status) bool {
	for _, s := range transitions[a.Status] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition applies a guarded status change in place. Moving into an
// active state requires a window; overlap re-validation against other
// assignments is the caller's job when the window or policy changed.
func (a *Assignment) Transition(to Status, at time.Time) error {
	if !a.CanTransition(to) {
		return fmt.Errorf("%w: assignment %s %s -> %s", internaltypes.ErrInvalidTransition, a.ID, a.Status, to)
	}
	if activeStatuses[to] && a.Window == nil {
		return fmt.Errorf("%w: %s requires a window", internaltypes.ErrInvalidTransition, to)
	}
	a.Status = to
	a.UpdatedAt = at
	return nil
}

// Reassign moves the assignment to a new resource and/or window. Either
// argument may be zero/nil to keep the current value. The caller must
// re-run the overlap check before persisting.
func (a *Assignment) Reassign(newResource string, newWindow *Window, at time.Time) error {
	if a.Terminal() {
		return fmt.Errorf("%w: assignment %s is %s", internaltypes.ErrInvalidTransition, a.ID, a.Status)
	}
	if newResource == "" && newWindow == nil {
		return fmt.Errorf("reassign needs a new resource or a new window")
	}
	if newWindow != nil {
		if err := newWindow.Validate(); err != nil {
			return err
		}
		cp := *newWindow
		a.Window = &cp
	}
	if newResource != "" {
		a.ResourceID = newResource
	}
	a.UpdatedAt = at
	return nil
}
