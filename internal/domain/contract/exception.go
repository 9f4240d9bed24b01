package contract

import (
	"fmt"
	"time"

	"github.com/example/opsched/internal/internaltypes"
)

type ActionKind string

const (
	ActionSkip       ActionKind = "skip"
	ActionCancel     ActionKind = "cancel"
	ActionReschedule ActionKind = "reschedule"
	ActionPause      ActionKind = "pause"
)

// Target identifies which generated instant an exception applies to: either
// the occurrence key, or the local calendar date of the planned start.
// Exactly one must be set.
type Target struct {
	Key  string
	Date time.Time
}

func (t Target) validate() error {
	if (t.Key == "") == t.Date.IsZero() {
		return fmt.Errorf("%w: target needs exactly one of key or date", internaltypes.ErrInvalidExceptionShape)
	}
	return nil
}

// Action is one override variant. Each variant carries only the fields
// legal for its kind; Validate rejects malformed shapes at write time.
type Action interface {
	Kind() ActionKind
	Validate() error
}

type Skip struct {
	Target Target
	Reason string
}

func (Skip) Kind() ActionKind  { return ActionSkip }
func (a Skip) Validate() error { return a.Target.validate() }

type Cancel struct {
	Target Target
	Reason string
}

func (Cancel) Kind() ActionKind  { return ActionCancel }
func (a Cancel) Validate() error { return a.Target.validate() }

type Reschedule struct {
	Target   Target
	NewStart time.Time
	// NewEnd is optional; zero means "NewStart plus the contract duration".
	NewEnd        time.Time
	NewLocationID string
	NewSellableID string
}

func (Reschedule) Kind() ActionKind { return ActionReschedule }

func (a Reschedule) Validate() error {
	if err := a.Target.validate(); err != nil {
		return err
	}
	if a.NewStart.IsZero() {
		return fmt.Errorf("%w: reschedule needs a new start", internaltypes.ErrInvalidExceptionShape)
	}
	if !a.NewEnd.IsZero() && !a.NewEnd.After(a.NewStart) {
		return fmt.Errorf("%w: reschedule end must be after start", internaltypes.ErrInvalidExceptionShape)
	}
	return nil
}

type Pause struct {
	Start time.Time
	End   time.Time
}

func (Pause) Kind() ActionKind { return ActionPause }

func (a Pause) Validate() error {
	if a.Start.IsZero() || a.End.IsZero() {
		return fmt.Errorf("%w: pause needs explicit start and end", internaltypes.ErrInvalidExceptionShape)
	}
	if !a.End.After(a.Start) {
		return fmt.Errorf("%w: pause end must be after start", internaltypes.ErrInvalidExceptionShape)
	}
	return nil
}

// Contains reports whether t falls inside the pause window, half-open.
func (a Pause) Contains(t time.Time) bool {
	return !t.Before(a.Start) && t.Before(a.End)
}

// Exception is an override attached to a contract. Immutable once
// evaluated; deactivated rather than deleted.
type Exception struct {
	ID         string
	TenantID   string
	ContractID string
	Action     Action
	Active     bool
	CreatedAt  time.Time
}

func (e Exception) Validate() error {
	if e.TenantID == "" {
		return fmt.Errorf("tenant id is required")
	}
	if e.ContractID == "" {
		return fmt.Errorf("contract id is required")
	}
	if e.Action == nil {
		return fmt.Errorf("%w: exception needs an action", internaltypes.ErrInvalidExceptionShape)
	}
	return e.Action.Validate()
}

// matches reports whether the target picks out a candidate with the given
// key and local planned start.
func (t Target) matches(key string, localStart time.Time) bool {
	if t.Key != "" {
		return t.Key == key
	}
	y1, m1, d1 := t.Date.Date()
	y2, m2, d2 := localStart.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
