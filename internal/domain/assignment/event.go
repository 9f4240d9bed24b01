package assignment

import (
	"time"
)

type EventType string

const (
	EventCreated    EventType = "created"
	EventTransition EventType = "transition"
	EventReassigned EventType = "reassigned"
)

// Snapshot captures the audit-relevant fields of an assignment at one
// point in time.
type Snapshot struct {
	Status     Status
	ResourceID string
	Window     *Window
	Policy     ConflictPolicy
}

// Event is one append-only transition record. Assignment history is
// reconstructed solely by folding these; rows are never mutated.
type Event struct {
	ID           string
	TenantID     string
	AssignmentID string
	Type         EventType

	// Before is nil for the created event.
	Before *Snapshot
	After  Snapshot

	Actor  string
	Reason string
	At     time.Time
}

func (a Assignment) Snapshot() Snapshot {
	var w *Window
	if a.Window != nil {
		cp := *a.Window
		w = &cp
	}
	return Snapshot{
		Status:     a.Status,
		ResourceID: a.ResourceID,
		Window:     w,
		Policy:     a.Policy,
	}
}
