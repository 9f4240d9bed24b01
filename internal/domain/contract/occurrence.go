package contract

import (
	"fmt"
	"time"

	"github.com/example/opsched/internal/internaltypes"
)

type OccurrenceStatus string

const (
	OccurrencePlanned   OccurrenceStatus = "planned"
	OccurrenceGenerated OccurrenceStatus = "generated"
	OccurrenceBooked    OccurrenceStatus = "booked"
	OccurrenceFulfilled OccurrenceStatus = "fulfilled"
	OccurrenceSkipped   OccurrenceStatus = "skipped"
	OccurrenceCancelled OccurrenceStatus = "cancelled"
	OccurrenceFailed    OccurrenceStatus = "failed"
)

// Occurrence is one concrete instance generated from a contract's
// recurrence. Rows are never deleted; terminal statuses keep the history.
type Occurrence struct {
	ID         string
	TenantID   string
	ContractID string

	// Key is deterministic per (contract, recurrence slot). A reschedule
	// moves the window but keeps the key, so the occurrence stays traceable
	// to its original slot.
	Key string

	PlannedStart time.Time
	PlannedEnd   time.Time
	Status       OccurrenceStatus

	// OrderID links the commercial order this occurrence produced, set
	// exactly once by materialization.
	OrderID *string

	LocationID string
	SellableID string
	Reason     string

	// GeneratedAt anchors the occurrence's happened-before ordering and is
	// never overwritten after creation.
	GeneratedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OccurrenceKey derives the deterministic key for a contract and a start
// instant. The instant is normalized to UTC so the key is independent of
// the caller's zone.
func OccurrenceKey(contractID string, start time.Time) string {
	return contractID + ":" + start.UTC().Format("20060102T150405Z")
}

var occurrenceTransitions = map[OccurrenceStatus][]OccurrenceStatus{
	OccurrencePlanned:   {OccurrenceGenerated, OccurrenceBooked, OccurrenceSkipped, OccurrenceCancelled, OccurrenceFailed},
	OccurrenceGenerated: {OccurrenceBooked, OccurrenceSkipped, OccurrenceCancelled, OccurrenceFailed},
	OccurrenceBooked:    {OccurrenceFulfilled, OccurrenceCancelled, OccurrenceFailed},
}

// CanTransition reports whether the occurrence may move to the given
// status. Terminal statuses allow nothing.
func (o Occurrence) CanTransition(to OccurrenceStatus) bool {
	for _, s := range occurrenceTransitions[o.Status] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition applies a guarded status change. Booking requires an order
// link; fulfillment requires the occurrence to have been booked.
func (o *Occurrence) Transition(to OccurrenceStatus, at time.Time) error {
	if !o.CanTransition(to) {
		return fmt.Errorf("%w: occurrence %s %s -> %s", internaltypes.ErrInvalidTransition, o.Key, o.Status, to)
	}
	if to == OccurrenceBooked && o.OrderID == nil {
		return fmt.Errorf("%w: booked requires an order link", internaltypes.ErrInvalidTransition)
	}
	o.Status = to
	o.UpdatedAt = at
	return nil
}
