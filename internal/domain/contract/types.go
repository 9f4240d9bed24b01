package contract

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type CustomerKind string

const (
	CustomerIndividual CustomerKind = "individual"
	CustomerGroup      CustomerKind = "group"
)

// PolicySnapshot is the immutable copy of the commercial terms the contract
// was signed under. Orders materialized from the contract's occurrences are
// priced from this snapshot, never from the live catalog.
type PolicySnapshot struct {
	SellableID string
	LocationID string
	PartySize  int
	Notes      string
}

// Contract is a standing reservation: a recurrence recipe that the planner
// expands into concrete occurrences ahead of time.
type Contract struct {
	ID           string
	TenantID     string
	CustomerID   string
	CustomerKind CustomerKind

	// AnchorAt is the first instant of the series (UTC). Recurrence is an
	// RFC 5545 RRULE body evaluated in Timezone, so expansion stays correct
	// across DST shifts.
	AnchorAt   time.Time
	Timezone   string
	Recurrence string

	DurationMin    int
	EffectiveStart time.Time
	EffectiveEnd   *time.Time

	// MaxAheadDays caps the generation horizon regardless of what a caller
	// asks for.
	MaxAheadDays int
	AutoCreate   bool

	Policy PolicySnapshot
	Status Status

	// Bookkeeping maintained by the planner.
	LastGeneratedAt *time.Time
	NextPlannedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c Contract) Validate() error {
	if c.TenantID == "" {
		return fmt.Errorf("tenant id is required")
	}
	if c.CustomerID == "" {
		return fmt.Errorf("customer id is required")
	}
	switch c.CustomerKind {
	case CustomerIndividual, CustomerGroup:
	default:
		return fmt.Errorf("unknown customer kind %q", c.CustomerKind)
	}
	if c.Recurrence == "" {
		return fmt.Errorf("recurrence expression is required")
	}
	if c.Timezone == "" {
		return fmt.Errorf("timezone is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if c.DurationMin <= 0 {
		return fmt.Errorf("duration must be positive (got %d)", c.DurationMin)
	}
	if c.MaxAheadDays <= 0 {
		return fmt.Errorf("max ahead days must be positive (got %d)", c.MaxAheadDays)
	}
	if c.EffectiveEnd != nil && !c.EffectiveEnd.After(c.EffectiveStart) {
		return fmt.Errorf("effective end must be after effective start")
	}
	return nil
}

// Location returns the contract's timezone. Validate guarantees it loads.
func (c Contract) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
