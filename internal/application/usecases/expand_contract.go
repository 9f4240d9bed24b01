package usecases

import (
	"context"
	"time"

	"github.com/example/opsched/internal/domain/contract"
)

// ExpandContract runs one planner pass for one contract: expand the
// recurrence, apply exceptions, and upsert the resulting occurrences by
// their deterministic keys. Re-running with the same inputs is a no-op.
type ExpandContract struct {
	Contracts   ContractStore
	Exceptions  ExceptionStore
	Occurrences OccurrenceStore
}

func (u ExpandContract) Execute(ctx context.Context, tenantID, contractID string, horizonDays int, now time.Time) ([]contract.Occurrence, error) {
	c, err := u.Contracts.GetByID(ctx, tenantID, contractID)
	if err != nil {
		return nil, err
	}
	exceptions, err := u.Exceptions.ListActive(ctx, tenantID, contractID)
	if err != nil {
		return nil, err
	}

	win := contract.PlanWindow{From: now, To: now.AddDate(0, 0, horizonDays)}
	planned, err := contract.Expand(c, exceptions, win, now)
	if err != nil {
		return nil, err
	}

	if _, err := u.Occurrences.UpsertPlanned(ctx, tenantID, contractID, planned, now); err != nil {
		return nil, err
	}
	// Candidates land as planned; finishing the pass promotes them to
	// generated, closing the planner's half of the status chain.
	if _, err := u.Occurrences.MarkGenerated(ctx, tenantID, contractID, now); err != nil {
		return nil, err
	}

	var next *time.Time
	if n, ok := contract.NextAfter(c, exceptions, now); ok {
		next = &n
	}
	if err := u.Contracts.UpdateBookkeeping(ctx, tenantID, contractID, now, next); err != nil {
		return nil, err
	}

	return u.Occurrences.ListByContract(ctx, tenantID, contractID)
}
