package usecases

import (
	"context"
	"time"

	"github.com/example/opsched/internal/domain/contract"
)

// OccurrenceLifecycle applies the terminal, reason-carrying transitions on
// one occurrence. The conditional status update keeps racing callers from
// resurrecting a terminal row; generated_at is never touched.
type OccurrenceLifecycle struct {
	Occurrences OccurrenceStore
}

// MarkFulfilled requires the occurrence to have been booked first.
func (u OccurrenceLifecycle) MarkFulfilled(ctx context.Context, tenantID, key string, now time.Time) error {
	return u.Occurrences.SetStatus(ctx, tenantID, key,
		[]contract.OccurrenceStatus{contract.OccurrenceBooked},
		contract.OccurrenceFulfilled, "", now)
}

func (u OccurrenceLifecycle) Skip(ctx context.Context, tenantID, key, reason string, now time.Time) error {
	return u.Occurrences.SetStatus(ctx, tenantID, key,
		[]contract.OccurrenceStatus{contract.OccurrencePlanned, contract.OccurrenceGenerated},
		contract.OccurrenceSkipped, reason, now)
}

func (u OccurrenceLifecycle) Cancel(ctx context.Context, tenantID, key, reason string, now time.Time) error {
	return u.Occurrences.SetStatus(ctx, tenantID, key,
		[]contract.OccurrenceStatus{contract.OccurrencePlanned, contract.OccurrenceGenerated, contract.OccurrenceBooked},
		contract.OccurrenceCancelled, reason, now)
}

func (u OccurrenceLifecycle) Fail(ctx context.Context, tenantID, key, reason string, now time.Time) error {
	return u.Occurrences.SetStatus(ctx, tenantID, key,
		[]contract.OccurrenceStatus{contract.OccurrencePlanned, contract.OccurrenceGenerated, contract.OccurrenceBooked},
		contract.OccurrenceFailed, reason, now)
}
