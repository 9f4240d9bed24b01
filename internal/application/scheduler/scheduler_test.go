package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/opsched/internal/application/usecases"
	"github.com/example/opsched/internal/db"
	"github.com/example/opsched/internal/domain/contract"
)

type stubContracts struct {
	mu    sync.Mutex
	due   []contract.Contract
	swept map[string]int
}

func (s *stubContracts) GetByID(_ context.Context, tenantID, id string) (contract.Contract, error) {
	for _, c := range s.due {
		if c.TenantID == tenantID && c.ID == id {
			return c, nil
		}
	}
	return contract.Contract{}, db.ErrNotFound
}

func (s *stubContracts) DueForGeneration(_ context.Context, _ time.Time, _ int) ([]contract.Contract, error) {
	return s.due, nil
}

func (s *stubContracts) UpdateBookkeeping(_ context.Context, tenantID, id string, _ time.Time, _ *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swept[tenantID+"/"+id]++
	return nil
}

type stubExceptions struct{}

func (stubExceptions) ListActive(context.Context, string, string) ([]contract.Exception, error) {
	return nil, nil
}

type stubOccurrences struct{ usecases.OccurrenceStore }

func (stubOccurrences) UpsertPlanned(context.Context, string, string, []contract.PlannedOccurrence, time.Time) (int, error) {
	return 0, nil
}

func (stubOccurrences) MarkGenerated(context.Context, string, string, time.Time) (int, error) {
	return 0, nil
}

func (stubOccurrences) ListByContract(context.Context, string, string) ([]contract.Occurrence, error) {
	return nil, nil
}

func (stubOccurrences) DueForMaterialization(context.Context, time.Time, time.Duration, int) ([]contract.Occurrence, error) {
	return nil, nil
}

func TestWorker_SweepIsolatesFailingContract(t *testing.T) {
	base := contract.Contract{
		TenantID:     "t1",
		CustomerID:   "cust-1",
		CustomerKind: contract.CustomerIndividual,
		AnchorAt:     time.Date(2026, 1, 6, 14, 0, 0, 0, time.UTC),
		Timezone:     "UTC",
		Recurrence:   "FREQ=WEEKLY",
		DurationMin:  60,
		MaxAheadDays: 30,
		Status:       contract.StatusActive,
	}
	bad := base
	bad.ID = "ct-bad"
	bad.Recurrence = "FREQ=SOMETIMES"
	good := base
	good.ID = "ct-good"

	contracts := &stubContracts{due: []contract.Contract{bad, good}, swept: map[string]int{}}
	occurrences := stubOccurrences{}

	w := &Worker{
		Contracts: contracts,
		Expand: usecases.ExpandContract{
			Contracts:   contracts,
			Exceptions:  stubExceptions{},
			Occurrences: occurrences,
		},
		Materialize: usecases.MaterializeDue{
			Materialize: usecases.MaterializeOccurrence{Contracts: contracts, Occurrences: occurrences},
			Occurrences: occurrences,
			Lead:        time.Hour,
			Limit:       10,
			Log:         zap.NewNop(),
		},
		HorizonDays:         30,
		GenerateInterval:    time.Hour,
		MaterializeInterval: time.Hour,
		BatchSize:           10,
		Log:                 zap.NewNop(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// The unparsable contract fails its pass without blocking the rest of
	// the batch.
	require.Eventually(t, func() bool {
		contracts.mu.Lock()
		defer contracts.mu.Unlock()
		return contracts.swept["t1/ct-good"] > 0
	}, 2*time.Second, 10*time.Millisecond)

	contracts.mu.Lock()
	assert.Zero(t, contracts.swept["t1/ct-bad"], "a failed pass does no bookkeeping")
	contracts.mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

func TestWorker_RunSweepsAndStops(t *testing.T) {
	contracts := &stubContracts{
		due: []contract.Contract{{
			ID:           "ct-1",
			TenantID:     "t1",
			CustomerID:   "cust-1",
			CustomerKind: contract.CustomerIndividual,
			AnchorAt:     time.Date(2026, 1, 6, 14, 0, 0, 0, time.UTC),
			Timezone:     "UTC",
			Recurrence:   "FREQ=WEEKLY",
			DurationMin:  60,
			MaxAheadDays: 30,
			Status:       contract.StatusActive,
		}},
		swept: map[string]int{},
	}
	occurrences := stubOccurrences{}

	w := &Worker{
		Contracts: contracts,
		Expand: usecases.ExpandContract{
			Contracts:   contracts,
			Exceptions:  stubExceptions{},
			Occurrences: occurrences,
		},
		Materialize: usecases.MaterializeDue{
			Materialize: usecases.MaterializeOccurrence{Contracts: contracts, Occurrences: occurrences},
			Occurrences: occurrences,
			Lead:        time.Hour,
			Limit:       10,
			Log:         zap.NewNop(),
		},
		HorizonDays:         30,
		GenerateInterval:    time.Hour,
		MaterializeInterval: time.Hour,
		BatchSize:           10,
		Log:                 zap.NewNop(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// The immediate kick runs one generation sweep before the first tick.
	require.Eventually(t, func() bool {
		contracts.mu.Lock()
		defer contracts.mu.Unlock()
		return contracts.swept["t1/ct-1"] > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}
