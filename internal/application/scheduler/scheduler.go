package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/opsched/internal/application/usecases"
	"github.com/example/opsched/internal/internaltypes"
)

// Worker runs the two background sweeps: recurrence generation for due
// contracts and order materialization for due occurrences. Work is
// partitioned per contract/occurrence; one failing entity never blocks the
// rest of a sweep.
type Worker struct {
	Contracts   usecases.ContractStore
	Expand      usecases.ExpandContract
	Materialize usecases.MaterializeDue

	HorizonDays         int
	GenerateInterval    time.Duration
	MaterializeInterval time.Duration
	BatchSize           int

	Log *zap.Logger

	wg sync.WaitGroup
}

func (w *Worker) Run(ctx context.Context) error {
	gen := time.NewTicker(w.GenerateInterval)
	defer gen.Stop()
	mat := time.NewTicker(w.MaterializeInterval)
	defer mat.Stop()

	// kick immediately
	w.generateTick(ctx)
	w.materializeTick(ctx)

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			return ctx.Err()
		case <-gen.C:
			w.generateTick(ctx)
		case <-mat.C:
			w.materializeTick(ctx)
		}
	}
}

func (w *Worker) generateTick(ctx context.Context) {
	now := time.Now().UTC()
	due, err := w.Contracts.DueForGeneration(ctx, now, w.BatchSize)
	if err != nil {
		w.Log.Error("due contracts query failed", zap.Error(err))
		return
	}

	for _, c := range due {
		c := c
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			_, err := w.Expand.Execute(ctx, c.TenantID, c.ID, w.HorizonDays, now)
			switch {
			case internaltypes.IsRecurrenceParseError(err):
				// Reported and excluded; no automatic retry for a broken
				// expression.
				w.Log.Error("contract excluded from generation",
					zap.String("tenant", c.TenantID),
					zap.String("contract", c.ID),
					zap.Error(err))
			case err != nil:
				w.Log.Warn("expansion failed, will retry next sweep",
					zap.String("tenant", c.TenantID),
					zap.String("contract", c.ID),
					zap.Error(err))
			}
		}()
	}
}

func (w *Worker) materializeTick(ctx context.Context) {
	now := time.Now().UTC()
	orders, err := w.Materialize.Execute(ctx, now)
	if err != nil {
		w.Log.Error("materialization sweep failed", zap.Error(err))
		return
	}
	if len(orders) > 0 {
		w.Log.Info("materialized orders", zap.Int("count", len(orders)))
	}
}
