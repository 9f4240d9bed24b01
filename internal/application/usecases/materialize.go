package usecases

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/opsched/internal/domain/contract"
	"github.com/example/opsched/internal/infrastructure/commerce"
	"github.com/example/opsched/internal/internaltypes"
)

// MaterializeOccurrence turns one due occurrence into a commercial order
// and links it, guarded by the conditional order-link write. Exactly one
// of two concurrent callers wins; the other sees ErrAlreadyBooked.
type MaterializeOccurrence struct {
	Contracts   ContractStore
	Occurrences OccurrenceStore
	Orders      OrderService
}

func (u MaterializeOccurrence) Execute(ctx context.Context, tenantID, occurrenceKey string, now time.Time) (commerce.Order, error) {
	occ, err := u.Occurrences.GetByKey(ctx, tenantID, occurrenceKey)
	if err != nil {
		return commerce.Order{}, err
	}
	if occ.OrderID != nil {
		return commerce.Order{}, internaltypes.ErrAlreadyBooked
	}
	if !occ.CanTransition(contract.OccurrenceBooked) {
		return commerce.Order{}, internaltypes.ErrInvalidTransition
	}

	c, err := u.Contracts.GetByID(ctx, tenantID, occ.ContractID)
	if err != nil {
		return commerce.Order{}, err
	}

	order, err := u.Orders.CreateOrder(ctx, commerce.OrderRequest{
		TenantID:      tenantID,
		ContractID:    occ.ContractID,
		OccurrenceKey: occ.Key,
		CustomerID:    c.CustomerID,
		SellableID:    occ.SellableID,
		LocationID:    occ.LocationID,
		PartySize:     c.Policy.PartySize,
		Start:         occ.PlannedStart,
		End:           occ.PlannedEnd,
	})
	if err != nil {
		return commerce.Order{}, err
	}

	if err := u.Occurrences.LinkOrder(ctx, tenantID, occ.Key, order.ID, now); err != nil {
		// Lost the race: the order created here is discarded; the
		// commerce-side idempotency key keeps it from double-charging.
		return commerce.Order{}, err
	}
	return order, nil
}

// MaterializeDue sweeps occurrences whose planned start is inside the lead
// window. Failures are scoped to one occurrence; the sweep continues.
type MaterializeDue struct {
	Materialize MaterializeOccurrence
	Occurrences OccurrenceStore
	Lead        time.Duration
	Limit       int
	Log         *zap.Logger
}

func (u MaterializeDue) Execute(ctx context.Context, now time.Time) ([]commerce.Order, error) {
	due, err := u.Occurrences.DueForMaterialization(ctx, now, u.Lead, u.Limit)
	if err != nil {
		return nil, err
	}

	var orders []commerce.Order
	for _, occ := range due {
		order, err := u.Materialize.Execute(ctx, occ.TenantID, occ.Key, now)
		switch {
		case errors.Is(err, internaltypes.ErrAlreadyBooked):
			// Another worker got there first.
			continue
		case err != nil:
			u.Log.Warn("materialization failed",
				zap.String("tenant", occ.TenantID),
				zap.String("occurrence", occ.Key),
				zap.Error(err))
			continue
		}
		orders = append(orders, order)
	}
	return orders, nil
}
