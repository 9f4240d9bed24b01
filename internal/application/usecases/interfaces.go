package usecases

import (
	"context"
	"time"

	"github.com/example/opsched/internal/domain/assignment"
	"github.com/example/opsched/internal/domain/contract"
	"github.com/example/opsched/internal/domain/fulfillment"
	"github.com/example/opsched/internal/infrastructure/commerce"
)

// Storage and collaborator ports. The postgres package implements the
// stores; tests substitute in-memory fakes.

type ContractStore interface {
	GetByID(ctx context.Context, tenantID, id string) (contract.Contract, error)
	DueForGeneration(ctx context.Context, now time.Time, limit int) ([]contract.Contract, error)
	UpdateBookkeeping(ctx context.Context, tenantID, id string, lastGeneratedAt time.Time, nextPlannedAt *time.Time) error
}

type ExceptionStore interface {
	ListActive(ctx context.Context, tenantID, contractID string) ([]contract.Exception, error)
}

type OccurrenceStore interface {
	UpsertPlanned(ctx context.Context, tenantID, contractID string, planned []contract.PlannedOccurrence, now time.Time) (int, error)
	MarkGenerated(ctx context.Context, tenantID, contractID string, now time.Time) (int, error)
	GetByKey(ctx context.Context, tenantID, key string) (contract.Occurrence, error)
	GetByOrder(ctx context.Context, tenantID, orderID string) (contract.Occurrence, error)
	ListByContract(ctx context.Context, tenantID, contractID string) ([]contract.Occurrence, error)
	DueForMaterialization(ctx context.Context, now time.Time, lead time.Duration, limit int) ([]contract.Occurrence, error)
	LinkOrder(ctx context.Context, tenantID, key, orderID string, now time.Time) error
	SetStatus(ctx context.Context, tenantID, key string, from []contract.OccurrenceStatus, to contract.OccurrenceStatus, reason string, now time.Time) error
}

type GraphStore interface {
	SaveGraph(ctx context.Context, units []fulfillment.Unit, deps []fulfillment.Dependency) error
	LoadGraph(ctx context.Context, tenantID, orderID string) ([]fulfillment.Unit, []fulfillment.Dependency, error)
	GetUnit(ctx context.Context, tenantID, unitID string) (fulfillment.Unit, error)
	SetUnitStatus(ctx context.Context, tenantID, unitID string, from []fulfillment.UnitStatus, to fulfillment.UnitStatus, now time.Time) error
	SetUnitTiming(ctx context.Context, tenantID, unitID string, start, end time.Time, now time.Time) error
}

type AssignmentStore interface {
	Propose(ctx context.Context, a assignment.Assignment, ev assignment.Event) error
	Update(ctx context.Context, a assignment.Assignment, ev assignment.Event, revalidate bool) error
	GetByID(ctx context.Context, tenantID, id string) (assignment.Assignment, error)
	ListEvents(ctx context.Context, tenantID, assignmentID string) ([]assignment.Event, error)
}

// OrderService is the external commerce collaborator.
type OrderService interface {
	CreateOrder(ctx context.Context, req commerce.OrderRequest) (commerce.Order, error)
}

// TemplateSource is the external sellable/component catalog.
type TemplateSource interface {
	Template(ctx context.Context, tenantID, sellableID string) (fulfillment.ComponentTemplate, error)
}
