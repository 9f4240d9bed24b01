package usecases

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/example/opsched/internal/db"
	"github.com/example/opsched/internal/domain/assignment"
	"github.com/example/opsched/internal/domain/contract"
	"github.com/example/opsched/internal/domain/fulfillment"
	"github.com/example/opsched/internal/infrastructure/commerce"
	"github.com/example/opsched/internal/internaltypes"
)

// In-memory stores mirroring the postgres repos' conditional-write
// semantics, so the race-sensitive paths are exercised without a database.

type fakeContracts struct {
	contracts map[string]contract.Contract
	booked    map[string]time.Time
}

func newFakeContracts(cs ...contract.Contract) *fakeContracts {
	f := &fakeContracts{contracts: map[string]contract.Contract{}, booked: map[string]time.Time{}}
	for _, c := range cs {
		f.contracts[c.TenantID+"/"+c.ID] = c
	}
	return f
}

func (f *fakeContracts) GetByID(_ context.Context, tenantID, id string) (contract.Contract, error) {
	c, ok := f.contracts[tenantID+"/"+id]
	if !ok {
		return contract.Contract{}, db.ErrNotFound
	}
	return c, nil
}

func (f *fakeContracts) DueForGeneration(_ context.Context, now time.Time, limit int) ([]contract.Contract, error) {
	var out []contract.Contract
	for _, c := range f.contracts {
		if c.Status != contract.StatusActive {
			continue
		}
		if c.NextPlannedAt == nil || !c.NextPlannedAt.After(now) {
			out = append(out, c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeContracts) UpdateBookkeeping(_ context.Context, tenantID, id string, lastGeneratedAt time.Time, nextPlannedAt *time.Time) error {
	key := tenantID + "/" + id
	c, ok := f.contracts[key]
	if !ok {
		return db.ErrNotFound
	}
	c.LastGeneratedAt = &lastGeneratedAt
	c.NextPlannedAt = nextPlannedAt
	f.contracts[key] = c
	f.booked[key] = lastGeneratedAt
	return nil
}

type fakeExceptions struct {
	exceptions []contract.Exception
}

func (f *fakeExceptions) ListActive(_ context.Context, tenantID, contractID string) ([]contract.Exception, error) {
	var out []contract.Exception
	for _, e := range f.exceptions {
		if e.TenantID == tenantID && e.ContractID == contractID && e.Active {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeOccurrences struct {
	rows map[string]*contract.Occurrence
}

func newFakeOccurrences() *fakeOccurrences {
	return &fakeOccurrences{rows: map[string]*contract.Occurrence{}}
}

func (f *fakeOccurrences) UpsertPlanned(_ context.Context, tenantID, contractID string, planned []contract.PlannedOccurrence, now time.Time) (int, error) {
	created := 0
	for _, p := range planned {
		id := tenantID + "/" + p.Key
		if _, exists := f.rows[id]; exists {
			continue
		}
		f.rows[id] = &contract.Occurrence{
			ID:           uuid.NewString(),
			TenantID:     tenantID,
			ContractID:   contractID,
			Key:          p.Key,
			PlannedStart: p.Start,
			PlannedEnd:   p.End,
			Status:       p.Status,
			LocationID:   p.LocationID,
			SellableID:   p.SellableID,
			Reason:       p.Reason,
			GeneratedAt:  now,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		created++
	}
	return created, nil
}

func (f *fakeOccurrences) MarkGenerated(_ context.Context, tenantID, contractID string, now time.Time) (int, error) {
	promoted := 0
	for _, o := range f.rows {
		if o.TenantID == tenantID && o.ContractID == contractID && o.Status == contract.OccurrencePlanned {
			o.Status = contract.OccurrenceGenerated
			o.UpdatedAt = now
			promoted++
		}
	}
	return promoted, nil
}

func (f *fakeOccurrences) GetByKey(_ context.Context, tenantID, key string) (contract.Occurrence, error) {
	o, ok := f.rows[tenantID+"/"+key]
	if !ok {
		return contract.Occurrence{}, db.ErrNotFound
	}
	return *o, nil
}

func (f *fakeOccurrences) GetByOrder(_ context.Context, tenantID, orderID string) (contract.Occurrence, error) {
	for _, o := range f.rows {
		if o.TenantID == tenantID && o.OrderID != nil && *o.OrderID == orderID {
			return *o, nil
		}
	}
	return contract.Occurrence{}, db.ErrNotFound
}

func (f *fakeOccurrences) ListByContract(_ context.Context, tenantID, contractID string) ([]contract.Occurrence, error) {
	var out []contract.Occurrence
	for _, o := range f.rows {
		if o.TenantID == tenantID && o.ContractID == contractID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlannedStart.Before(out[j].PlannedStart) })
	return out, nil
}

func (f *fakeOccurrences) DueForMaterialization(_ context.Context, now time.Time, lead time.Duration, limit int) ([]contract.Occurrence, error) {
	var out []contract.Occurrence
	for _, o := range f.rows {
		if (o.Status != contract.OccurrencePlanned && o.Status != contract.OccurrenceGenerated) || o.OrderID != nil {
			continue
		}
		if o.PlannedStart.After(now.Add(lead)) || !o.PlannedStart.After(now.Add(-lead)) {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlannedStart.Before(out[j].PlannedStart) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeOccurrences) LinkOrder(_ context.Context, tenantID, key, orderID string, now time.Time) error {
	o, ok := f.rows[tenantID+"/"+key]
	if !ok {
		return db.ErrNotFound
	}
	if o.OrderID != nil || (o.Status != contract.OccurrencePlanned && o.Status != contract.OccurrenceGenerated) {
		return internaltypes.ErrAlreadyBooked
	}
	o.OrderID = &orderID
	o.Status = contract.OccurrenceBooked
	o.UpdatedAt = now
	return nil
}

func (f *fakeOccurrences) SetStatus(_ context.Context, tenantID, key string, from []contract.OccurrenceStatus, to contract.OccurrenceStatus, reason string, now time.Time) error {
	o, ok := f.rows[tenantID+"/"+key]
	if !ok {
		return db.ErrNotFound
	}
	allowed := false
	for _, s := range from {
		if o.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return fmt.Errorf("%w: occurrence %s %s -> %s", internaltypes.ErrInvalidTransition, key, o.Status, to)
	}
	o.Status = to
	if reason != "" {
		o.Reason = reason
	}
	o.UpdatedAt = now
	return nil
}

type fakeGraph struct {
	units []fulfillment.Unit
	deps  []fulfillment.Dependency
}

func (f *fakeGraph) SaveGraph(_ context.Context, units []fulfillment.Unit, deps []fulfillment.Dependency) error {
	f.units = append(f.units, units...)
	f.deps = append(f.deps, deps...)
	return nil
}

func (f *fakeGraph) LoadGraph(_ context.Context, tenantID, orderID string) ([]fulfillment.Unit, []fulfillment.Dependency, error) {
	var units []fulfillment.Unit
	for _, u := range f.units {
		if u.TenantID == tenantID && u.OrderID == orderID {
			units = append(units, u)
		}
	}
	var deps []fulfillment.Dependency
	for _, d := range f.deps {
		if d.TenantID == tenantID && d.OrderID == orderID {
			deps = append(deps, d)
		}
	}
	return units, deps, nil
}

func (f *fakeGraph) GetUnit(_ context.Context, tenantID, unitID string) (fulfillment.Unit, error) {
	for _, u := range f.units {
		if u.TenantID == tenantID && u.ID == unitID {
			return u, nil
		}
	}
	return fulfillment.Unit{}, db.ErrNotFound
}

func (f *fakeGraph) SetUnitStatus(_ context.Context, tenantID, unitID string, from []fulfillment.UnitStatus, to fulfillment.UnitStatus, now time.Time) error {
	for i := range f.units {
		u := &f.units[i]
		if u.TenantID != tenantID || u.ID != unitID {
			continue
		}
		for _, s := range from {
			if u.Status == s {
				u.Status = to
				u.UpdatedAt = now
				switch to {
				case fulfillment.UnitInProgress:
					at := now
					u.ActualStart = &at
				case fulfillment.UnitCompleted, fulfillment.UnitFailed:
					at := now
					u.ActualEnd = &at
				}
				return nil
			}
		}
		return fmt.Errorf("%w: unit %s %s -> %s", internaltypes.ErrInvalidTransition, unitID, u.Status, to)
	}
	return db.ErrNotFound
}

func (f *fakeGraph) SetUnitTiming(_ context.Context, tenantID, unitID string, start, end time.Time, now time.Time) error {
	for i := range f.units {
		u := &f.units[i]
		if u.TenantID == tenantID && u.ID == unitID {
			u.PlannedStart = &start
			u.PlannedEnd = &end
			u.UpdatedAt = now
			return nil
		}
	}
	return db.ErrNotFound
}

// fakeAssignments reproduces the repo's overlap exclusion: active
// enforce-no-overlap rows on the same resource reject intersecting windows.
type fakeAssignments struct {
	assignments map[string]assignment.Assignment
	events      []assignment.Event
}

func newFakeAssignments() *fakeAssignments {
	return &fakeAssignments{assignments: map[string]assignment.Assignment{}}
}

func (f *fakeAssignments) conflict(a assignment.Assignment, excludeID string) bool {
	if a.Policy != assignment.EnforceNoOverlap || a.Window == nil {
		return false
	}
	for _, other := range f.assignments {
		if other.TenantID != a.TenantID || other.ResourceID != a.ResourceID || other.ID == excludeID {
			continue
		}
		if !other.Active() || other.Policy != assignment.EnforceNoOverlap || other.Window == nil {
			continue
		}
		if a.Window.Overlaps(*other.Window) {
			return true
		}
	}
	return false
}

func (f *fakeAssignments) Propose(_ context.Context, a assignment.Assignment, ev assignment.Event) error {
	if f.conflict(a, "") {
		return fmt.Errorf("%w: resource %s", internaltypes.ErrResourceConflict, a.ResourceID)
	}
	f.assignments[a.TenantID+"/"+a.ID] = a
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeAssignments) Update(_ context.Context, a assignment.Assignment, ev assignment.Event, revalidate bool) error {
	key := a.TenantID + "/" + a.ID
	if _, ok := f.assignments[key]; !ok {
		return db.ErrNotFound
	}
	if revalidate && f.conflict(a, a.ID) {
		return fmt.Errorf("%w: resource %s", internaltypes.ErrResourceConflict, a.ResourceID)
	}
	f.assignments[key] = a
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeAssignments) GetByID(_ context.Context, tenantID, id string) (assignment.Assignment, error) {
	a, ok := f.assignments[tenantID+"/"+id]
	if !ok {
		return assignment.Assignment{}, db.ErrNotFound
	}
	return a, nil
}

func (f *fakeAssignments) ListEvents(_ context.Context, tenantID, assignmentID string) ([]assignment.Event, error) {
	var out []assignment.Event
	for _, ev := range f.events {
		if ev.TenantID == tenantID && ev.AssignmentID == assignmentID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// fakeOrders counts how many orders each idempotency scope produced.
type fakeOrders struct {
	created map[string]int
	failKey string
}

func newFakeOrders() *fakeOrders { return &fakeOrders{created: map[string]int{}} }

func (f *fakeOrders) CreateOrder(_ context.Context, req commerce.OrderRequest) (commerce.Order, error) {
	if f.failKey != "" && req.OccurrenceKey == f.failKey {
		return commerce.Order{}, fmt.Errorf("commerce unavailable")
	}
	f.created[req.TenantID+":"+req.OccurrenceKey]++
	return commerce.Order{
		ID:             "ord-" + req.OccurrenceKey,
		ConfirmedStart: req.Start,
		ConfirmedEnd:   req.End,
	}, nil
}

type fakeTemplates struct {
	templates map[string]fulfillment.ComponentTemplate
}

func (f *fakeTemplates) Template(_ context.Context, _, sellableID string) (fulfillment.ComponentTemplate, error) {
	tpl, ok := f.templates[sellableID]
	if !ok {
		return fulfillment.ComponentTemplate{}, fmt.Errorf("unknown sellable %s", sellableID)
	}
	return tpl, nil
}
