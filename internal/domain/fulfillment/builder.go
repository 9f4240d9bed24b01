package fulfillment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/opsched/internal/internaltypes"
)

// ComponentDef is one entry of a sellable's component template, as served
// by the catalog.
type ComponentDef struct {
	ID              string
	Kind            UnitKind
	DurationHintMin int
	LocationID      string
}

// RelationDef declares a dependency between two components of the same
// template.
type RelationDef struct {
	PredecessorID string
	SuccessorID   string
	Type          DependencyType
	MinGapMin     *int
	MaxGapMin     *int
	HardBlock     bool
}

type ComponentTemplate struct {
	SellableID string
	Components []ComponentDef
	Relations  []RelationDef
}

// OrderRef is the confirmed order the graph is built for, as returned by
// the commerce service.
type OrderRef struct {
	ID             string
	TenantID       string
	ConfirmedStart time.Time
	ConfirmedEnd   time.Time
}

// BuildGraph materializes one unit per template component and one edge per
// declared relation. A self-loop or a relation naming an unknown component
// is a template defect: the build fails before anything is persisted.
//
// Components with duration hints split the confirmed window sequentially in
// proportion to their hints; unhinted components stay planned with null
// timing for the allocator to place later.
func BuildGraph(order OrderRef, tpl ComponentTemplate, now time.Time) ([]Unit, []Dependency, error) {
	if len(tpl.Components) == 0 {
		return nil, nil, fmt.Errorf("template %s has no components", tpl.SellableID)
	}

	units := make([]Unit, 0, len(tpl.Components))
	byComponent := make(map[string]int, len(tpl.Components))

	totalHint := 0
	for _, c := range tpl.Components {
		totalHint += c.DurationHintMin
	}
	window := order.ConfirmedEnd.Sub(order.ConfirmedStart)

	cursor := order.ConfirmedStart
	for _, c := range tpl.Components {
		if _, dup := byComponent[c.ID]; dup {
			return nil, nil, fmt.Errorf("template %s: duplicate component %s", tpl.SellableID, c.ID)
		}
		u := Unit{
			ID:          uuid.NewString(),
			TenantID:    order.TenantID,
			OrderID:     order.ID,
			ComponentID: c.ID,
			Kind:        c.Kind,
			Status:      UnitPlanned,
			LocationID:  c.LocationID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if c.DurationHintMin > 0 && totalHint > 0 && window > 0 {
			share := time.Duration(float64(window) * float64(c.DurationHintMin) / float64(totalHint))
			start := cursor
			end := start.Add(share)
			u.PlannedStart = &start
			u.PlannedEnd = &end
			cursor = end
		}
		byComponent[c.ID] = len(units)
		units = append(units, u)
	}

	deps := make([]Dependency, 0, len(tpl.Relations))
	for _, r := range tpl.Relations {
		if r.PredecessorID == r.SuccessorID {
			return nil, nil, fmt.Errorf("%w: component %s depends on itself", internaltypes.ErrSelfLoop, r.PredecessorID)
		}
		pi, ok := byComponent[r.PredecessorID]
		if !ok {
			return nil, nil, fmt.Errorf("template %s: relation references unknown component %s", tpl.SellableID, r.PredecessorID)
		}
		si, ok := byComponent[r.SuccessorID]
		if !ok {
			return nil, nil, fmt.Errorf("template %s: relation references unknown component %s", tpl.SellableID, r.SuccessorID)
		}
		d := Dependency{
			ID:            uuid.NewString(),
			TenantID:      order.TenantID,
			OrderID:       order.ID,
			PredecessorID: units[pi].ID,
			SuccessorID:   units[si].ID,
			Type:          r.Type,
			MinGapMin:     r.MinGapMin,
			MaxGapMin:     r.MaxGapMin,
			HardBlock:     r.HardBlock,
			CreatedAt:     now,
		}
		if err := d.Validate(); err != nil {
			return nil, nil, err
		}
		deps = append(deps, d)
	}

	return units, deps, nil
}
