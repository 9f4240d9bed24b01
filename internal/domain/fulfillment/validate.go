package fulfillment

import "time"

type VerdictCode string

const (
	VerdictOK VerdictCode = "ok"
	// VerdictGapViolation means both ends have planned timing and the
	// actual gap falls outside [min, max].
	VerdictGapViolation VerdictCode = "gap_violation"
	// VerdictUnresolved means one or both ends have no planned timing yet;
	// the gap cannot be judged until the allocator places them.
	VerdictUnresolved VerdictCode = "unresolved_timing"
)

type EdgeVerdict struct {
	DependencyID  string
	PredecessorID string
	SuccessorID   string
	Code          VerdictCode
	// ActualGapMin carries the measured gap for gap violations.
	ActualGapMin int
	HardBlock    bool
}

// Report is the validator's output, consumed by the allocator to decide
// which units may proceed to assignment.
type Report struct {
	OrderID      string
	Cyclic       bool
	CycleUnitIDs []string
	Edges        []EdgeVerdict
}

// OK reports whether the graph can proceed as a whole: acyclic and free of
// hard-blocking gap violations.
func (r Report) OK() bool {
	if r.Cyclic {
		return false
	}
	for _, e := range r.Edges {
		if e.Code == VerdictGapViolation && e.HardBlock {
			return false
		}
	}
	return true
}

// BlockedUnitIDs returns units that must not be scheduled: every unit on a
// cycle, plus the successor of any hard-blocking gap violation.
func (r Report) BlockedUnitIDs() []string {
	seen := map[string]bool{}
	var out []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range r.CycleUnitIDs {
		add(id)
	}
	for _, e := range r.Edges {
		if e.Code == VerdictGapViolation && e.HardBlock {
			add(e.SuccessorID)
		}
	}
	return out
}

// Validate checks one order's unit graph: acyclicity via Kahn's algorithm,
// then per-edge gap satisfiability for edges whose ends both carry planned
// timing. Soft gap violations are reported but do not fail the report.
func Validate(orderID string, units []Unit, deps []Dependency) Report {
	report := Report{OrderID: orderID}

	byID := make(map[string]Unit, len(units))
	indegree := make(map[string]int, len(units))
	adjacency := make(map[string][]string)
	for _, u := range units {
		byID[u.ID] = u
		indegree[u.ID] = 0
	}
	for _, d := range deps {
		adjacency[d.PredecessorID] = append(adjacency[d.PredecessorID], d.SuccessorID)
		indegree[d.SuccessorID]++
	}

	queue := make([]string, 0, len(units))
	for _, u := range units {
		if indegree[u.ID] == 0 {
			queue = append(queue, u.ID)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adjacency[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited < len(units) {
		report.Cyclic = true
		// Residual units with positive in-degree are on (or downstream of
		// and entangled with) a cycle.
		for _, u := range units {
			if indegree[u.ID] > 0 {
				report.CycleUnitIDs = append(report.CycleUnitIDs, u.ID)
			}
		}
	}

	for _, d := range deps {
		v := EdgeVerdict{
			DependencyID:  d.ID,
			PredecessorID: d.PredecessorID,
			SuccessorID:   d.SuccessorID,
			Code:          VerdictOK,
			HardBlock:     d.HardBlock,
		}
		gap, ok := edgeGap(d, byID[d.PredecessorID], byID[d.SuccessorID])
		switch {
		case !ok:
			v.Code = VerdictUnresolved
		case d.MinGapMin != nil && gap < *d.MinGapMin,
			d.MaxGapMin != nil && gap > *d.MaxGapMin:
			v.Code = VerdictGapViolation
			v.ActualGapMin = gap
		}
		report.Edges = append(report.Edges, v)
	}

	return report
}

// edgeGap measures the minutes between the two instants the dependency
// type relates. False when either end lacks planned timing.
func edgeGap(d Dependency, pred, succ Unit) (int, bool) {
	var from, to *time.Time
	switch d.Type {
	case FinishToStart:
		from, to = pred.PlannedEnd, succ.PlannedStart
	case StartToStart:
		from, to = pred.PlannedStart, succ.PlannedStart
	case FinishToFinish:
		from, to = pred.PlannedEnd, succ.PlannedEnd
	case StartToFinish:
		from, to = pred.PlannedStart, succ.PlannedEnd
	}
	if from == nil || to == nil {
		return 0, false
	}
	return int(to.Sub(*from) / time.Minute), true
}
