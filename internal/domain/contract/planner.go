package contract

import (
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/example/opsched/internal/internaltypes"
)

// PlanWindow bounds one expansion run, typically today .. today+horizon.
type PlanWindow struct {
	From time.Time
	To   time.Time
}

// PlannedOccurrence is one candidate produced by expansion, before the
// idempotent upsert. Suppressed candidates (pause windows) never appear.
type PlannedOccurrence struct {
	Key        string
	Start      time.Time
	End        time.Time
	Status     OccurrenceStatus
	Reason     string
	LocationID string
	SellableID string
}

// Expand turns a contract's recurrence plus its active exceptions into the
// concrete candidate set for the window. Pure: given the same inputs it
// returns the same set, so two racing workers converge on identical rows.
//
// Exception precedence: a pause window suppresses the candidate outright;
// skip and cancel terminally mark it; reschedule moves its window while
// keeping the occurrence key.
func Expand(c Contract, exceptions []Exception, win PlanWindow, now time.Time) ([]PlannedOccurrence, error) {
	if c.Status != StatusActive {
		return nil, nil
	}

	pauses := activePauses(exceptions)

	// While "now" sits inside a pause window the contract is suspended:
	// generation is skipped entirely, not merely filtered.
	for _, p := range pauses {
		if p.Contains(now) {
			return nil, nil
		}
	}

	from, to, ok := clampWindow(c, win, now)
	if !ok {
		return nil, nil
	}

	loc := c.Location()
	opt, err := rrule.StrToROption(c.Recurrence)
	if err != nil {
		return nil, &internaltypes.RecurrenceParseError{ContractID: c.ID, Expr: c.Recurrence, Err: err}
	}
	opt.Dtstart = c.AnchorAt.In(loc)
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, &internaltypes.RecurrenceParseError{ContractID: c.ID, Expr: c.Recurrence, Err: err}
	}

	duration := time.Duration(c.DurationMin) * time.Minute

	var out []PlannedOccurrence
candidates:
	for _, start := range rule.Between(from.In(loc), to.In(loc), true) {
		key := OccurrenceKey(c.ID, start)

		for _, p := range pauses {
			if p.Contains(start) {
				continue candidates
			}
		}

		occ := PlannedOccurrence{
			Key:        key,
			Start:      start,
			End:        start.Add(duration),
			Status:     OccurrencePlanned,
			LocationID: c.Policy.LocationID,
			SellableID: c.Policy.SellableID,
		}

		if a, found := overrideFor(exceptions, key, start.In(loc)); found {
			switch a := a.(type) {
			case Skip:
				occ.Status = OccurrenceSkipped
				occ.Reason = a.Reason
			case Cancel:
				occ.Status = OccurrenceCancelled
				occ.Reason = a.Reason
			case Reschedule:
				occ.Start = a.NewStart
				occ.End = a.NewEnd
				if occ.End.IsZero() {
					occ.End = a.NewStart.Add(duration)
				}
				if a.NewLocationID != "" {
					occ.LocationID = a.NewLocationID
				}
				if a.NewSellableID != "" {
					occ.SellableID = a.NewSellableID
				}
			}
		}

		out = append(out, occ)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// NextAfter returns the next instant the contract should generate for,
// after the given time. If that instant falls inside a pause window the
// pointer freezes at the pause's resume instant rather than advancing past
// unexpanded slots.
func NextAfter(c Contract, exceptions []Exception, after time.Time) (time.Time, bool) {
	loc := c.Location()
	opt, err := rrule.StrToROption(c.Recurrence)
	if err != nil {
		return time.Time{}, false
	}
	opt.Dtstart = c.AnchorAt.In(loc)
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return time.Time{}, false
	}
	next := rule.After(after.In(loc), false)
	if next.IsZero() {
		return time.Time{}, false
	}
	for _, p := range activePauses(exceptions) {
		if p.Contains(next) {
			return p.End, true
		}
	}
	return next, true
}

func clampWindow(c Contract, win PlanWindow, now time.Time) (time.Time, time.Time, bool) {
	from := win.From
	if from.Before(c.EffectiveStart) {
		from = c.EffectiveStart
	}
	to := win.To
	if horizon := now.AddDate(0, 0, c.MaxAheadDays); to.After(horizon) {
		to = horizon
	}
	if c.EffectiveEnd != nil && to.After(*c.EffectiveEnd) {
		to = *c.EffectiveEnd
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func activePauses(exceptions []Exception) []Pause {
	var out []Pause
	for _, e := range exceptions {
		if !e.Active {
			continue
		}
		if p, ok := e.Action.(Pause); ok {
			out = append(out, p)
		}
	}
	return out
}

// overrideFor finds the first active skip/cancel/reschedule targeting the
// candidate, matched by key or by local calendar date.
func overrideFor(exceptions []Exception, key string, localStart time.Time) (Action, bool) {
	for _, e := range exceptions {
		if !e.Active {
			continue
		}
		switch a := e.Action.(type) {
		case Skip:
			if a.Target.matches(key, localStart) {
				return a, true
			}
		case Cancel:
			if a.Target.matches(key, localStart) {
				return a, true
			}
		case Reschedule:
			if a.Target.matches(key, localStart) {
				return a, true
			}
		}
	}
	return nil, false
}
