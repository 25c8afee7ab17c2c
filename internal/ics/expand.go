package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "calcolumn/internal/log"
)

// maxPerRule caps expansion of a single RRULE inside one window.
const maxPerRule = 500

// occurrence is one concrete instance of a vevent.
type occurrence struct {
	ev    vevent
	start time.Time
	end   time.Time
}

// expand returns every occurrence intersecting [from, to], with RECURRENCE-ID
// overrides replacing the instance they point at and EXDATEs removed.
func expand(events []vevent, from, to time.Time) ([]occurrence, error) {
	if to.Before(from) {
		return nil, errors.New("ics: window end before start")
	}

	overrides := make(map[string][]vevent)
	bases := make([]vevent, 0, len(events))
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		bases = append(bases, ev)
	}

	out := make([]occurrence, 0)
	for _, base := range bases {
		ovs := overrides[base.UID]
		if base.RRule == "" {
			occ := occurrence{ev: base, start: base.Start, end: base.End}
			if o, ok := overrideFor(ovs, base.Start); ok {
				occ = occurrence{ev: o, start: o.Start, end: o.End}
			}
			if intersects(occ.start, occ.end, from, to) {
				out = append(out, occ)
			}
			continue
		}
		out = append(out, expandRule(base, ovs, from, to)...)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].start.Before(out[j].start) })
	return out, nil
}

func expandRule(base vevent, ovs []vevent, from, to time.Time) []occurrence {
	rule, err := rrule.StrToRRule(base.RRule)
	if err != nil {
		appLog.Error("ics: bad RRULE", err, "uid", base.UID, "rrule", base.RRule)
		return nil
	}
	rule.DTStart(base.Start)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range base.ExDates {
		set.ExDate(ex.In(base.Start.Location()))
	}

	dur := base.End.Sub(base.Start)
	// Widen the lower bound so instances that began earlier but still run
	// into the window are found.
	starts := set.Between(from.Add(-dur).In(base.Start.Location()), to.In(base.Start.Location()), true)
	if len(starts) > maxPerRule {
		appLog.Error("ics: recurrence truncated", errors.New("cap reached"), "uid", base.UID, "cap", maxPerRule)
		starts = starts[:maxPerRule]
	}

	out := make([]occurrence, 0, len(starts))
	for _, s := range starts {
		occ := occurrence{ev: base, start: s, end: s.Add(dur)}
		if base.AllDay {
			day := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, s.Location())
			occ.start, occ.end = day, day.Add(dur)
		}
		if o, ok := overrideFor(ovs, s); ok {
			occ = occurrence{ev: o, start: o.Start, end: o.End}
		}
		if intersects(occ.start, occ.end, from, to) {
			out = append(out, occ)
		}
	}
	return out
}

func overrideFor(ovs []vevent, start time.Time) (vevent, bool) {
	for _, o := range ovs {
		if o.RecurrenceID != nil && o.RecurrenceID.Equal(start) {
			return o, true
		}
	}
	return vevent{}, false
}

// intersects treats zero-length events at the window start as inside.
func intersects(start, end, from, to time.Time) bool {
	if end.Equal(start) {
		return !start.Before(from) && !start.After(to)
	}
	return start.Before(to) && end.After(from)
}
