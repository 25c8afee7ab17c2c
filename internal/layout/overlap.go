package layout

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	appLog "calcolumn/internal/log"
	"calcolumn/internal/model"
)

// Overlaps reports whether two spans intersect as open intervals.
func Overlaps(a, b Span) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Group holds indices into the span slice passed to GroupOverlaps, in start order.
type Group []int

// GroupOverlaps sorts spans by start and assigns each one to the first group
// that already holds an overlapping member, otherwise opens a new group.
//
// This is a greedy connected-components pass, not an optimal interval
// partition: a later event that bridges two existing groups joins the first
// one only.
func GroupOverlaps(spans []Span) []Group {
	order := make([]int, len(spans))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return spans[order[a]].Start.Before(spans[order[b]].Start)
	})

	groups := make([]Group, 0)
	for _, idx := range order {
		placed := false
		for g := range groups {
			for _, member := range groups[g] {
				if Overlaps(spans[idx], spans[member]) {
					groups[g] = append(groups[g], idx)
					placed = true
					break
				}
			}
			if placed {
				break
			}
		}
		if !placed {
			groups = append(groups, Group{idx})
		}
	}
	return groups
}

// Column is the horizontal slot of an event within its overlap group.
type Column struct {
	Index int
	Count int
}

// WidthPct is the share of the calendar column before the gap is subtracted.
func (c Column) WidthPct() float64 {
	if c.Count <= 0 {
		return 100
	}
	return 100 / float64(c.Count)
}

// LeftPct is the left offset before the gap is added.
func (c Column) LeftPct() float64 {
	return c.WidthPct() * float64(c.Index)
}

// WidthCSS renders the width as a CSS calc() expression.
func (c Column) WidthCSS() string {
	return fmt.Sprintf("calc(%s%% - %dpx)", formatPct(c.WidthPct()), ColumnGapPx)
}

// LeftCSS renders the left offset as a CSS calc() expression.
func (c Column) LeftCSS() string {
	gap := 0
	if c.Index > 0 {
		gap = ColumnGapPx
	}
	return fmt.Sprintf("calc(%s%% + %dpx)", formatPct(c.LeftPct()), gap)
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Columns assigns a Column to every span index covered by groups.
func Columns(groups []Group, n int) []Column {
	out := make([]Column, n)
	for i := range out {
		out[i] = Column{Index: 0, Count: 1}
	}
	for _, g := range groups {
		for pos, idx := range g {
			if idx < 0 || idx >= n {
				continue
			}
			out[idx] = Column{Index: pos, Count: len(g)}
		}
	}
	return out
}

// Item is a parsed event ready for placement.
type Item struct {
	Event  model.CalendarEvent
	Span   Span
	Column Column
}

// Split classifies a calendar's events into all-day and timed items. Timed
// items get overlap columns; events whose times cannot be parsed are skipped.
func Split(events []model.CalendarEvent, loc *time.Location) (allDay, timed []Item) {
	allDay = make([]Item, 0)
	timed = make([]Item, 0)
	for _, ev := range events {
		span, err := ParseSpan(ev, loc)
		if err != nil {
			appLog.Debug("layout: skipping event with unparseable time", "summary", ev.Summary, "err", err)
			continue
		}
		item := Item{Event: ev, Span: span, Column: Column{Count: 1}}
		if span.AllDay {
			allDay = append(allDay, item)
		} else {
			timed = append(timed, item)
		}
	}

	spans := make([]Span, len(timed))
	for i, it := range timed {
		spans[i] = it.Span
	}
	cols := Columns(GroupOverlaps(spans), len(timed))
	for i := range timed {
		timed[i].Column = cols[i]
	}
	return allDay, timed
}

// AllDayKeyPrefix marks occurrence keys of all-day events.
const AllDayKeyPrefix = "allday:"

// Key identifies one occurrence within its calendar: the start instant in
// Unix milliseconds for timed events, "allday:" plus the raw start value for
// all-day events.
func (it Item) Key() string {
	if it.Span.AllDay {
		return AllDayKeyPrefix + it.Event.Start.Value()
	}
	return strconv.FormatInt(it.Span.Start.UnixMilli(), 10)
}
