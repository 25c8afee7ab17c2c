package render

import (
	"fmt"
	"html/template"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"calcolumn/internal/config"
	"calcolumn/internal/hass"
	"calcolumn/internal/layout"
	"calcolumn/internal/model"
	"calcolumn/internal/resolve"
	"calcolumn/internal/store"
)

// compactScale shrinks hour rows in compact mode.
const compactScale = 0.8

var (
	descriptionPolicy = bluemonday.UGCPolicy()
	safeColor         = regexp.MustCompile(`^[#A-Za-z0-9(),.% ]{1,40}$`)
)

// Selection is the event shown in the modal.
type Selection struct {
	Entity string
	Event  model.CalendarEvent
}

// UIState is the interaction state that affects rendering.
type UIState struct {
	Date     time.Time
	Selected *Selection
	// Static hides navigation and links, for captures and snapshots.
	Static bool
}

// View is everything a render depends on. Render(v) is a pure function of v.
type View struct {
	Card     config.Card
	Store    store.Snapshot
	UI       UIState
	Host     hass.State
	Now      time.Time
	Location *time.Location
}

// Page is the template model produced by Build.
type Page struct {
	Title     string
	DateLabel string
	DateISO   string
	Ready     bool
	Loading   bool
	Error     string
	Compact   bool
	Block     bool
	Static    bool

	// AutoRefresh asks the browser to reload the page every minute.
	AutoRefresh bool

	CalendarCount int
	Calendars     []CalendarHeader
	ShowAllDay    bool
	AllDay        []Cell
	Rows          []Row
	Overlays      []Cell
	RowHeight     float64
	BodyHeight    float64

	Modal *Modal
}

// CalendarHeader is one column heading.
type CalendarHeader struct {
	Entity string
	Name   string
	Color  string
}

// Row is one hour row.
type Row struct {
	Hour  int
	Label string
	Cells []Cell
}

// Cell holds the events drawn in one calendar column of a row.
type Cell struct {
	Entity string
	Events []EventBlock
}

// EventBlock is one drawn event.
type EventBlock struct {
	Title     string
	TimeLabel string
	Location  string
	Density   string
	Href      string
	Style     template.CSS
	// ContinuesBefore and ContinuesAfter mark events clipped by the visible range.
	ContinuesBefore bool
	ContinuesAfter  bool
}

// Modal is the detail overlay of the selected event.
type Modal struct {
	Title       string
	Color       string
	Fields      []Field
	Description template.HTML
}

// Field is one labelled modal line.
type Field struct {
	Label string
	Value string
}

// Build projects v into the template model.
func Build(v View) Page {
	loc := v.Location
	if loc == nil {
		loc = time.Local
	}
	now := v.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.In(loc)
	day := v.UI.Date
	if day.IsZero() {
		day = now
	}
	day = day.In(loc)

	card := v.Card
	rowHeight := card.HourHeight
	if rowHeight <= 0 {
		rowHeight = config.DefaultHourHeight
	}
	if card.Compact {
		rowHeight *= compactScale
	}

	p := Page{
		Title:         card.Title,
		DateLabel:     DateLabel(day, now),
		DateISO:       day.Format("2006-01-02"),
		Loading:       v.Store.Loading,
		Error:         v.Store.Error,
		Compact:       card.Compact,
		Block:         card.EventLayout == config.LayoutBlock,
		Static:        v.UI.Static,
		CalendarCount: len(card.Calendars),
		ShowAllDay:    card.ShowAllDay,
		RowHeight:     rowHeight,
		BodyHeight:    rowHeight * float64(card.VisibleHours()),
		AutoRefresh:   true,
	}
	p.Ready = !p.Loading
	if v.UI.Static || v.UI.Selected != nil {
		p.AutoRefresh = false
	}
	if p.Loading || p.Error != "" {
		return p
	}

	res := resolve.Resolver{Card: card, Host: v.Host}
	hours := layout.Hours(card.StartHour, card.EndHour)
	p.Rows = make([]Row, len(hours))
	for i, h := range hours {
		p.Rows[i] = Row{Hour: h, Label: HourLabel(h, card.TimeFormat), Cells: make([]Cell, len(card.Calendars))}
	}
	p.Calendars = make([]CalendarHeader, len(card.Calendars))
	p.AllDay = make([]Cell, len(card.Calendars))
	if p.Block {
		p.Overlays = make([]Cell, len(card.Calendars))
	}

	for ci, cal := range card.Calendars {
		color := cssColor(res.ColorFor(cal.Entity, ci), ci)
		p.Calendars[ci] = CalendarHeader{Entity: cal.Entity, Name: res.NameFor(cal.Entity), Color: color}

		allDay, timed := layout.Split(v.Store.Events[cal.Entity], loc)

		p.AllDay[ci] = Cell{Entity: cal.Entity, Events: make([]EventBlock, 0, len(allDay))}
		for _, it := range allDay {
			p.AllDay[ci].Events = append(p.AllDay[ci].Events, EventBlock{
				Title:    it.Event.Title(),
				Location: it.Event.Location,
				Density:  layout.DensityTitleOnly.String(),
				Href:     eventHref(cal.Entity, it.Key()),
				Style:    template.CSS("background-color: " + color),
			})
		}

		for ri := range p.Rows {
			p.Rows[ri].Cells[ci] = Cell{Entity: cal.Entity, Events: []EventBlock{}}
		}
		if p.Block {
			p.Overlays[ci] = Cell{Entity: cal.Entity, Events: blockEvents(timed, cal.Entity, color, day, card, rowHeight)}
			continue
		}
		for _, it := range timed {
			if !sameDay(it.Span.Start, day) {
				continue
			}
			ri := layout.HourCell(it.Span.Start, card.StartHour)
			if ri < 0 || ri >= len(p.Rows) {
				continue
			}
			b := layout.Place(it.Span.Start, it.Span.End, rowHeight)
			ev := timedBlock(it, cal.Entity, color, card, b.Top, b.Height)
			p.Rows[ri].Cells[ci].Events = append(p.Rows[ri].Cells[ci].Events, ev)
		}
	}

	if v.UI.Selected != nil {
		p.Modal = buildModal(*v.UI.Selected, res, card, loc)
	}
	return p
}

func blockEvents(timed []layout.Item, entity, color string, day time.Time, card config.Card, rowHeight float64) []EventBlock {
	out := make([]EventBlock, 0, len(timed))
	for _, it := range timed {
		c := layout.Clamp(it.Span.Start, it.Span.End, day, card.StartHour, card.EndHour, rowHeight)
		if !c.Visible {
			continue
		}
		ev := timedBlock(it, entity, color, card, c.Top, c.Height)
		ev.ContinuesBefore = c.StartsBeforeView
		ev.ContinuesAfter = c.EndsAfterView
		out = append(out, ev)
	}
	return out
}

func timedBlock(it layout.Item, entity, color string, card config.Card, top, height float64) EventBlock {
	density := layout.DensityFor(it.Span.Duration(), height)
	loc := it.Event.Location
	if card.Compact || density != layout.DensityFull {
		loc = ""
	}
	label := TimeLabel(it.Span.Start, card.TimeFormat)
	if density == layout.DensityFull {
		label += " - " + TimeLabel(it.Span.End, card.TimeFormat)
	}
	style := fmt.Sprintf("top: %.2fpx; height: %.2fpx; width: %s; left: %s; background-color: %s",
		top, height, it.Column.WidthCSS(), it.Column.LeftCSS(), color)
	return EventBlock{
		Title:     it.Event.Title(),
		TimeLabel: label,
		Location:  loc,
		Density:   density.String(),
		Href:      eventHref(entity, it.Key()),
		Style:     template.CSS(style),
	}
}

func buildModal(sel Selection, res resolve.Resolver, card config.Card, loc *time.Location) *Modal {
	_, idx, _ := card.Calendar(sel.Entity)
	m := &Modal{
		Title: sel.Event.Title(),
		Color: cssColor(res.ColorFor(sel.Entity, idx), idx),
	}
	m.Fields = append(m.Fields, Field{Label: "Calendar", Value: res.NameFor(sel.Entity)})

	span, err := layout.ParseSpan(sel.Event, loc)
	switch {
	case err != nil:
		m.Fields = append(m.Fields, Field{Label: "Start", Value: sel.Event.Start.Value()})
	case span.AllDay:
		last := span.End
		if span.DateOnly {
			last = last.AddDate(0, 0, -1)
		}
		if last.Before(span.Start) {
			last = span.Start
		}
		m.Fields = append(m.Fields, Field{Label: "Date", Value: span.Start.Format(headerDateLayout)})
		if days := calendarDays(span.Start, last); days > 1 {
			m.Fields = append(m.Fields,
				Field{Label: "End Date", Value: last.Format(headerDateLayout)},
				Field{Label: "Duration", Value: DaysLabel(days)},
			)
		}
	default:
		m.Fields = append(m.Fields,
			Field{Label: "Start", Value: span.Start.Format(headerDateLayout) + " " + TimeLabel(span.Start, card.TimeFormat)},
			Field{Label: "End", Value: span.End.Format(headerDateLayout) + " " + TimeLabel(span.End, card.TimeFormat)},
			Field{Label: "Duration", Value: DurationLabel(span.Duration())},
		)
	}

	if sel.Event.Location != "" {
		m.Fields = append(m.Fields, Field{Label: "Location", Value: sel.Event.Location})
	}
	if desc := strings.TrimSpace(sel.Event.Description); desc != "" {
		clean := descriptionPolicy.Sanitize(desc)
		m.Description = template.HTML(strings.ReplaceAll(clean, "\n", "<br>"))
	}
	return m
}

// calendarDays counts calendar days from a to b, both included.
func calendarDays(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours()/24) + 1
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func eventHref(entity, key string) string {
	q := url.Values{}
	q.Set("entity", entity)
	q.Set("key", key)
	return "/event?" + q.Encode()
}

// cssColor drops colour values that could break out of a style attribute.
func cssColor(c string, index int) string {
	if safeColor.MatchString(c) {
		return c
	}
	return resolve.DefaultColor(index)
}
