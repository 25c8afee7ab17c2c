package render

import (
	"strings"
	"testing"
	"time"

	"calcolumn/internal/config"
	"calcolumn/internal/hass"
	"calcolumn/internal/model"
	"calcolumn/internal/resolve"
	"calcolumn/internal/store"
)

var day = time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)

func testCard(t *testing.T, raw config.RawCard) config.Card {
	t.Helper()
	card, err := config.NormalizeCard(raw)
	if err != nil {
		t.Fatalf("NormalizeCard() error = %v", err)
	}
	return card
}

func threeCalendars() config.RawCard {
	return config.RawCard{Entities: []any{"calendar.a", "calendar.b", "calendar.c"}}
}

func testView(card config.Card, events map[string][]model.CalendarEvent) View {
	return View{
		Card:     card,
		Store:    store.Snapshot{Events: events, Day: day},
		UI:       UIState{Date: day},
		Now:      day.Add(9 * time.Hour),
		Location: time.UTC,
	}
}

func timedEvent(summary, start, end string) model.CalendarEvent {
	return model.CalendarEvent{
		Summary: summary,
		Start:   model.EventTime{DateTime: start},
		End:     model.EventTime{DateTime: end},
	}
}

func TestRenderHourRowCount(t *testing.T) {
	for _, hours := range [][2]int{{0, 23}, {6, 22}, {9, 10}} {
		start, end := hours[0], hours[1]
		raw := threeCalendars()
		raw.StartHour, raw.EndHour = &start, &end
		html := string(Render(testView(testCard(t, raw), nil)))
		if got := strings.Count(html, `class="hour-row`); got != end-start+1 {
			t.Fatalf("hours %d-%d: expected %d rows, got %d", start, end, end-start+1, got)
		}
		if !strings.Contains(html, "repeat(3, 1fr)") {
			t.Fatalf("expected 3 calendar grid columns")
		}
		if !strings.Contains(html, `data-ready="true"`) {
			t.Fatalf("expected ready marker")
		}
	}
}

func TestBuildPaletteColours(t *testing.T) {
	p := Build(testView(testCard(t, threeCalendars()), nil))
	for i, h := range p.Calendars {
		if h.Color != resolve.Palette[i] {
			t.Fatalf("calendar %d colour = %q, want %q", i, h.Color, resolve.Palette[i])
		}
	}
	if p.Calendars[1].Name != "b" {
		t.Fatalf("expected stripped entity name, got %q", p.Calendars[1].Name)
	}
}

func TestBuildUsesHostNamesAndColours(t *testing.T) {
	v := testView(testCard(t, threeCalendars()), nil)
	v.Host = hass.NewState(hass.Entity{
		EntityID:   "calendar.a",
		Attributes: hass.Attributes{FriendlyName: "Family", Color: "#123456"},
	})
	p := Build(v)
	if p.Calendars[0].Name != "Family" || p.Calendars[0].Color != "#123456" {
		t.Fatalf("unexpected header %+v", p.Calendars[0])
	}
}

func TestBuildTwentyMinuteEvent(t *testing.T) {
	card := testCard(t, threeCalendars())
	p := Build(testView(card, map[string][]model.CalendarEvent{
		"calendar.a": {timedEvent("Quick", "2025-03-04T10:40:00Z", "2025-03-04T11:00:00Z")},
	}))

	row := p.Rows[10-card.StartHour]
	if row.Hour != 10 || len(row.Cells[0].Events) != 1 {
		t.Fatalf("expected event in 10:00 row, got %+v", row)
	}
	ev := row.Cells[0].Events[0]
	if ev.Density != "inline" {
		t.Fatalf("expected inline density, got %q", ev.Density)
	}
	if !strings.Contains(string(ev.Style), "top: 40.00px; height: 20.00px") {
		t.Fatalf("unexpected style %q", ev.Style)
	}
	if ev.Href != "/event?entity=calendar.a&key=1741084800000" {
		t.Fatalf("unexpected href %q", ev.Href)
	}
}

func TestBuildOverlapColumns(t *testing.T) {
	p := Build(testView(testCard(t, threeCalendars()), map[string][]model.CalendarEvent{
		"calendar.a": {
			timedEvent("One", "2025-03-04T10:00:00Z", "2025-03-04T11:00:00Z"),
			timedEvent("Two", "2025-03-04T10:30:00Z", "2025-03-04T11:30:00Z"),
			timedEvent("Alone", "2025-03-04T12:00:00Z", "2025-03-04T13:00:00Z"),
		},
	}))
	ten := p.Rows[4].Cells[0].Events
	if len(ten) != 2 {
		t.Fatalf("expected two events in the 10:00 row, got %d", len(ten))
	}
	if !strings.Contains(string(ten[0].Style), "width: calc(50% - 2px)") || !strings.Contains(string(ten[1].Style), "left: calc(50% + 2px)") {
		t.Fatalf("unexpected overlap styles %q / %q", ten[0].Style, ten[1].Style)
	}
	alone := p.Rows[6].Cells[0].Events[0]
	if !strings.Contains(string(alone.Style), "width: calc(100% - 2px); left: calc(0% + 0px)") {
		t.Fatalf("unexpected full-width style %q", alone.Style)
	}
}

func TestBuildAllDayRow(t *testing.T) {
	events := map[string][]model.CalendarEvent{
		"calendar.b": {{Summary: "", Start: model.EventTime{Date: "2025-03-04"}, End: model.EventTime{Date: "2025-03-05"}}},
	}
	p := Build(testView(testCard(t, threeCalendars()), events))
	if len(p.AllDay[1].Events) != 1 || p.AllDay[1].Events[0].Title != "Untitled Event" {
		t.Fatalf("unexpected all-day cell %+v", p.AllDay[1])
	}
	if p.AllDay[1].Events[0].Href != "/event?entity=calendar.b&key=allday%3A2025-03-04" {
		t.Fatalf("unexpected href %q", p.AllDay[1].Events[0].Href)
	}

	hidden := false
	raw := threeCalendars()
	raw.ShowAllDayEvents = &hidden
	html := string(Render(testView(testCard(t, raw), events)))
	if strings.Contains(html, `class="all-day-cell"`) {
		t.Fatal("all-day row rendered while disabled")
	}
}

func TestRenderLoadingAndError(t *testing.T) {
	v := testView(testCard(t, threeCalendars()), nil)
	v.Store.Loading = true
	html := string(Render(v))
	if !strings.Contains(html, `class="spinner"`) || strings.Contains(html, "hour-row") || !strings.Contains(html, `data-ready="false"`) {
		t.Fatalf("unexpected loading render")
	}

	v.Store.Loading = false
	v.Store.Error = store.LoadFailedMessage
	html = string(Render(v))
	if !strings.Contains(html, "Failed to load events") || strings.Contains(html, "hour-row") {
		t.Fatalf("unexpected error render")
	}
}

func TestRenderModal(t *testing.T) {
	ev := timedEvent("Team Sync", "2025-03-04T10:00:00Z", "2025-03-04T11:30:00Z")
	ev.Location = "Room 4"
	ev.Description = "<script>alert(1)</script>Agenda"
	v := testView(testCard(t, threeCalendars()), map[string][]model.CalendarEvent{"calendar.a": {ev}})
	v.UI.Selected = &Selection{Entity: "calendar.a", Event: ev}

	p := Build(v)
	if p.Modal == nil || p.AutoRefresh {
		t.Fatalf("expected modal without auto refresh, got %+v", p)
	}
	want := map[string]string{"Calendar": "a", "Duration": "1h 30m", "Location": "Room 4", "Start": "Tue, Mar 4, 2025 10:00"}
	for _, f := range p.Modal.Fields {
		if w, ok := want[f.Label]; ok && w != f.Value {
			t.Fatalf("field %s = %q, want %q", f.Label, f.Value, w)
		}
		delete(want, f.Label)
	}
	if len(want) != 0 {
		t.Fatalf("missing modal fields %v", want)
	}

	html := string(Render(v))
	for _, s := range []string{"Team Sync", "Room 4", "Agenda", `href="/event/close"`} {
		if !strings.Contains(html, s) {
			t.Fatalf("modal missing %q", s)
		}
	}
	if strings.Contains(html, "<script>") {
		t.Fatal("description not sanitised")
	}
}

func TestModalMultiDayAllDay(t *testing.T) {
	ev := model.CalendarEvent{Summary: "Trip", Start: model.EventTime{Date: "2025-03-04"}, End: model.EventTime{Date: "2025-03-07"}}
	v := testView(testCard(t, threeCalendars()), nil)
	v.UI.Selected = &Selection{Entity: "calendar.c", Event: ev}
	p := Build(v)
	got := map[string]string{}
	for _, f := range p.Modal.Fields {
		got[f.Label] = f.Value
	}
	if got["Date"] != "Tue, Mar 4, 2025" || got["End Date"] != "Thu, Mar 6, 2025" || got["Duration"] != "3 days" {
		t.Fatalf("unexpected all-day fields %v", got)
	}
}

func TestBuildBlockLayoutContinuation(t *testing.T) {
	raw := threeCalendars()
	raw.EventLayout = "block"
	p := Build(testView(testCard(t, raw), map[string][]model.CalendarEvent{
		"calendar.a": {timedEvent("Early", "2025-03-04T05:00:00Z", "2025-03-04T07:00:00Z")},
	}))
	if !p.Block || len(p.Overlays) != 3 {
		t.Fatalf("expected block overlays, got %+v", p.Overlays)
	}
	ev := p.Overlays[0].Events[0]
	if !ev.ContinuesBefore || ev.ContinuesAfter {
		t.Fatalf("unexpected continuation flags %+v", ev)
	}
	if !strings.Contains(string(ev.Style), "top: 0.00px; height: 60.00px") {
		t.Fatalf("unexpected style %q", ev.Style)
	}
}

func TestCompactModeScalesRows(t *testing.T) {
	raw := threeCalendars()
	raw.CompactMode = true
	ev := timedEvent("Long", "2025-03-04T10:00:00Z", "2025-03-04T11:00:00Z")
	ev.Location = "Hidden"
	p := Build(testView(testCard(t, raw), map[string][]model.CalendarEvent{"calendar.a": {ev}}))
	if p.RowHeight != 48 {
		t.Fatalf("expected 48px rows, got %v", p.RowHeight)
	}
	if got := p.Rows[4].Cells[0].Events[0]; got.Location != "" || got.Density != "full" {
		t.Fatalf("unexpected compact event %+v", got)
	}
}

func TestLabels(t *testing.T) {
	cases := []struct {
		got, want string
	}{
		{HourLabel(0, config.TimeFormat12h), "12:00 AM"},
		{HourLabel(13, config.TimeFormat12h), "1:00 PM"},
		{HourLabel(6, config.TimeFormat24h), "06:00"},
		{TimeLabel(time.Date(2025, 1, 1, 15, 5, 0, 0, time.UTC), config.TimeFormat12h), "3:05 PM"},
		{DurationLabel(45 * time.Minute), "45m"},
		{DurationLabel(2 * time.Hour), "2h"},
		{DateLabel(day, day), "Today"},
		{DateLabel(day.AddDate(0, 0, -1), day), "Yesterday"},
		{DateLabel(day.AddDate(0, 0, 1), day), "Tomorrow"},
		{DateLabel(day.AddDate(0, 0, 5), day), "Sun, Mar 9, 2025"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Fatalf("got %q, want %q", c.got, c.want)
		}
	}
}

func TestModalBackdropCloses(t *testing.T) {
	html := string(RenderPage(Page{Title: "Calendar View", Ready: true, Modal: &Modal{Title: "Team Sync", Color: "#4285f4"}}))
	if n := strings.Count(html, `href="/event/close"`); n != 2 {
		t.Fatalf("expected close link and backdrop close target, got %d", n)
	}
	if !strings.Contains(html, `<a class="backdrop-close" href="/event/close"`) {
		t.Fatal("backdrop carries no close action")
	}

	html = string(RenderPage(Page{Title: "Calendar View", Ready: true}))
	if strings.Contains(html, "/event/close") {
		t.Fatal("close targets rendered without a modal")
	}
}
