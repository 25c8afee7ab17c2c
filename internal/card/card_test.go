package card

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"calcolumn/internal/config"
	"calcolumn/internal/hass"
	"calcolumn/internal/model"
	"calcolumn/internal/render"
)

var fixedNow = time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)

type countingFetcher struct {
	mu     sync.Mutex
	calls  int
	starts []string
}

func (f *countingFetcher) FetchEvents(_ context.Context, entityID, start, _ string) ([]model.CalendarEvent, error) {
	f.mu.Lock()
	f.calls++
	f.starts = append(f.starts, start)
	f.mu.Unlock()
	if entityID != "calendar.a" {
		return nil, nil
	}
	return []model.CalendarEvent{
		{
			Summary:  "Team Sync",
			Location: "Room 4",
			Start:    model.EventTime{DateTime: "2025-03-04T10:00:00Z"},
			End:      model.EventTime{DateTime: "2025-03-04T11:00:00Z"},
		},
		{
			Summary: "Holiday",
			Start:   model.EventTime{Date: "2025-03-04"},
			End:     model.EventTime{Date: "2025-03-05"},
		},
	}, nil
}

func (f *countingFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testOptions() Options {
	return Options{Location: time.UTC, Now: func() time.Time { return fixedNow }}
}

func mustCard(t *testing.T, entities ...any) config.Card {
	t.Helper()
	cfg, err := config.NormalizeCard(config.RawCard{Entities: entities})
	if err != nil {
		t.Fatalf("NormalizeCard() error = %v", err)
	}
	return cfg
}

func TestFirstHostStateRefreshesOnce(t *testing.T) {
	f := &countingFetcher{}
	c := New(mustCard(t, "calendar.a", "calendar.b"), f, testOptions())
	if f.count() != 0 {
		t.Fatalf("expected no fetch before host state, got %d", f.count())
	}

	ctx := context.Background()
	if err := c.SetHass(ctx, hass.NewState()); err != nil {
		t.Fatalf("SetHass() error = %v", err)
	}
	if err := c.SetHass(ctx, hass.NewState()); err != nil {
		t.Fatalf("SetHass() error = %v", err)
	}
	if f.count() != 2 {
		t.Fatalf("expected one fetch cycle over two calendars, got %d calls", f.count())
	}
	if !strings.Contains(string(c.HTML()), "Team Sync") {
		t.Fatal("expected fetched event in rendered document")
	}
}

func TestNextThenPreviousRestoresDay(t *testing.T) {
	f := &countingFetcher{}
	c := New(mustCard(t, "calendar.a"), f, testOptions())
	ctx := context.Background()
	before := c.Date()

	if err := c.NextDay(ctx); err != nil {
		t.Fatalf("NextDay() error = %v", err)
	}
	if !c.Date().Equal(before.AddDate(0, 0, 1)) {
		t.Fatalf("unexpected date after NextDay %v", c.Date())
	}
	if err := c.PreviousDay(ctx); err != nil {
		t.Fatalf("PreviousDay() error = %v", err)
	}
	if !c.Date().Equal(before) {
		t.Fatalf("expected %v, got %v", before, c.Date())
	}
	if f.count() != 2 {
		t.Fatalf("expected exactly two fetch cycles, got %d", f.count())
	}
	if f.starts[0] != "2025-03-05T00:00:00" || f.starts[1] != "2025-03-04T00:00:00" {
		t.Fatalf("unexpected windows %v", f.starts)
	}

	if err := c.GoTo(ctx, time.Date(2025, 12, 24, 15, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("GoTo() error = %v", err)
	}
	if err := c.Today(ctx); err != nil {
		t.Fatalf("Today() error = %v", err)
	}
	if !c.Date().Equal(before) {
		t.Fatalf("Today() selected %v", c.Date())
	}
}

func TestModalSuppressesHostRenders(t *testing.T) {
	f := &countingFetcher{}
	c := New(mustCard(t, "calendar.a"), f, testOptions())
	ctx := context.Background()
	if err := c.SetHass(ctx, hass.NewState()); err != nil {
		t.Fatalf("SetHass() error = %v", err)
	}

	key := "1741082400000"
	if err := c.Open(Handle{Entity: "calendar.a", Key: key}); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sel, ok := c.Selected()
	if !ok || sel.Event.Summary != "Team Sync" {
		t.Fatalf("unexpected selection %+v %t", sel, ok)
	}
	html := string(c.HTML())
	for _, s := range []string{"Team Sync", "Room 4", "Duration"} {
		if !strings.Contains(html, s) {
			t.Fatalf("modal missing %q", s)
		}
	}

	renders := c.Renders()
	if err := c.SetHass(ctx, hass.NewState()); err != nil {
		t.Fatalf("SetHass() error = %v", err)
	}
	if c.Renders() != renders {
		t.Fatal("host state re-rendered while modal open")
	}

	c.Close()
	if _, ok := c.Selected(); ok {
		t.Fatal("modal still open after Close")
	}
	if c.Renders() != renders+1 {
		t.Fatalf("expected one render on close, got %d", c.Renders()-renders)
	}
	if err := c.SetHass(ctx, hass.NewState()); err != nil {
		t.Fatalf("SetHass() error = %v", err)
	}
	if c.Renders() != renders+2 {
		t.Fatal("host state did not re-render after close")
	}
}

func TestOpenAllDayAndUnknownHandles(t *testing.T) {
	c := New(mustCard(t, "calendar.a"), &countingFetcher{}, testOptions())
	if err := c.SetHass(context.Background(), hass.NewState()); err != nil {
		t.Fatalf("SetHass() error = %v", err)
	}
	if err := c.Open(Handle{Entity: "calendar.a", Key: "allday:2025-03-04"}); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if sel, _ := c.Selected(); sel.Event.Summary != "Holiday" {
		t.Fatalf("unexpected selection %+v", sel)
	}
	c.Close()

	for _, h := range []Handle{
		{Entity: "calendar.a", Key: "42"},
		{Entity: "calendar.z", Key: "1741082400000"},
		{},
	} {
		if err := c.Open(h); !errors.Is(err, ErrUnknownEvent) {
			t.Fatalf("Open(%+v) error = %v, want ErrUnknownEvent", h, err)
		}
	}
	if _, ok := c.Selected(); ok {
		t.Fatal("unknown handle opened the modal")
	}
}

func TestSetConfigRefetchesOnCalendarChange(t *testing.T) {
	f := &countingFetcher{}
	c := New(mustCard(t, "calendar.a"), f, testOptions())
	ctx := context.Background()
	if err := c.SetHass(ctx, hass.NewState()); err != nil {
		t.Fatalf("SetHass() error = %v", err)
	}

	retitled := mustCard(t, "calendar.a")
	retitled.Title = "Renamed"
	if err := c.SetConfig(ctx, retitled); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	if f.count() != 1 {
		t.Fatalf("title change refetched: %d calls", f.count())
	}
	if !strings.Contains(string(c.HTML()), "Renamed") {
		t.Fatal("title change not rendered")
	}

	if err := c.SetConfig(ctx, mustCard(t, "calendar.a", "calendar.b")); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	if f.count() != 3 {
		t.Fatalf("expected refetch of two calendars, got %d calls", f.count())
	}
}

type recordingCatalog struct {
	entries []Info
}

func (r *recordingCatalog) Register(i Info) { r.entries = append(r.entries, i) }

func TestAnnounceAndStub(t *testing.T) {
	cat := &recordingCatalog{}
	Announce(cat)
	if len(cat.entries) != 1 || cat.entries[0].Type != "calendar-column-view-card" || cat.entries[0].Name != "Calendar Column View" {
		t.Fatalf("unexpected catalog entries %+v", cat.entries)
	}
	stub := StubConfig()
	if *stub.StartHour != 6 || *stub.EndHour != 22 || stub.Title != "Calendar View" || len(stub.Entities) != 0 {
		t.Fatalf("unexpected stub %+v", stub)
	}
	if Size != 3 {
		t.Fatalf("Size = %d", Size)
	}
}

func TestConcurrentRendersKeepLatestDocument(t *testing.T) {
	c := New(mustCard(t, "calendar.a"), &countingFetcher{}, testOptions())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = c.SetHass(ctx, hass.NewState())
		}()
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = c.NextDay(ctx)
			} else {
				_ = c.PreviousDay(ctx)
			}
		}(i)
	}
	wg.Wait()

	if got, want := string(c.HTML()), string(render.Render(c.View())); got != want {
		t.Fatal("stored document does not match the current state")
	}
}
