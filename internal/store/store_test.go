package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"calcolumn/internal/model"
)

// stubFetcher records calls and returns canned responses per entity.
type stubFetcher struct {
	mu     sync.Mutex
	calls  []string
	starts []string
	ends   []string
	events map[string][]model.CalendarEvent
	errs   map[string]error
	block  chan struct{}
}

func (s *stubFetcher) FetchEvents(ctx context.Context, entityID, start, end string) ([]model.CalendarEvent, error) {
	s.mu.Lock()
	s.calls = append(s.calls, entityID)
	s.starts = append(s.starts, start)
	s.ends = append(s.ends, end)
	block := s.block
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	if err := s.errs[entityID]; err != nil {
		return nil, err
	}
	return s.events[entityID], nil
}

func TestDayWindowBounds(t *testing.T) {
	loc := time.FixedZone("X", 2*3600)
	w, err := DayWindow(time.Date(2025, 3, 4, 15, 30, 0, 0, loc))
	if err != nil {
		t.Fatalf("DayWindow() error = %v", err)
	}
	start, end := w.Bounds()
	if start != "2025-03-04T00:00:00" || end != "2025-03-04T23:59:59" {
		t.Fatalf("unexpected bounds %q - %q", start, end)
	}
	if w.End.Nanosecond() != int(999*time.Millisecond) {
		t.Fatalf("expected .999 end, got %v", w.End)
	}
	if _, err := DayWindow(time.Time{}); err == nil {
		t.Fatal("expected error for zero date")
	}
}

func TestRefreshFetchesSequentiallyAndDegradesFailures(t *testing.T) {
	f := &stubFetcher{
		events: map[string][]model.CalendarEvent{
			"calendar.a": {{Summary: "A"}},
		},
		errs: map[string]error{"calendar.b": errors.New("boom")},
	}
	c := NewController(f, []string{"calendar.a", "calendar.b", "calendar.c"})

	var changes int
	c.OnChange(func() { changes++ })

	if err := c.Refresh(context.Background(), time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(f.calls) != 3 || f.calls[0] != "calendar.a" || f.calls[2] != "calendar.c" {
		t.Fatalf("unexpected call order %v", f.calls)
	}
	if f.starts[0] != "2025-03-04T00:00:00" || f.ends[0] != "2025-03-04T23:59:59" {
		t.Fatalf("unexpected window %q - %q", f.starts[0], f.ends[0])
	}

	snap := c.Snapshot()
	if snap.Loading || snap.Error != "" {
		t.Fatalf("unexpected state loading=%t error=%q", snap.Loading, snap.Error)
	}
	if len(snap.Events["calendar.a"]) != 1 {
		t.Fatalf("unexpected events for a: %+v", snap.Events["calendar.a"])
	}
	if list, ok := snap.Events["calendar.b"]; !ok || len(list) != 0 {
		t.Fatalf("expected empty list for failed calendar, got %v %t", list, ok)
	}
	if list, ok := snap.Events["calendar.c"]; !ok || list == nil {
		t.Fatalf("expected non-nil empty list for calendar.c, got %v %t", list, ok)
	}
	if changes != 2 {
		t.Fatalf("expected loading + done notifications, got %d", changes)
	}
}

func TestRefreshOrchestrationErrorKeepsPreviousStore(t *testing.T) {
	f := &stubFetcher{events: map[string][]model.CalendarEvent{"calendar.a": {{Summary: "kept"}}}}
	c := NewController(f, []string{"calendar.a"})
	if err := c.Refresh(context.Background(), time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Refresh(ctx, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	snap := c.Snapshot()
	if snap.Error != LoadFailedMessage || snap.Loading {
		t.Fatalf("unexpected state error=%q loading=%t", snap.Error, snap.Loading)
	}
	if len(snap.Events["calendar.a"]) != 1 || snap.Events["calendar.a"][0].Summary != "kept" {
		t.Fatalf("expected previous store kept, got %+v", snap.Events)
	}

	if err := c.Refresh(context.Background(), time.Time{}); err == nil {
		t.Fatal("expected error for zero date")
	}
}

func TestRefreshDropsSupersededGeneration(t *testing.T) {
	slow := &stubFetcher{
		events: map[string][]model.CalendarEvent{"calendar.a": {{Summary: "stale"}}},
		block:  make(chan struct{}),
	}
	c := NewController(slow, []string{"calendar.a"})

	done := make(chan error, 1)
	go func() {
		done <- c.Refresh(context.Background(), time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC))
	}()

	// Wait for the first refresh to reach the fetcher.
	for {
		slow.mu.Lock()
		n := len(slow.calls)
		slow.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	// Start a newer refresh with a fast fetcher.
	c.fetcher = &stubFetcher{events: map[string][]model.CalendarEvent{"calendar.a": {{Summary: "fresh"}}}}
	if err := c.Refresh(context.Background(), time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	close(slow.block)
	if err := <-done; err != nil {
		t.Fatalf("stale Refresh() error = %v", err)
	}

	snap := c.Snapshot()
	if got := snap.Events["calendar.a"][0].Summary; got != "fresh" {
		t.Fatalf("stale refresh overwrote newer data: %q", got)
	}
	if !snap.Day.Equal(time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected day %v", snap.Day)
	}
	if snap.Loading {
		t.Fatal("expected loading cleared by latest refresh")
	}
}

type onlySource struct {
	*stubFetcher
	id string
}

func (o onlySource) Handles(entityID string) bool { return entityID == o.id }

func TestRouterDispatch(t *testing.T) {
	feed := &stubFetcher{events: map[string][]model.CalendarEvent{"calendar.feed": {{Summary: "feed"}}}}
	host := &stubFetcher{events: map[string][]model.CalendarEvent{"calendar.host": {{Summary: "host"}}}}
	r := Router{Sources: []Source{onlySource{id: "calendar.feed", stubFetcher: feed}}, Fallback: host}

	got, err := r.FetchEvents(context.Background(), "calendar.feed", "s", "e")
	if err != nil || got[0].Summary != "feed" {
		t.Fatalf("unexpected routed result %+v %v", got, err)
	}
	got, err = r.FetchEvents(context.Background(), "calendar.host", "s", "e")
	if err != nil || got[0].Summary != "host" {
		t.Fatalf("unexpected fallback result %+v %v", got, err)
	}
	if _, err := (Router{}).FetchEvents(context.Background(), "calendar.x", "s", "e"); err == nil {
		t.Fatal("expected error without fallback")
	}
}
