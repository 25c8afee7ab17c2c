// Package store keeps the per-calendar event lists of the selected day and
// runs the fetch cycle that replaces them.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appLog "calcolumn/internal/log"
	"calcolumn/internal/model"
)

// WindowLayout is the offset-less local format the host API expects.
const WindowLayout = "2006-01-02T15:04:05"

// LoadFailedMessage is shown when a refresh cannot be orchestrated at all.
const LoadFailedMessage = "Failed to load events"

// Fetcher reads one calendar's events for a window given as local
// WindowLayout strings.
type Fetcher interface {
	FetchEvents(ctx context.Context, entityID, start, end string) ([]model.CalendarEvent, error)
}

// FetchError is a per-calendar failure. It is logged and recovered by an
// empty list for that calendar.
type FetchError struct {
	EntityID string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.EntityID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Window is one local day, 00:00:00.000 to 23:59:59.999.
type Window struct {
	Start time.Time
	End   time.Time
}

// DayWindow returns the day window containing date, in date's location.
func DayWindow(date time.Time) (Window, error) {
	if date.IsZero() {
		return Window{}, errors.New("store: selected date is zero")
	}
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	end := time.Date(date.Year(), date.Month(), date.Day(), 23, 59, 59, int(999*time.Millisecond), date.Location())
	return Window{Start: start, End: end}, nil
}

// Bounds formats the window for the host API.
func (w Window) Bounds() (string, string) {
	return w.Start.Format(WindowLayout), w.End.Format(WindowLayout)
}

// Snapshot is an immutable copy of the controller state.
type Snapshot struct {
	Events  map[string][]model.CalendarEvent
	Loading bool
	Error   string
	// Day is the window start of the last applied refresh.
	Day time.Time
}

// Controller owns the event store and its fetch cycle.
type Controller struct {
	fetcher Fetcher

	mu         sync.Mutex
	calendars  []string
	events     map[string][]model.CalendarEvent
	loading    bool
	errMsg     string
	day        time.Time
	generation uint64
	onChange   func()
}

// NewController creates a controller fetching calendars (entity ids, in
// column order) through f.
func NewController(f Fetcher, calendars []string) *Controller {
	return &Controller{
		fetcher:   f,
		calendars: append([]string(nil), calendars...),
		events:    map[string][]model.CalendarEvent{},
	}
}

// OnChange registers a callback invoked after every state transition, outside
// the controller lock.
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// SetCalendars replaces the calendar list used by later refreshes.
func (c *Controller) SetCalendars(calendars []string) {
	c.mu.Lock()
	c.calendars = append([]string(nil), calendars...)
	c.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := make(map[string][]model.CalendarEvent, len(c.events))
	for id, list := range c.events {
		events[id] = append([]model.CalendarEvent(nil), list...)
	}
	return Snapshot{Events: events, Loading: c.loading, Error: c.errMsg, Day: c.day}
}

// Refresh replaces the store with the events of date's day. Calendars are
// fetched one after another. Per-calendar failures become empty lists; only
// orchestration failures are returned and surfaced as the global error.
//
// Each call takes a new generation; when a newer refresh has started by the
// time this one completes, its results are dropped.
func (c *Controller) Refresh(ctx context.Context, date time.Time) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	calendars := append([]string(nil), c.calendars...)
	c.loading = true
	c.errMsg = ""
	c.mu.Unlock()
	c.notify()

	events, day, err := c.fetchDay(ctx, date, calendars)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		appLog.Debug("store: dropping superseded refresh", "generation", gen)
		return nil
	}
	c.loading = false
	if err != nil {
		c.errMsg = LoadFailedMessage
	} else {
		c.events = events
		c.day = day
	}
	c.mu.Unlock()
	c.notify()

	if err != nil {
		appLog.Error("store: refresh failed", err, "date", date.Format("2006-01-02"))
	}
	return err
}

func (c *Controller) fetchDay(ctx context.Context, date time.Time, calendars []string) (map[string][]model.CalendarEvent, time.Time, error) {
	window, err := DayWindow(date)
	if err != nil {
		return nil, time.Time{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("store: refresh cancelled: %w", err)
	}
	if c.fetcher == nil {
		return nil, time.Time{}, errors.New("store: no fetcher configured")
	}
	start, end := window.Bounds()

	events := make(map[string][]model.CalendarEvent, len(calendars))
	for _, id := range calendars {
		list, err := c.fetcher.FetchEvents(ctx, id, start, end)
		if err != nil {
			appLog.Error("store: calendar fetch failed", &FetchError{EntityID: id, Err: err}, "entity", id)
			events[id] = []model.CalendarEvent{}
			continue
		}
		if list == nil {
			list = []model.CalendarEvent{}
		}
		appLog.Debug("store: calendar fetched", "entity", id, "count", len(list))
		events[id] = list
	}
	return events, window.Start, nil
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
