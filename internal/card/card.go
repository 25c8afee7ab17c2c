// Package card holds the interactive state of one dashboard card: selected
// day, host state, event store and the detail modal. Every mutation produces
// a fresh render.View and, unless suppressed, a new rendered document.
package card

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"calcolumn/internal/config"
	"calcolumn/internal/hass"
	"calcolumn/internal/layout"
	appLog "calcolumn/internal/log"
	"calcolumn/internal/render"
	"calcolumn/internal/store"
)

// Size is the layout height hint reported to the dashboard.
const Size = 3

// ErrUnknownEvent is returned by Open when a handle does not resolve to an
// event of the current store.
var ErrUnknownEvent = errors.New("card: unknown event")

// Handle identifies one event occurrence: the calendar entity and the
// occurrence key produced by layout.Item.Key.
type Handle struct {
	Entity string
	Key    string
}

// Options configures time handling. Zero values mean time.Local and time.Now.
type Options struct {
	Location *time.Location
	Now      func() time.Time
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now().In(o.location())
	}
	return o.Now().In(o.location())
}

// Card is the state machine behind one card instance. It is safe for
// concurrent use.
type Card struct {
	opts  Options
	store *store.Controller

	mu       sync.Mutex
	cfg      config.Card
	host     hass.State
	hostSeen bool
	date     time.Time
	selected *render.Selection
	html     []byte
	renders  int
	// renderSeq stamps views as they are taken; shownSeq is the stamp of html.
	renderSeq uint64
	shownSeq  uint64
}

// New creates a card for cfg reading events through f. The selected day
// starts at today.
func New(cfg config.Card, f store.Fetcher, opts Options) *Card {
	c := &Card{
		opts:  opts,
		store: store.NewController(f, cfg.EntityIDs()),
		cfg:   cfg,
	}
	c.date = startOfDay(opts.now())
	c.store.OnChange(c.rerender)
	c.rerender()
	return c
}

// Config returns the active configuration.
func (c *Card) Config() config.Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// SetConfig replaces the configuration. The store is refreshed when the
// calendar set changed and host state has been seen.
func (c *Card) SetConfig(ctx context.Context, cfg config.Card) error {
	c.mu.Lock()
	changed := !slices.Equal(c.cfg.EntityIDs(), cfg.EntityIDs())
	c.cfg = cfg
	c.selected = nil
	hostSeen := c.hostSeen
	date := c.date
	c.mu.Unlock()

	c.store.SetCalendars(cfg.EntityIDs())
	if changed && hostSeen {
		return c.store.Refresh(ctx, date)
	}
	c.rerender()
	return nil
}

// SetHass stores a host state snapshot. The first snapshot triggers the
// initial fetch; later ones re-render unless the modal is open.
func (c *Card) SetHass(ctx context.Context, state hass.State) error {
	c.mu.Lock()
	c.host = state
	first := !c.hostSeen
	c.hostSeen = true
	date := c.date
	modalOpen := c.selected != nil
	c.mu.Unlock()

	if first {
		return c.store.Refresh(ctx, date)
	}
	if !modalOpen {
		c.rerender()
	}
	return nil
}

// PreviousDay moves the selection one day back and refreshes.
func (c *Card) PreviousDay(ctx context.Context) error {
	return c.moveTo(ctx, func(d time.Time) time.Time { return d.AddDate(0, 0, -1) })
}

// NextDay moves the selection one day forward and refreshes.
func (c *Card) NextDay(ctx context.Context) error {
	return c.moveTo(ctx, func(d time.Time) time.Time { return d.AddDate(0, 0, 1) })
}

// Today selects the current day and refreshes.
func (c *Card) Today(ctx context.Context) error {
	return c.moveTo(ctx, func(time.Time) time.Time { return startOfDay(c.opts.now()) })
}

// GoTo selects the day containing t and refreshes.
func (c *Card) GoTo(ctx context.Context, t time.Time) error {
	return c.moveTo(ctx, func(time.Time) time.Time { return startOfDay(t.In(c.opts.location())) })
}

func (c *Card) moveTo(ctx context.Context, next func(time.Time) time.Time) error {
	c.mu.Lock()
	c.date = next(c.date)
	date := c.date
	c.mu.Unlock()
	appLog.Debug("card: day selected", "date", date.Format("2006-01-02"))
	return c.store.Refresh(ctx, date)
}

// Open shows the modal for the event identified by h.
func (c *Card) Open(h Handle) error {
	snap := c.store.Snapshot()

	c.mu.Lock()
	if _, _, ok := c.cfg.Calendar(h.Entity); !ok {
		c.mu.Unlock()
		return ErrUnknownEvent
	}
	c.mu.Unlock()

	allDay, timed := layout.Split(snap.Events[h.Entity], c.opts.location())
	for _, items := range [][]layout.Item{allDay, timed} {
		for _, it := range items {
			if it.Key() != h.Key {
				continue
			}
			c.mu.Lock()
			c.selected = &render.Selection{Entity: h.Entity, Event: it.Event}
			c.mu.Unlock()
			c.rerender()
			return nil
		}
	}
	return ErrUnknownEvent
}

// Close hides the modal. It is a no-op when no modal is open.
func (c *Card) Close() {
	c.mu.Lock()
	wasOpen := c.selected != nil
	c.selected = nil
	c.mu.Unlock()
	if wasOpen {
		c.rerender()
	}
}

// Selected returns the event shown in the modal.
func (c *Card) Selected() (render.Selection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return render.Selection{}, false
	}
	return *c.selected, true
}

// Date returns the selected day at local midnight.
func (c *Card) Date() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.date
}

// View returns the current render input.
func (c *Card) View() render.View {
	snap := c.store.Snapshot()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked(snap)
}

func (c *Card) viewLocked(snap store.Snapshot) render.View {
	var sel *render.Selection
	if c.selected != nil {
		copied := *c.selected
		sel = &copied
	}
	return render.View{
		Card:     c.cfg,
		Store:    snap,
		UI:       render.UIState{Date: c.date, Selected: sel},
		Host:     c.host,
		Now:      c.opts.now(),
		Location: c.opts.location(),
	}
}

// HTML returns the most recently rendered document.
func (c *Card) HTML() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.html
}

// Renders reports how many documents have been rendered.
func (c *Card) Renders() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renders
}

// rerender renders outside the lock. Each render is stamped when its view
// is taken; a render that finishes after a newer one is dropped.
func (c *Card) rerender() {
	c.mu.Lock()
	v := c.viewLocked(c.store.Snapshot())
	c.renderSeq++
	seq := c.renderSeq
	c.mu.Unlock()

	html := render.Render(v)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.renders++
	if seq < c.shownSeq {
		return
	}
	c.shownSeq = seq
	c.html = html
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// StaticHTML renders the current state without navigation controls or
// auto refresh, for snapshots and captures.
func (c *Card) StaticHTML() []byte {
	v := c.View()
	v.UI.Static = true
	v.UI.Selected = nil
	return render.Render(v)
}
