// Package editor keeps the working copy of a card configuration while it is
// being edited and notifies the owner of changes. Field edits are applied
// locally at once; the outward notification is debounced.
package editor

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"calcolumn/internal/config"
	appLog "calcolumn/internal/log"
)

// DefaultDelay is the quiet period before a field edit is emitted.
const DefaultDelay = 300 * time.Millisecond

var (
	ErrUnknownField  = errors.New("editor: unknown field")
	ErrUnknownEntity = errors.New("editor: unknown entity")
	ErrInvalidColor  = errors.New("editor: colour must look like #RRGGBB")
)

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Form is the editor's working copy. Unlike config.Card it may be invalid,
// for example with an empty entity list.
type Form struct {
	Entities    []config.Calendar
	StartHour   int
	EndHour     int
	Title       string
	HourHeight  float64
	TimeFormat  string
	ShowAllDay  bool
	Compact     bool
	EventLayout string
}

// FormFrom fills editor defaults into raw. Entity entries that are neither a
// string nor an object with an entity id become empty rows.
func FormFrom(raw config.RawCard) Form {
	f := Form{
		Entities:    make([]config.Calendar, 0, len(raw.Entities)),
		StartHour:   config.DefaultStartHour,
		EndHour:     config.DefaultEndHour,
		Title:       raw.Title,
		HourHeight:  raw.HourHeight,
		TimeFormat:  raw.TimeFormat,
		ShowAllDay:  true,
		Compact:     raw.CompactMode,
		EventLayout: raw.EventLayout,
	}
	for _, entry := range raw.Entities {
		card, err := config.NormalizeCard(config.RawCard{Entities: []any{entry}})
		if err != nil || len(card.Calendars) != 1 {
			f.Entities = append(f.Entities, config.Calendar{})
			continue
		}
		f.Entities = append(f.Entities, card.Calendars[0])
	}
	if raw.StartHour != nil {
		f.StartHour = *raw.StartHour
	}
	if raw.EndHour != nil {
		f.EndHour = *raw.EndHour
	}
	if f.Title == "" {
		f.Title = config.DefaultTitle
	}
	if f.HourHeight == 0 {
		f.HourHeight = config.DefaultHourHeight
	}
	if f.TimeFormat == "" {
		f.TimeFormat = string(config.TimeFormat24h)
	}
	if raw.ShowAllDayEvents != nil {
		f.ShowAllDay = *raw.ShowAllDayEvents
	}
	if f.EventLayout == "" {
		f.EventLayout = string(config.LayoutHour)
	}
	return f
}

// Raw converts the form to the declarative configuration that is emitted.
func (f Form) Raw() config.RawCard {
	entities := make([]any, 0, len(f.Entities))
	for _, cal := range f.Entities {
		m := map[string]any{"entity": cal.Entity}
		if cal.Name != "" {
			m["name"] = cal.Name
		}
		if cal.Color != "" {
			m["color"] = cal.Color
		}
		if cal.ICSURL != "" {
			m["ics_url"] = cal.ICSURL
		}
		entities = append(entities, m)
	}
	start, end, showAllDay := f.StartHour, f.EndHour, f.ShowAllDay
	return config.RawCard{
		Entities:         entities,
		StartHour:        &start,
		EndHour:          &end,
		Title:            f.Title,
		HourHeight:       f.HourHeight,
		TimeFormat:       f.TimeFormat,
		ShowAllDayEvents: &showAllDay,
		CompactMode:      f.Compact,
		EventLayout:      f.EventLayout,
	}
}

// Equal compares two forms field by field.
func (f Form) Equal(o Form) bool {
	return f.StartHour == o.StartHour &&
		f.EndHour == o.EndHour &&
		f.Title == o.Title &&
		f.HourHeight == o.HourHeight &&
		f.TimeFormat == o.TimeFormat &&
		f.ShowAllDay == o.ShowAllDay &&
		f.Compact == o.Compact &&
		f.EventLayout == o.EventLayout &&
		slices.Equal(f.Entities, o.Entities)
}

func (f Form) clone() Form {
	f.Entities = slices.Clone(f.Entities)
	return f
}

// Editor edits one card configuration. It is safe for concurrent use.
type Editor struct {
	emit     func(config.RawCard)
	debounce *Debouncer

	mu     sync.Mutex
	form   Form
	loaded bool
	// edits counts local changes; emitted is the highest count handed to emit.
	edits   uint64
	emitted uint64
}

// New creates an editor that hands every emitted configuration to emit.
func New(emit func(config.RawCard), delay time.Duration) *Editor {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Editor{emit: emit, debounce: NewDebouncer(delay)}
}

// Load replaces the working copy with raw. It reports false and leaves the
// editor untouched when raw equals the current copy or while local edits
// have not been emitted yet.
func (e *Editor) Load(raw config.RawCard) bool {
	next := FormFrom(raw)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded && (e.form.Equal(next) || e.edits != e.emitted) {
		return false
	}
	e.form = next
	e.loaded = true
	return true
}

// Form returns a copy of the working configuration.
func (e *Editor) Form() Form {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.form.clone()
}

// SetField updates one top-level field from its text form and schedules an
// emit.
func (e *Editor) SetField(name, value string) error {
	value = strings.TrimSpace(value)
	e.mu.Lock()
	if err := setField(&e.form, name, value); err != nil {
		e.mu.Unlock()
		return err
	}
	e.edits++
	e.mu.Unlock()

	e.schedule()
	return nil
}

func setField(f *Form, name, value string) error {
	switch name {
	case "title":
		f.Title = value
	case "start_hour", "end_hour":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("editor: %s: %w", name, err)
		}
		if name == "start_hour" {
			f.StartHour = n
		} else {
			f.EndHour = n
		}
	case "hour_height":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("editor: %s: %w", name, err)
		}
		f.HourHeight = v
	case "time_format":
		f.TimeFormat = value
	case "event_layout":
		f.EventLayout = value
	case "show_all_day_events", "compact_mode":
		b, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("editor: %s: %w", name, err)
		}
		if name == "compact_mode" {
			f.Compact = b
		} else {
			f.ShowAllDay = b
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return nil
}

// SetEntityField updates the name, colour or feed URL of one entity and
// schedules an emit. An empty value clears the override. Colours must be
// #RRGGBB.
func (e *Editor) SetEntityField(entity, field, value string) error {
	value = strings.TrimSpace(value)
	if field == "color" && value != "" && !hexColor.MatchString(value) {
		return ErrInvalidColor
	}

	e.mu.Lock()
	idx := e.indexLocked(entity)
	if idx < 0 {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	cal := e.form.Entities[idx]
	switch field {
	case "name":
		cal.Name = value
	case "color":
		cal.Color = value
	case "ics_url":
		cal.ICSURL = value
	default:
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	e.form.Entities = slices.Clone(e.form.Entities)
	e.form.Entities[idx] = cal
	e.edits++
	e.mu.Unlock()

	e.schedule()
	return nil
}

// AddEntity appends a calendar and emits immediately. Empty and duplicate ids
// are ignored.
func (e *Editor) AddEntity(entity string) bool {
	entity = strings.TrimSpace(entity)
	if entity == "" {
		return false
	}
	e.mu.Lock()
	if e.indexLocked(entity) >= 0 {
		e.mu.Unlock()
		return false
	}
	e.form.Entities = append(slices.Clone(e.form.Entities), config.Calendar{Entity: entity})
	e.edits++
	e.mu.Unlock()

	e.emitNow()
	return true
}

// RemoveEntity drops a calendar and emits immediately.
func (e *Editor) RemoveEntity(entity string) bool {
	e.mu.Lock()
	idx := e.indexLocked(entity)
	if idx < 0 {
		e.mu.Unlock()
		return false
	}
	e.form.Entities = slices.Delete(slices.Clone(e.form.Entities), idx, idx+1)
	e.edits++
	e.mu.Unlock()

	e.emitNow()
	return true
}

// Close cancels a pending emit. The discarded edits no longer block Load.
func (e *Editor) Close() {
	if e.debounce.Stop() {
		appLog.Debug("editor: pending change discarded")
	}
	e.mu.Lock()
	e.emitted = e.edits
	e.mu.Unlock()
}

// Pending reports whether local edits are waiting to be emitted.
func (e *Editor) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.edits != e.emitted
}

func (e *Editor) indexLocked(entity string) int {
	return slices.IndexFunc(e.form.Entities, func(c config.Calendar) bool { return c.Entity == entity })
}

func (e *Editor) schedule() {
	e.debounce.Trigger(e.emitCurrent)
}

func (e *Editor) emitNow() {
	e.debounce.Stop()
	e.emitCurrent()
}

// emitCurrent hands the working copy to emit. Edits are marked emitted only
// after emit returns, so a Load racing with the owner's update cannot revert
// them.
func (e *Editor) emitCurrent() {
	e.mu.Lock()
	raw, seq := e.form.Raw(), e.edits
	e.mu.Unlock()
	if e.emit != nil {
		e.emit(raw)
	}
	e.mu.Lock()
	if seq > e.emitted {
		e.emitted = seq
	}
	e.mu.Unlock()
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on":
		return true, nil
	case "off", "":
		return false, nil
	}
	return strconv.ParseBool(s)
}
