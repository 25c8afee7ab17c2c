package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	DefaultStartHour  = 6
	DefaultEndHour    = 22
	DefaultTitle      = "Calendar View"
	DefaultHourHeight = 60.0
)

// TimeFormat selects 12h or 24h clock labels.
type TimeFormat string

const (
	TimeFormat12h TimeFormat = "12h"
	TimeFormat24h TimeFormat = "24h"
)

// EventLayout selects how timed events are placed in the grid.
type EventLayout string

const (
	// LayoutHour places each event in the row of its start hour.
	LayoutHour EventLayout = "hour"
	// LayoutBlock places events in one overlay spanning the visible range.
	LayoutBlock EventLayout = "block"
)

// ErrConfig matches every card configuration error via errors.Is.
var ErrConfig = errors.New("config error")

// ConfigError is a fatal card configuration problem.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "ConfigError: " + e.Reason }

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

var (
	ErrMissingEntities     = &ConfigError{Reason: "missing entities"}
	ErrInvalidEntityFormat = &ConfigError{Reason: "invalid entity format"}
	ErrHourOutOfRange      = &ConfigError{Reason: "hour out of range"}
	ErrInvalidHourOrder    = &ConfigError{Reason: "invalid hour order"}
)

// RawCard is the declarative card configuration as written by users or the
// editor. Entities holds either bare entity id strings or objects with
// "entity", "name", "color" and "ics_url" keys.
type RawCard struct {
	Entities         []any   `yaml:"entities" toml:"entities" json:"entities"`
	StartHour        *int    `yaml:"start_hour,omitempty" toml:"start_hour,omitempty" json:"start_hour,omitempty"`
	EndHour          *int    `yaml:"end_hour,omitempty" toml:"end_hour,omitempty" json:"end_hour,omitempty"`
	Title            string  `yaml:"title,omitempty" toml:"title,omitempty" json:"title,omitempty"`
	HourHeight       float64 `yaml:"hour_height,omitempty" toml:"hour_height,omitempty" json:"hour_height,omitempty"`
	TimeFormat       string  `yaml:"time_format,omitempty" toml:"time_format,omitempty" json:"time_format,omitempty"`
	ShowAllDayEvents *bool   `yaml:"show_all_day_events,omitempty" toml:"show_all_day_events,omitempty" json:"show_all_day_events,omitempty"`
	CompactMode      bool    `yaml:"compact_mode,omitempty" toml:"compact_mode,omitempty" json:"compact_mode,omitempty"`
	EventLayout      string  `yaml:"event_layout,omitempty" toml:"event_layout,omitempty" json:"event_layout,omitempty"`
}

// StubCard is the configuration offered for a freshly added card.
func StubCard() RawCard {
	start, end := DefaultStartHour, DefaultEndHour
	return RawCard{
		Entities:  []any{},
		StartHour: &start,
		EndHour:   &end,
		Title:     DefaultTitle,
	}
}

// Calendar is one configured calendar column.
type Calendar struct {
	Entity string
	Name   string
	Color  string
	// ICSURL, when set, sources this calendar from an ICS feed instead of the host API.
	ICSURL string
}

// Card is a validated card configuration. It is only ever replaced as a whole.
type Card struct {
	Calendars   []Calendar
	StartHour   int
	EndHour     int
	Title       string
	HourHeight  float64
	TimeFormat  TimeFormat
	ShowAllDay  bool
	Compact     bool
	EventLayout EventLayout
}

// NormalizeCard validates raw and fills defaults.
func NormalizeCard(raw RawCard) (Card, error) {
	if len(raw.Entities) == 0 {
		return Card{}, ErrMissingEntities
	}

	calendars := make([]Calendar, 0, len(raw.Entities))
	for i, entry := range raw.Entities {
		cal, err := normalizeEntity(entry)
		if err != nil {
			return Card{}, fmt.Errorf("entities[%d]: %w", i, err)
		}
		calendars = append(calendars, cal)
	}

	card := Card{
		Calendars:   calendars,
		StartHour:   DefaultStartHour,
		EndHour:     DefaultEndHour,
		Title:       raw.Title,
		HourHeight:  raw.HourHeight,
		TimeFormat:  TimeFormat24h,
		ShowAllDay:  true,
		Compact:     raw.CompactMode,
		EventLayout: LayoutHour,
	}
	if raw.StartHour != nil {
		card.StartHour = *raw.StartHour
	}
	if raw.EndHour != nil {
		card.EndHour = *raw.EndHour
	}
	if card.Title == "" {
		card.Title = DefaultTitle
	}
	if card.HourHeight <= 0 {
		card.HourHeight = DefaultHourHeight
	}
	if TimeFormat(raw.TimeFormat) == TimeFormat12h {
		card.TimeFormat = TimeFormat12h
	}
	if raw.ShowAllDayEvents != nil {
		card.ShowAllDay = *raw.ShowAllDayEvents
	}
	if EventLayout(raw.EventLayout) == LayoutBlock {
		card.EventLayout = LayoutBlock
	}

	if card.StartHour < 0 || card.StartHour > 23 {
		return Card{}, fmt.Errorf("%w: start_hour=%d", ErrHourOutOfRange, card.StartHour)
	}
	if card.EndHour < 0 || card.EndHour > 23 {
		return Card{}, fmt.Errorf("%w: end_hour=%d", ErrHourOutOfRange, card.EndHour)
	}
	if card.StartHour >= card.EndHour {
		return Card{}, fmt.Errorf("%w: start_hour=%d end_hour=%d", ErrInvalidHourOrder, card.StartHour, card.EndHour)
	}

	return card, nil
}

func normalizeEntity(entry any) (Calendar, error) {
	switch v := entry.(type) {
	case string:
		id := strings.TrimSpace(v)
		if id == "" {
			return Calendar{}, ErrInvalidEntityFormat
		}
		return Calendar{Entity: id}, nil
	case Calendar:
		if v.Entity == "" {
			return Calendar{}, ErrInvalidEntityFormat
		}
		return v, nil
	case map[string]string:
		m := make(map[string]any, len(v))
		for k, s := range v {
			m[k] = s
		}
		return normalizeEntity(m)
	case map[string]any:
		id, ok := v["entity"].(string)
		if !ok || strings.TrimSpace(id) == "" {
			return Calendar{}, ErrInvalidEntityFormat
		}
		cal := Calendar{Entity: strings.TrimSpace(id)}
		for key, dst := range map[string]*string{"name": &cal.Name, "color": &cal.Color, "ics_url": &cal.ICSURL} {
			val, present := v[key]
			if !present || val == nil {
				continue
			}
			s, ok := val.(string)
			if !ok {
				return Calendar{}, ErrInvalidEntityFormat
			}
			*dst = s
		}
		return cal, nil
	default:
		return Calendar{}, ErrInvalidEntityFormat
	}
}

// Raw converts c back to its declarative form. NormalizeCard(c.Raw()) == c.
func (c Card) Raw() RawCard {
	entities := make([]any, 0, len(c.Calendars))
	for _, cal := range c.Calendars {
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
	start, end, showAllDay := c.StartHour, c.EndHour, c.ShowAllDay
	return RawCard{
		Entities:         entities,
		StartHour:        &start,
		EndHour:          &end,
		Title:            c.Title,
		HourHeight:       c.HourHeight,
		TimeFormat:       string(c.TimeFormat),
		ShowAllDayEvents: &showAllDay,
		CompactMode:      c.Compact,
		EventLayout:      string(c.EventLayout),
	}
}

// Equal reports whether two cards are identical field by field.
func (c Card) Equal(o Card) bool {
	return c.StartHour == o.StartHour &&
		c.EndHour == o.EndHour &&
		c.Title == o.Title &&
		c.HourHeight == o.HourHeight &&
		c.TimeFormat == o.TimeFormat &&
		c.ShowAllDay == o.ShowAllDay &&
		c.Compact == o.Compact &&
		c.EventLayout == o.EventLayout &&
		slices.Equal(c.Calendars, o.Calendars)
}

// EntityIDs returns the calendar entity ids in column order.
func (c Card) EntityIDs() []string {
	ids := make([]string, len(c.Calendars))
	for i, cal := range c.Calendars {
		ids[i] = cal.Entity
	}
	return ids
}

// Calendar looks up the configured calendar for an entity id.
func (c Card) Calendar(entityID string) (Calendar, int, bool) {
	for i, cal := range c.Calendars {
		if cal.Entity == entityID {
			return cal, i, true
		}
	}
	return Calendar{}, -1, false
}

// VisibleHours returns the number of hour rows the grid renders.
func (c Card) VisibleHours() int {
	return c.EndHour - c.StartHour + 1
}
