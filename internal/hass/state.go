package hass

import (
	"slices"
	"strings"
)

// Attributes carries the entity attributes the dashboard reads.
type Attributes struct {
	FriendlyName string `json:"friendly_name,omitempty"`
	Color        string `json:"color,omitempty"`
}

// Entity is one record of /api/states.
type Entity struct {
	EntityID   string     `json:"entity_id"`
	State      string     `json:"state"`
	Attributes Attributes `json:"attributes"`
}

// State is a read-only snapshot of host entity state keyed by entity id.
// The zero value is an empty snapshot.
type State struct {
	entities map[string]Entity
}

// NewState builds a snapshot from entity records.
func NewState(entities ...Entity) State {
	m := make(map[string]Entity, len(entities))
	for _, e := range entities {
		if e.EntityID == "" {
			continue
		}
		m[e.EntityID] = e
	}
	return State{entities: m}
}

// Entity returns the entity with the given id.
func (s State) Entity(id string) (Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// FriendlyName returns the host-provided display name of an entity.
func (s State) FriendlyName(id string) (string, bool) {
	e, ok := s.Entity(id)
	if !ok || e.Attributes.FriendlyName == "" {
		return "", false
	}
	return e.Attributes.FriendlyName, true
}

// Color returns the host-provided colour attribute of an entity.
func (s State) Color(id string) (string, bool) {
	e, ok := s.Entity(id)
	if !ok || e.Attributes.Color == "" {
		return "", false
	}
	return e.Attributes.Color, true
}

// Calendars lists entity ids in the calendar domain, sorted.
func (s State) Calendars() []string {
	out := make([]string, 0)
	for id := range s.entities {
		if strings.HasPrefix(id, "calendar.") {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// Len reports how many entities the snapshot holds.
func (s State) Len() int {
	return len(s.entities)
}
