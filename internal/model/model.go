package model

// EventTime is the start or end of a calendar event as delivered by the
// Home Assistant calendar API. Exactly one of Date (all-day, "2006-01-02")
// or DateTime (timed, RFC 3339) is expected to be set.
type EventTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
}

// IsDateOnly reports whether only the date part is populated.
func (t EventTime) IsDateOnly() bool {
	return t.Date != "" && t.DateTime == ""
}

// Value returns DateTime when present, otherwise Date.
func (t EventTime) Value() string {
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}

// CalendarEvent is one event record returned for a calendar entity.
type CalendarEvent struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`

	// UID and RecurrenceID are passed through from the host when present.
	UID          string `json:"uid,omitempty"`
	RecurrenceID string `json:"recurrence_id,omitempty"`
}

// Title returns the summary, or a placeholder for events without one.
func (e CalendarEvent) Title() string {
	if e.Summary == "" {
		return "Untitled Event"
	}
	return e.Summary
}
