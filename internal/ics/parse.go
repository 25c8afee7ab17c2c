package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "calcolumn/internal/log"
)

// vevent is one VEVENT reduced to what the dashboard needs. Recurrences are
// kept as raw rules and expanded per day window.
type vevent struct {
	UID         string
	Summary     string
	Description string
	Location    string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule        string
	ExDates      []time.Time
	RecurrenceID *time.Time
}

// parseFeed parses an ICS body. Floating times and all-day dates are read in
// loc. Broken VEVENTs are logged and skipped.
func parseFeed(body []byte, loc *time.Location) ([]vevent, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	out := make([]vevent, 0)
	for _, ve := range cal.Events() {
		ev, err := parseVEvent(ve, loc)
		if err != nil {
			appLog.Error("ics vevent skipped", err)
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (vevent, error) {
	var ev vevent

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return ev, errors.New("missing UID")
	}
	ev.UID = uid.Value
	ev.Summary = propValue(ve, ical.ComponentPropertySummary)
	ev.Description = propValue(ve, ical.ComponentPropertyDescription)
	ev.Location = propValue(ve, ical.ComponentPropertyLocation)

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return ev, errors.New("missing DTSTART")
	}
	ev.AllDay = isDateValue(dtStart)

	if ev.AllDay {
		start, err := parseValue(dtStart.Value, "", loc)
		if err != nil {
			return ev, err
		}
		ev.Start = start
		ev.End = start.AddDate(0, 0, 1)
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
			if end, err := parseValue(dtEnd.Value, "", loc); err == nil && end.After(start) {
				ev.End = end
			}
		}
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return ev, err
		}
		ev.Start = start
		end, err := ve.GetEndAt()
		if err != nil || end.Before(start) {
			end = start
		}
		ev.End = end
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		ev.RRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		tzid := paramValue(p, "TZID")
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseValue(part, tzid, loc); err == nil {
				ev.ExDates = append(ev.ExDates, t)
			}
		}
	}

	if rid := ve.GetProperty("RECURRENCE-ID"); rid != nil {
		if t, err := parseValue(rid.Value, paramValue(rid, "TZID"), loc); err == nil {
			ev.RecurrenceID = &t
		}
	}

	return ev, nil
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}

func paramValue(p *ical.IANAProperty, name string) string {
	if p == nil || p.ICalParameters == nil {
		return ""
	}
	if vs, ok := p.ICalParameters[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// isDateValue reports VALUE=DATE or a value without a time part.
func isDateValue(p *ical.IANAProperty) bool {
	if strings.EqualFold(paramValue(p, "VALUE"), "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// parseValue parses DATE / DATE-TIME / UTC DATE-TIME values. tzid, when
// loadable, wins over loc for floating values.
func parseValue(v, tzid string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}
