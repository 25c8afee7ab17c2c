package render

import (
	"fmt"
	"time"

	"calcolumn/internal/config"
)

const headerDateLayout = "Mon, Jan 2, 2006"

// DateLabel names day relative to now: Today, Yesterday, Tomorrow, or the
// full date.
func DateLabel(day, now time.Time) string {
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	n := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch int(d.Sub(n).Hours() / 24) {
	case 0:
		return "Today"
	case -1:
		return "Yesterday"
	case 1:
		return "Tomorrow"
	default:
		return day.Format(headerDateLayout)
	}
}

// HourLabel formats an hour row label.
func HourLabel(hour int, format config.TimeFormat) string {
	if format == config.TimeFormat12h {
		suffix := "AM"
		if hour >= 12 {
			suffix = "PM"
		}
		h := hour % 12
		if h == 0 {
			h = 12
		}
		return fmt.Sprintf("%d:00 %s", h, suffix)
	}
	return fmt.Sprintf("%02d:00", hour)
}

// TimeLabel formats an event time of day.
func TimeLabel(t time.Time, format config.TimeFormat) string {
	if format == config.TimeFormat12h {
		return t.Format("3:04 PM")
	}
	return t.Format("15:04")
}

// DurationLabel renders d as "1h 30m", "2h" or "45m".
func DurationLabel(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Minute).Minutes())
	h, m := total/60, total%60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}

// DaysLabel renders a day count as "1 day" or "N days".
func DaysLabel(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
