// Package layout converts event timestamps into positions inside the
// visible hour grid: all-day vs timed classification, pixel offsets and
// heights, and side-by-side columns for overlapping events.
package layout

import (
	"errors"
	"fmt"
	"math"
	"time"

	"calcolumn/internal/model"
)

const (
	// AllDayThreshold folds long timed events into the all-day row.
	AllDayThreshold = 24 * time.Hour

	// MinHeightPx keeps zero-length events visible and clickable.
	MinHeightPx = 20.0

	// TinyHeightPx is the height below which only the title is drawn.
	TinyHeightPx = 25.0

	// ShortDuration is the duration below which time and title share one line.
	ShortDuration = 35 * time.Minute

	// ColumnGapPx separates side-by-side events.
	ColumnGapPx = 2
)

const (
	dateLayout      = "2006-01-02"
	localTimeLayout = "2006-01-02T15:04:05"
)

// Span is the parsed time range of one event in the display location.
type Span struct {
	Start time.Time
	End   time.Time
	// DateOnly is set when the start carried no time of day.
	DateOnly bool
	// AllDay is DateOnly or a timed range of at least AllDayThreshold.
	AllDay bool
}

// Duration returns End - Start.
func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// ParseTime parses one event boundary. DateTime values are RFC 3339 or
// offset-less local "2006-01-02T15:04:05"; Date values are "2006-01-02".
func ParseTime(t model.EventTime, loc *time.Location) (time.Time, bool, error) {
	if loc == nil {
		loc = time.Local
	}
	if t.IsDateOnly() {
		v, err := time.ParseInLocation(dateLayout, t.Date, loc)
		if err != nil {
			return time.Time{}, true, fmt.Errorf("layout: parse date %q: %w", t.Date, err)
		}
		return v, true, nil
	}
	if t.DateTime == "" {
		return time.Time{}, false, errors.New("layout: empty event time")
	}
	if v, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
		return v.In(loc), false, nil
	}
	v, err := time.ParseInLocation(localTimeLayout, t.DateTime, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("layout: parse dateTime %q: %w", t.DateTime, err)
	}
	return v, false, nil
}

// ParseSpan parses and classifies an event.
func ParseSpan(ev model.CalendarEvent, loc *time.Location) (Span, error) {
	start, dateOnly, err := ParseTime(ev.Start, loc)
	if err != nil {
		return Span{}, err
	}

	var end time.Time
	if ev.End.Value() == "" {
		if dateOnly {
			end = start.AddDate(0, 0, 1)
		} else {
			end = start
		}
	} else {
		end, _, err = ParseTime(ev.End, loc)
		if err != nil {
			return Span{}, err
		}
	}

	span := Span{Start: start, End: end, DateOnly: dateOnly}
	span.AllDay = dateOnly || span.Duration() >= AllDayThreshold
	return span, nil
}

// IsAllDay reports whether ev belongs in the all-day row. Events that cannot
// be parsed are neither all-day nor timed.
func IsAllDay(ev model.CalendarEvent, loc *time.Location) bool {
	span, err := ParseSpan(ev, loc)
	if err != nil {
		return false
	}
	return span.AllDay
}

// Hours lists the visible hour labels, both bounds included.
func Hours(startHour, endHour int) []int {
	if endHour < startHour {
		return nil
	}
	out := make([]int, 0, endHour-startHour+1)
	for h := startHour; h <= endHour; h++ {
		out = append(out, h)
	}
	return out
}

// HourCell returns the row index (0 = startHour) of an event starting at start.
func HourCell(start time.Time, startHour int) int {
	return start.Hour() - startHour
}

// Block is a position inside one hour row.
type Block struct {
	Top    float64
	Height float64
}

// Place positions an event inside the row of its start hour. Longer events
// overflow into the rows below.
func Place(start, end time.Time, hourHeight float64) Block {
	top := float64(start.Minute()) / 60 * hourHeight
	durationMin := end.Sub(start).Minutes()
	return Block{
		Top:    top,
		Height: math.Max(durationMin/60*hourHeight, MinHeightPx),
	}
}

// ClampedBlock is a position relative to the whole visible range.
type ClampedBlock struct {
	Top              float64
	Height           float64
	StartsBeforeView bool
	EndsAfterView    bool
	// Visible is false when the event lies entirely outside the range.
	Visible bool
}

// Clamp positions [start,end) relative to startHour on day, clamped to the
// visible range [0, endHour-startHour] hours.
func Clamp(start, end, day time.Time, startHour, endHour int, hourHeight float64) ClampedBlock {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	rangeHours := float64(endHour - startHour)

	startPos := start.Sub(midnight).Hours() - float64(startHour)
	endPos := end.Sub(midnight).Hours() - float64(startHour)

	clampedStart := math.Max(0, startPos)
	clampedEnd := math.Min(rangeHours, endPos)

	return ClampedBlock{
		Top:              clampedStart * hourHeight,
		Height:           math.Max((clampedEnd-clampedStart)*hourHeight, MinHeightPx),
		StartsBeforeView: startPos < 0,
		EndsAfterView:    endPos > rangeHours,
		Visible:          endPos > 0 && startPos < rangeHours,
	}
}

// Density selects how much of an event block is drawn.
type Density int

const (
	// DensityFull draws time, title and (outside compact mode) location.
	DensityFull Density = iota
	// DensityInline draws time and title on one line.
	DensityInline
	// DensityTitleOnly draws only the title.
	DensityTitleOnly
)

func (d Density) String() string {
	switch d {
	case DensityInline:
		return "inline"
	case DensityTitleOnly:
		return "title-only"
	default:
		return "full"
	}
}

// DensityFor picks the layout tier from an event's duration and drawn height.
func DensityFor(duration time.Duration, heightPx float64) Density {
	switch {
	case duration < ShortDuration:
		return DensityInline
	case heightPx < TinyHeightPx:
		return DensityTitleOnly
	default:
		return DensityFull
	}
}
