// Package resolve picks the display colour and label of each configured
// calendar from config overrides, host state, and a fixed palette.
package resolve

import (
	"strings"

	"calcolumn/internal/config"
	"calcolumn/internal/hass"
)

// Palette is the fallback colour sequence, indexed by calendar position mod 8.
var Palette = [8]string{
	"#4285f4", // blue
	"#ea4335", // red
	"#fbbc04", // yellow
	"#34a853", // green
	"#9c27b0", // purple
	"#ff6d00", // orange
	"#00bcd4", // cyan
	"#e91e63", // pink
}

// Resolver is deterministic for a given (card, host state) snapshot.
type Resolver struct {
	Card config.Card
	Host hass.State
}

// DefaultColor returns the palette colour for a column index.
func DefaultColor(index int) string {
	if index < 0 {
		index = -index
	}
	return Palette[index%len(Palette)]
}

// ColorFor returns the colour of entityID, which sits at column index.
func (r Resolver) ColorFor(entityID string, index int) string {
	if cal, _, ok := r.Card.Calendar(entityID); ok && cal.Color != "" {
		return cal.Color
	}
	if c, ok := r.Host.Color(entityID); ok {
		return c
	}
	return DefaultColor(index)
}

// NameFor returns the column label of entityID.
func (r Resolver) NameFor(entityID string) string {
	if cal, _, ok := r.Card.Calendar(entityID); ok && cal.Name != "" {
		return cal.Name
	}
	if name, ok := r.Host.FriendlyName(entityID); ok {
		return name
	}
	return StripDomain(entityID)
}

// StripDomain removes the "calendar." prefix from an entity id.
func StripDomain(entityID string) string {
	return strings.TrimPrefix(entityID, "calendar.")
}
