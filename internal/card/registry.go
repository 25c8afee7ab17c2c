package card

import "calcolumn/internal/config"

// Info describes the card type to a dashboard catalog.
type Info struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Descriptor is the catalog entry of this card type.
var Descriptor = Info{
	Type:        "calendar-column-view-card",
	Name:        "Calendar Column View",
	Description: "Display multiple calendars in columns with hourly rows",
}

// Catalog receives card type announcements.
type Catalog interface {
	Register(Info)
}

// Announce registers the card type with cat. Callers do this once at start-up.
func Announce(cat Catalog) {
	cat.Register(Descriptor)
}

// StubConfig is the configuration offered when the card is first added.
func StubConfig() config.RawCard {
	return config.StubCard()
}
