package resolve

import (
	"testing"

	"calcolumn/internal/config"
	"calcolumn/internal/hass"
)

func TestColorForPaletteOrder(t *testing.T) {
	card := config.Card{Calendars: []config.Calendar{
		{Entity: "calendar.a"}, {Entity: "calendar.b"}, {Entity: "calendar.c"},
	}}
	r := Resolver{Card: card}
	for i, cal := range card.Calendars {
		if got := r.ColorFor(cal.Entity, i); got != Palette[i] {
			t.Fatalf("ColorFor(%s) = %q, want %q", cal.Entity, got, Palette[i])
		}
	}
	if got := DefaultColor(9); got != Palette[1] {
		t.Fatalf("DefaultColor(9) = %q, want wrap to %q", got, Palette[1])
	}
}

func TestColorForPrecedence(t *testing.T) {
	card := config.Card{Calendars: []config.Calendar{
		{Entity: "calendar.override", Color: "#000001"},
		{Entity: "calendar.host"},
	}}
	host := hass.NewState(
		hass.Entity{EntityID: "calendar.override", Attributes: hass.Attributes{Color: "#ffffff"}},
		hass.Entity{EntityID: "calendar.host", Attributes: hass.Attributes{Color: "#000002"}},
	)
	r := Resolver{Card: card, Host: host}
	if got := r.ColorFor("calendar.override", 0); got != "#000001" {
		t.Fatalf("config override lost: %q", got)
	}
	if got := r.ColorFor("calendar.host", 1); got != "#000002" {
		t.Fatalf("host colour lost: %q", got)
	}
}

func TestNameForPrecedence(t *testing.T) {
	card := config.Card{Calendars: []config.Calendar{
		{Entity: "calendar.named", Name: "Mine"},
		{Entity: "calendar.friendly"},
		{Entity: "calendar.bare_id"},
	}}
	host := hass.NewState(
		hass.Entity{EntityID: "calendar.named", Attributes: hass.Attributes{FriendlyName: "Host Name"}},
		hass.Entity{EntityID: "calendar.friendly", Attributes: hass.Attributes{FriendlyName: "Friendly"}},
	)
	r := Resolver{Card: card, Host: host}
	cases := map[string]string{
		"calendar.named":    "Mine",
		"calendar.friendly": "Friendly",
		"calendar.bare_id":  "bare_id",
	}
	for id, want := range cases {
		if got := r.NameFor(id); got != want {
			t.Fatalf("NameFor(%s) = %q, want %q", id, got, want)
		}
	}
}
