package store

import (
	"context"
	"fmt"

	"calcolumn/internal/model"
)

// Source is a fetcher that serves only some calendars.
type Source interface {
	Fetcher
	Handles(entityID string) bool
}

// Router sends each calendar to the first source that handles it, otherwise
// to Fallback.
type Router struct {
	Sources  []Source
	Fallback Fetcher
}

// FetchEvents implements Fetcher.
func (r Router) FetchEvents(ctx context.Context, entityID, start, end string) ([]model.CalendarEvent, error) {
	for _, src := range r.Sources {
		if src != nil && src.Handles(entityID) {
			return src.FetchEvents(ctx, entityID, start, end)
		}
	}
	if r.Fallback == nil {
		return nil, fmt.Errorf("store: no fetcher for %s", entityID)
	}
	return r.Fallback.FetchEvents(ctx, entityID, start, end)
}
