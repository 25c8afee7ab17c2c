package main

import (
	"context"
	"fmt"
	"time"

	"calcolumn/internal/card"
	"calcolumn/internal/config"
	"calcolumn/internal/hass"
	"calcolumn/internal/ics"
	appLog "calcolumn/internal/log"
	"calcolumn/internal/store"
)

// runtime is the assembled application shared by serve and render.
type runtime struct {
	cfg  *config.Config
	loc  *time.Location
	hass *hass.Client
	pool *card.Pool
}

func newRuntime(flags *rootFlags) (*runtime, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("unknown timezone, using local time", err, "timezone", cfg.Timezone)
	}

	client := hass.NewClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token)
	pool := card.NewPool(newFetcher(cfg, client, loc), card.Options{Location: loc})
	if err := pool.SetConfig(context.Background(), cfg.Card); err != nil {
		// The dashboard shows the error until the editor supplies a valid card.
		appLog.Error("card configuration invalid", err)
	}

	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", loc.String(),
		"home_assistant", cfg.HomeAssistant.URL,
		"calendars", len(cfg.Card.Entities),
		"capture", cfg.Capture.Enabled,
	)
	return &runtime{cfg: cfg, loc: loc, hass: client, pool: pool}, nil
}

// newFetcher routes calendars with an ics_url to the feed provider and the
// rest to the host API. Feed URLs are read once at startup.
func newFetcher(cfg *config.Config, client *hass.Client, loc *time.Location) store.Fetcher {
	router := store.Router{Fallback: client}

	cardCfg, err := config.NormalizeCard(cfg.Card)
	if err != nil {
		return router
	}
	urls := map[string]string{}
	for _, cal := range cardCfg.Calendars {
		if cal.ICSURL != "" {
			urls[cal.Entity] = cal.ICSURL
		}
	}
	if len(urls) == 0 {
		return router
	}

	router.Sources = append(router.Sources, ics.NewProvider(ics.NewFeedClient(cfg.ICSCacheDir), urls, loc))
	appLog.Info("ics feeds configured", "count", len(urls))
	return router
}

// pollState reads host entity state and pushes it to every card. Failures
// keep the previous state.
func (rt *runtime) pollState(ctx context.Context) {
	state, err := rt.hass.FetchState(ctx)
	if err != nil {
		appLog.Error("host state poll failed", err)
		return
	}
	appLog.Debug("host state polled", "entities", state.Len())
	rt.pool.SetHass(ctx, state)
}

// parseDate reads a YYYY-MM-DD flag value in the display zone; empty means today.
func (rt *runtime) parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().In(rt.loc), nil
	}
	d, err := time.ParseInLocation("2006-01-02", raw, rt.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return d, nil
}
