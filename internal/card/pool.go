package card

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"calcolumn/internal/config"
	"calcolumn/internal/hass"
	appLog "calcolumn/internal/log"
	"calcolumn/internal/store"
)

// ErrNotConfigured is returned while no valid card configuration is active.
var ErrNotConfigured = errors.New("card: no valid configuration")

// SessionIdleTimeout is how long an unused session is kept.
const SessionIdleTimeout = 24 * time.Hour

type session struct {
	card     *Card
	lastUsed time.Time
}

// Pool keeps one Card per browser session and fans out host state and
// configuration changes to all of them.
type Pool struct {
	fetcher store.Fetcher
	opts    Options

	mu       sync.Mutex
	cfg      config.Card
	cfgErr   error
	host     hass.State
	hostSeen bool
	sessions map[string]*session
}

// NewPool creates an empty pool. Until SetConfig succeeds, Get returns
// ErrNotConfigured.
func NewPool(f store.Fetcher, opts Options) *Pool {
	return &Pool{
		fetcher:  f,
		opts:     opts,
		cfgErr:   ErrNotConfigured,
		sessions: map[string]*session{},
	}
}

// Get returns the card of session id, creating a new session (with a fresh
// id) when id is unknown. The returned id is the one to keep using.
func (p *Pool) Get(ctx context.Context, id string) (*Card, string, error) {
	p.mu.Lock()
	if p.cfgErr != nil {
		err := p.cfgErr
		p.mu.Unlock()
		return nil, "", err
	}
	now := p.opts.now()
	p.evictLocked(now)
	if s, ok := p.sessions[id]; ok && id != "" {
		s.lastUsed = now
		p.mu.Unlock()
		return s.card, id, nil
	}

	id = uuid.NewString()
	c := New(p.cfg, p.fetcher, p.opts)
	p.sessions[id] = &session{card: c, lastUsed: now}
	host, hostSeen := p.host, p.hostSeen
	p.mu.Unlock()

	appLog.Info("card session created", "session", id)
	if hostSeen {
		if err := c.SetHass(ctx, host); err != nil {
			appLog.Error("initial refresh failed", err, "session", id)
		}
	}
	return c, id, nil
}

// Host returns the last host state pushed to the pool.
func (p *Pool) Host() hass.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.host
}

// Config returns the active card configuration and its validation error.
func (p *Pool) Config() (config.Card, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg, p.cfgErr
}

// SetConfig validates raw and applies it to every session. An invalid
// configuration is returned and the previous valid one stays active.
func (p *Pool) SetConfig(ctx context.Context, raw config.RawCard) error {
	cfg, err := config.NormalizeCard(raw)
	if err != nil {
		p.mu.Lock()
		if p.cfgErr != nil {
			p.cfgErr = err
		}
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	p.cfg = cfg
	p.cfgErr = nil
	cards := p.cardsLocked()
	p.mu.Unlock()

	for _, c := range cards {
		if err := c.SetConfig(ctx, cfg); err != nil {
			appLog.Error("apply config to session failed", err)
		}
	}
	return nil
}

// SetHass pushes a host state snapshot to every session.
func (p *Pool) SetHass(ctx context.Context, state hass.State) {
	p.mu.Lock()
	p.host = state
	p.hostSeen = true
	cards := p.cardsLocked()
	p.mu.Unlock()

	for _, c := range cards {
		if err := c.SetHass(ctx, state); err != nil {
			appLog.Error("host state push failed", err)
		}
	}
}

// Len reports the number of live sessions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

func (p *Pool) cardsLocked() []*Card {
	out := make([]*Card, 0, len(p.sessions))
	for _, s := range p.sessions {
		out = append(out, s.card)
	}
	return out
}

func (p *Pool) evictLocked(now time.Time) {
	for id, s := range p.sessions {
		if now.Sub(s.lastUsed) > SessionIdleTimeout {
			delete(p.sessions, id)
			appLog.Debug("card session evicted", "session", id)
		}
	}
}

// Detached builds a card outside the session table, refreshed for the day
// containing date. It serves stateless reads such as snapshots and the JSON
// API.
func (p *Pool) Detached(ctx context.Context, date time.Time) (*Card, error) {
	p.mu.Lock()
	if p.cfgErr != nil {
		err := p.cfgErr
		p.mu.Unlock()
		return nil, err
	}
	c := New(p.cfg, p.fetcher, p.opts)
	c.host = p.host
	c.hostSeen = true
	p.mu.Unlock()

	if err := c.GoTo(ctx, date); err != nil {
		return c, err
	}
	return c, nil
}
