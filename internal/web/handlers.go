package web

import (
	"errors"
	"net/http"
	"time"

	"calcolumn/internal/card"
	"calcolumn/internal/config"
	"calcolumn/internal/layout"
	appLog "calcolumn/internal/log"
	"calcolumn/internal/model"
	"calcolumn/internal/resolve"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	c, err := s.session(w, r)
	if err != nil {
		s.writeConfigError(w, err)
		return
	}
	writeHTML(w, http.StatusOK, c.HTML())
}

// handleNav moves the session's selected day: /nav/prev, /nav/next, /nav/today.
func (s *Server) handleNav(w http.ResponseWriter, r *http.Request) {
	c, err := s.session(w, r)
	if err != nil {
		s.writeConfigError(w, err)
		return
	}

	ctx := r.Context()
	switch r.PathValue("dir") {
	case "prev":
		err = c.PreviousDay(ctx)
	case "next":
		err = c.NextDay(ctx)
	case "today":
		err = c.Today(ctx)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		// The card already shows the error panel.
		appLog.Error("navigation refresh failed", err, "dir", r.PathValue("dir"))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleOpenEvent opens the detail modal for /event?entity=..&key=..
// Unknown handles are ignored.
func (s *Server) handleOpenEvent(w http.ResponseWriter, r *http.Request) {
	c, err := s.session(w, r)
	if err != nil {
		s.writeConfigError(w, err)
		return
	}
	q := r.URL.Query()
	h := card.Handle{Entity: q.Get("entity"), Key: q.Get("key")}
	if err := c.Open(h); err != nil && !errors.Is(err, card.ErrUnknownEvent) {
		appLog.Error("open event failed", err, "entity", h.Entity)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleCloseEvent(w http.ResponseWriter, r *http.Request) {
	c, err := s.session(w, r)
	if err != nil {
		s.writeConfigError(w, err)
		return
	}
	c.Close()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleSnapshot renders a static page for /snapshot?date=YYYY-MM-DD (default
// today). It is the capture target.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	date, ok := s.parseDate(w, r)
	if !ok {
		return
	}
	c, err := s.pool.Detached(r.Context(), date)
	if err != nil && isConfigError(err) {
		s.writeConfigError(w, err)
		return
	}
	if err != nil {
		appLog.Error("snapshot refresh failed", err, "date", date.Format("2006-01-02"))
	}
	writeHTML(w, http.StatusOK, c.StaticHTML())
}

// handlePreview serves the last captured PNG from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	// http.ServeFile answers 404 for a missing file.
	http.ServeFile(w, r, s.config().Capture.Output)
}

func (s *Server) parseDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Now().In(s.loc), true
	}
	d, err := time.ParseInLocation("2006-01-02", raw, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Date            string        `json:"date"`
	DisplayTimeZone string        `json:"display_timezone"`
	Error           string        `json:"error,omitempty"`
	Calendars       []calendarDTO `json:"calendars"`
}

type calendarDTO struct {
	Entity string     `json:"entity"`
	Name   string     `json:"name"`
	Color  string     `json:"color"`
	Events []eventDTO `json:"events"`
}

// eventDTO is a JSON-friendly view of one event with its open handle.
type eventDTO struct {
	model.CalendarEvent
	Key    string `json:"key"`
	AllDay bool   `json:"all_day"`
}

// handleEvents returns the events of every configured calendar for one day.
//
// GET /api/events?date=2025-03-04
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	date, ok := s.parseDate(w, r)
	if !ok {
		return
	}
	c, err := s.pool.Detached(r.Context(), date)
	if err != nil && isConfigError(err) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	v := c.View()
	res := resolve.Resolver{Card: v.Card, Host: v.Host}
	resp := eventsResponse{
		Date:            date.Format("2006-01-02"),
		DisplayTimeZone: s.loc.String(),
		Error:           v.Store.Error,
		Calendars:       make([]calendarDTO, 0, len(v.Card.Calendars)),
	}
	for i, cal := range v.Card.Calendars {
		dto := calendarDTO{
			Entity: cal.Entity,
			Name:   res.NameFor(cal.Entity),
			Color:  res.ColorFor(cal.Entity, i),
			Events: []eventDTO{},
		}
		allDay, timed := layout.Split(v.Store.Events[cal.Entity], s.loc)
		for _, it := range append(allDay, timed...) {
			dto.Events = append(dto.Events, eventDTO{CalendarEvent: it.Event, Key: it.Key(), AllDay: it.Span.AllDay})
		}
		resp.Calendars = append(resp.Calendars, dto)
	}

	appLog.Debug("api events request", "date", resp.Date, "calendars", len(resp.Calendars))
	writeJSON(w, http.StatusOK, resp)
}

type cardResponse struct {
	Info   card.Info      `json:"info"`
	Size   int            `json:"size"`
	Valid  bool           `json:"valid"`
	Error  string         `json:"error,omitempty"`
	Config config.RawCard `json:"config"`
	Stub   config.RawCard `json:"stub"`
}

func (s *Server) handleCard(w http.ResponseWriter, _ *http.Request) {
	_, cfgErr := s.pool.Config()
	resp := cardResponse{
		Info:   card.Descriptor,
		Size:   card.Size,
		Valid:  cfgErr == nil,
		Config: s.rawCard(),
		Stub:   card.StubConfig(),
	}
	if cfgErr != nil {
		resp.Error = cfgErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCards(w http.ResponseWriter, _ *http.Request) {
	s.catalogMu.RLock()
	list := append([]card.Info{}, s.catalog...)
	s.catalogMu.RUnlock()
	writeJSON(w, http.StatusOK, list)
}
