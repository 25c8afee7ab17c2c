package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"sync"
	"time"

	"calcolumn/internal/card"
	"calcolumn/internal/config"
	"calcolumn/internal/editor"
	appLog "calcolumn/internal/log"
	"calcolumn/internal/render"
)

// SessionCookie carries the browser session id.
const SessionCookie = "calcolumn_session"

//go:embed templates/*.html.tmpl
var templateFS embed.FS

var editorTemplate = template.Must(template.ParseFS(templateFS, "templates/editor.html.tmpl"))

// Options wires a Server to its collaborators.
type Options struct {
	Config *config.Config
	// ConfigPath, when set, receives every accepted editor change.
	ConfigPath string
	Pool       *card.Pool
	Location   *time.Location
	// EditorDelay overrides the editor's quiet period.
	EditorDelay time.Duration
}

// Server serves the dashboard, its JSON API and the configuration editor.
// It is also the card catalog.
type Server struct {
	cfgPath string
	pool    *card.Pool
	loc     *time.Location
	mux     *http.ServeMux
	editor  *editor.Editor

	cfgMu sync.RWMutex
	cfg   *config.Config

	catalogMu sync.RWMutex
	catalog   []card.Info
}

// NewServer constructs a new Server.
func NewServer(opts Options) *Server {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	s := &Server{
		cfg:     opts.Config,
		cfgPath: opts.ConfigPath,
		pool:    opts.Pool,
		loc:     loc,
		mux:     http.NewServeMux(),
	}
	s.editor = editor.New(s.applyEdit, opts.EditorDelay)
	s.registerRoutes()
	return s
}

// Register implements card.Catalog. Repeated registrations of a type are ignored.
func (s *Server) Register(info card.Info) {
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()
	for _, existing := range s.catalog {
		if existing.Type == info.Type {
			return
		}
	}
	s.catalog = append(s.catalog, info)
	appLog.Info("card type registered", "type", info.Type)
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.config().Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Close stops pending editor work.
func (s *Server) Close() {
	s.editor.Close()
}

// ApplyCard validates raw, applies it to every session and persists it.
func (s *Server) ApplyCard(ctx context.Context, raw config.RawCard) error {
	if err := s.pool.SetConfig(ctx, raw); err != nil {
		return err
	}

	s.cfgMu.Lock()
	s.cfg.Card = raw
	path := s.cfgPath
	var err error
	if path != "" {
		err = config.Save(path, s.cfg)
	}
	s.cfgMu.Unlock()

	if err != nil {
		return err
	}
	appLog.Info("card configuration applied", "calendars", len(raw.Entities), "persisted", path != "")
	return nil
}

func (s *Server) applyEdit(raw config.RawCard) {
	if err := s.ApplyCard(context.Background(), raw); err != nil {
		appLog.Error("editor change rejected", err)
	}
}

func (s *Server) config() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

func (s *Server) rawCard() config.RawCard {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.Card
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	cfg := s.config()
	if cfg == nil || cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	return cfg.BasicAuth.Username != "" && cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.config().BasicAuth.Username
	password := s.config().BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="calcolumn", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /nav/{dir}", s.handleNav)
	s.mux.HandleFunc("GET /event", s.handleOpenEvent)
	s.mux.HandleFunc("GET /event/close", s.handleCloseEvent)
	s.mux.HandleFunc("GET /snapshot", s.handleSnapshot)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)

	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/card", s.handleCard)
	s.mux.HandleFunc("GET /api/cards", s.handleCards)

	s.mux.HandleFunc("GET /editor", s.handleEditor)
	s.mux.HandleFunc("POST /api/editor/field", s.handleEditorField)
	s.mux.HandleFunc("POST /api/editor/entity", s.handleEditorEntity)
	s.mux.HandleFunc("POST /api/editor/entity/remove", s.handleEditorRemove)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// session resolves the caller's card, issuing a cookie for new sessions.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*card.Card, error) {
	var id string
	if ck, err := r.Cookie(SessionCookie); err == nil {
		id = ck.Value
	}
	c, newID, err := s.pool.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if newID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    newID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return c, nil
}

func writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeConfigError renders the error panel shown while no valid card
// configuration is active.
func (s *Server) writeConfigError(w http.ResponseWriter, err error) {
	page := render.Page{Title: config.DefaultTitle, Error: err.Error(), Ready: true, Static: true}
	writeHTML(w, http.StatusServiceUnavailable, render.RenderPage(page))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

func isConfigError(err error) bool {
	return errors.Is(err, card.ErrNotConfigured) || errors.Is(err, config.ErrConfig)
}
