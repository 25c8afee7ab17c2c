package web

import (
	"bytes"
	"errors"
	"net/http"
	"slices"

	"calcolumn/internal/config"
	"calcolumn/internal/editor"
	appLog "calcolumn/internal/log"
)

type editorPage struct {
	Form  editor.Form
	Valid bool
	Error string
	// Suggestions lists host calendars that are not configured yet.
	Suggestions []string
}

// handleEditor shows the configuration editor, loaded from the active
// configuration unless it is unchanged.
func (s *Server) handleEditor(w http.ResponseWriter, _ *http.Request) {
	s.editor.Load(s.rawCard())

	_, cfgErr := s.pool.Config()
	form := s.editor.Form()
	page := editorPage{Form: form, Valid: cfgErr == nil}
	if cfgErr != nil {
		page.Error = cfgErr.Error()
	}
	for _, id := range s.pool.Host().Calendars() {
		if !slices.ContainsFunc(form.Entities, func(c config.Calendar) bool { return c.Entity == id }) {
			page.Suggestions = append(page.Suggestions, id)
		}
	}

	var buf bytes.Buffer
	if err := editorTemplate.Execute(&buf, page); err != nil {
		appLog.Error("render editor failed", err)
		http.Error(w, "editor unavailable", http.StatusInternalServerError)
		return
	}
	writeHTML(w, http.StatusOK, buf.Bytes())
}

// handleEditorField updates a top-level field: name=..&value=..
func (s *Server) handleEditorField(w http.ResponseWriter, r *http.Request) {
	s.editor.Load(s.rawCard())
	if err := s.editor.SetField(r.FormValue("name"), r.FormValue("value")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.editorDone(w, r)
}

// handleEditorEntity adds a calendar (entity=..) or updates one of its
// fields (entity=..&field=..&value=..).
func (s *Server) handleEditorEntity(w http.ResponseWriter, r *http.Request) {
	s.editor.Load(s.rawCard())
	entity := r.FormValue("entity")
	field := r.FormValue("field")
	if field == "" {
		if !s.editor.AddEntity(entity) {
			writeError(w, http.StatusBadRequest, "entity is empty or already configured")
			return
		}
		s.editorDone(w, r)
		return
	}

	if err := s.editor.SetEntityField(entity, field, r.FormValue("value")); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, editor.ErrUnknownEntity) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	s.editorDone(w, r)
}

// handleEditorRemove drops a calendar: entity=..
func (s *Server) handleEditorRemove(w http.ResponseWriter, r *http.Request) {
	s.editor.Load(s.rawCard())
	if !s.editor.RemoveEntity(r.FormValue("entity")) {
		writeError(w, http.StatusNotFound, "entity not configured")
		return
	}
	s.editorDone(w, r)
}

// editorDone answers plain form posts with a redirect back to the editor and
// script calls with the working copy.
func (s *Server) editorDone(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("redirect") != "" {
		http.Redirect(w, r, "/editor", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, s.editor.Form().Raw())
}
