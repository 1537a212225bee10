package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tabcheck/tabcheck/internal/core"
)

func (s *Server) handleListRuleTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.service.RuleTypes())
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.service.ListTemplates(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if templates == nil {
		templates = []core.Template{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var t core.Template
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		s.respondBadRequest(w, r, "invalid template payload: "+err.Error())
		return
	}

	created, err := s.service.CreateTemplate(r.Context(), t)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r, "templateID")
	if !ok {
		return
	}
	t, err := s.service.GetTemplate(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r, "templateID")
	if !ok {
		return
	}

	var t core.Template
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		s.respondBadRequest(w, r, "invalid template payload: "+err.Error())
		return
	}
	t.ID = id

	updated, err := s.service.UpdateTemplate(r.Context(), t)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r, "templateID")
	if !ok {
		return
	}
	if err := s.service.DeleteTemplate(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSuggestTemplate ingests an uploaded file and returns a proposed
// template built from the detected column types. Nothing is persisted.
func (s *Server) handleSuggestTemplate(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}

	t, err := s.service.SuggestTemplate(name, header.Filename, file, r.FormValue("sheet"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// pathUUID parses a UUID path parameter, responding 400 on garbage.
func (s *Server) pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		s.respondBadRequest(w, r, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}
