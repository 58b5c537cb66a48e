package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/signage-core/internal/audit"
	"github.com/nerrad567/signage-core/internal/signage"
)

// createDisplayRequest is the body of POST /displays. Active defaults to true.
type createDisplayRequest struct {
	Name        string  `json:"name"`
	ClientID    string  `json:"client_id"`
	Active      *bool   `json:"active,omitempty"`
	Description *string `json:"description,omitempty"`
	Location    *string `json:"location,omitempty"`
}

func (s *Server) handleListDisplays(w http.ResponseWriter, r *http.Request) {
	displays, err := s.service.ListDisplays(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"displays": displays,
		"count":    len(displays),
	})
}

func (s *Server) handleGetDisplay(w http.ResponseWriter, r *http.Request) {
	d, err := s.service.GetDisplay(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleCreateDisplay(w http.ResponseWriter, r *http.Request) {
	var req createDisplayRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	d, err := s.service.CreateDisplay(r.Context(), &signage.Display{
		Name:        req.Name,
		ClientID:    req.ClientID,
		Active:      active,
		Description: req.Description,
		Location:    req.Location,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.auditLog(audit.ActionCreate, audit.EntityDisplay, d.ID, "", map[string]any{"name": d.Name, "client_id": d.ClientID})
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleUpdateDisplay(w http.ResponseWriter, r *http.Request) {
	var u signage.DisplayUpdate
	if !s.decodeJSON(w, r, &u) {
		return
	}

	d, err := s.service.UpdateDisplay(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.auditLog(audit.ActionUpdate, audit.EntityDisplay, d.ID, "", nil)
	writeJSON(w, http.StatusOK, d)
}

// handleDeleteDisplay removes the display together with its views, slots
// and options.
func (s *Server) handleDeleteDisplay(w http.ResponseWriter, r *http.Request) {
	d, err := s.service.DeleteDisplay(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.presence.Forget(d.ID)
	s.hub.DisconnectDisplay(d.ID)
	s.auditLog(audit.ActionDelete, audit.EntityDisplay, d.ID, "", map[string]any{"name": d.Name})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDisplayViews(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.service.GetDisplay(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	views, err := s.service.ListViewsForDisplay(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"views": views,
		"count": len(views),
	})
}

func (s *Server) handleDisplayPresence(w http.ResponseWriter, r *http.Request) {
	d, err := s.service.GetDisplay(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.presence.Status(d.ID))
}
