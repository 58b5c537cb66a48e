package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/signage-core/internal/audit"
	"github.com/nerrad567/signage-core/internal/signage"
)

// updateViewRequest is the body of PATCH /views/{id}. Omitted fields keep
// their current value; display, screen type and position cannot change.
type updateViewRequest struct {
	Name    *string `json:"name,omitempty"`
	Columns *int    `json:"columns,omitempty"`
	Rows    *int    `json:"rows,omitempty"`
}

func (s *Server) handleListViews(w http.ResponseWriter, r *http.Request) {
	views, err := s.service.ListViews(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"views": views,
		"count": len(views),
	})
}

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	v, err := s.service.GetView(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleCreateView appends a view to its (display, screen type) group.
// The position is assigned by the service.
func (s *Server) handleCreateView(w http.ResponseWriter, r *http.Request) {
	var in signage.ViewInput
	if !s.decodeJSON(w, r, &in) {
		return
	}

	v, err := s.service.CreateView(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.auditLog(audit.ActionCreate, audit.EntityView, v.ID, "", map[string]any{
		"display_id":  v.DisplayID,
		"screen_type": v.ScreenType,
		"position":    v.Position,
	})
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleUpdateView(w http.ResponseWriter, r *http.Request) {
	var req updateViewRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	current, err := s.service.GetView(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	u := signage.ViewUpdate{Name: current.Name, Columns: current.Columns, Rows: current.Rows}
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Columns != nil {
		u.Columns = *req.Columns
	}
	if req.Rows != nil {
		u.Rows = *req.Rows
	}

	v, err := s.service.UpdateView(r.Context(), id, u)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.auditLog(audit.ActionUpdate, audit.EntityView, v.ID, "", nil)
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDeleteView(w http.ResponseWriter, r *http.Request) {
	v, err := s.service.DeleteView(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.auditLog(audit.ActionDelete, audit.EntityView, v.ID, "", map[string]any{"display_id": v.DisplayID})
	w.WriteHeader(http.StatusNoContent)
}
