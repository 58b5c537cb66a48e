package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/signage-core/internal/audit"
	"github.com/nerrad567/signage-core/internal/signage"
)

// reconcileSlotsResponse is returned by PUT /views/{id}/slots.
type reconcileSlotsResponse struct {
	Slots []signage.SlotWithOptions `json:"slots"`
	Stats signage.ReconcileStats    `json:"stats"`
}

func (s *Server) handleGetViewSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := s.service.GetContentSlotsForView(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"slots": slots,
		"count": len(slots),
	})
}

// handleReconcileViewSlots makes the view's slots match the submitted
// list. Entries without an id are created, entries with an id are updated,
// and slots missing from the list are removed with their options.
//
// Request body: a JSON array of slot descriptors.
func (s *Server) handleReconcileViewSlots(w http.ResponseWriter, r *http.Request) {
	var desired []signage.SlotDescriptor
	if !s.decodeJSON(w, r, &desired) {
		return
	}

	viewID := chi.URLParam(r, "id")
	slots, stats, err := s.service.UpdateContentSlotsForView(r.Context(), viewID, desired)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	details := make(map[string]any, 6)
	for k, v := range stats.Counts() {
		details[k] = v
	}
	s.auditLog(audit.ActionReconcile, audit.EntityView, viewID, "", details)

	writeJSON(w, http.StatusOK, reconcileSlotsResponse{Slots: slots, Stats: stats})
}

func (s *Server) handleGetSlotOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := s.service.GetOptionsForContentSlot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// handleReconcileSlotOptions replaces a slot's option set with the
// submitted JSON object. Keys absent from the object are deleted.
func (s *Server) handleReconcileSlotOptions(w http.ResponseWriter, r *http.Request) {
	var desired signage.OrderedOptions
	if !s.decodeJSON(w, r, &desired) {
		return
	}

	slotID := chi.URLParam(r, "id")
	opts, err := s.service.SetOptionsForContentSlot(r.Context(), slotID, desired)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.auditLog(audit.ActionReconcile, audit.EntitySlot, slotID, "", map[string]any{"keys": len(opts)})
	writeJSON(w, http.StatusOK, opts)
}
