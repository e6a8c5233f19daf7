package api

import (
	"encoding/json"
	"net/http"

	"church-connect/internal/events"
	"church-connect/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	EventService *events.Service
}

// CreateEvent handles POST /api/v1/events.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req events.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	event, err := h.EventService.Create(r.Context(), req)
	if err != nil {
		utils.WriteError(w, "Could not create event", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("event created", event))
}

// GetEvent handles GET /api/v1/events/{eventID}.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	event, err := h.EventService.Get(r.Context(), eventID)
	if err != nil {
		utils.WriteError(w, "Could not load event", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("event found", event))
}

// ListEvents handles GET /api/v1/events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.EventService.ListUpcoming(r.Context())
	if err != nil {
		utils.WriteError(w, "Could not list events", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("upcoming events", list))
}

// UpdateEvent handles PUT /api/v1/events/{eventID}.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	var req events.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	event, err := h.EventService.Update(r.Context(), eventID, req)
	if err != nil {
		utils.WriteError(w, "Could not update event", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("event updated", event))
}

// CancelEvent handles POST /api/v1/events/{eventID}/cancel.
func (h *Handler) CancelEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	var req struct {
		ActorID string `json:"actor_id"`
		Reason  string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.EventService.Cancel(r.Context(), eventID, req.ActorID, req.Reason)
	if err != nil {
		utils.WriteError(w, "Could not cancel event", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("event cancelled", result))
}

// DeleteEvent handles DELETE /api/v1/events/{eventID}.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	if err := h.EventService.Delete(r.Context(), eventID); err != nil {
		utils.WriteError(w, "Could not delete event", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
