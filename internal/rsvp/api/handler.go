package api

import (
	"encoding/json"
	"net/http"

	"church-connect/internal/models"
	"church-connect/internal/rsvp"
	"church-connect/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	RSVPService *rsvp.Service
}

// ClaimEvent handles POST /api/v1/events/{eventID}/rsvps.
func (h *Handler) ClaimEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	var req models.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.MemberID == "" {
		http.Error(w, "member_id is required", http.StatusBadRequest)
		return
	}

	result, err := h.RSVPService.Claim(r.Context(), eventID, req.MemberID)
	if err != nil {
		utils.WriteError(w, "Could not claim event", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("claim recorded", result))
}

// CancelClaim handles DELETE /api/v1/events/{eventID}/rsvps/{memberID}.
func (h *Handler) CancelClaim(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	memberID := chi.URLParam(r, "memberID")

	result, err := h.RSVPService.Cancel(r.Context(), eventID, memberID)
	if err != nil {
		utils.WriteError(w, "Could not cancel claim", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("claim cancelled", result))
}
