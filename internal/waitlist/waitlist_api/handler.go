package waitlist_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-karaoke/internal/logger"
	"ms-karaoke/internal/models"
	"ms-karaoke/internal/utils"
	"ms-karaoke/internal/waitlist"
)

type Handler struct {
	WaitlistService *waitlist.Service
	Logger          *logger.Logger
}

func NewHandler(svc *waitlist.Service, log *logger.Logger) *Handler {
	return &Handler{WaitlistService: svc, Logger: log}
}

func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")

	var req models.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Enqueue: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	entry, err := h.WaitlistService.Enqueue(instanceID, req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Enqueue: %v", err))
		utils.WriteError(w, "Could not add singer to the queue", err)
		return
	}

	h.Logger.LogWaitlist("ENQUEUE", entry.ID, fmt.Sprintf("%s / %s", entry.SingerName, entry.SongTitle))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Added to the queue", entry))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")

	entries, err := h.WaitlistService.List(instanceID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("List: %v", err))
		utils.WriteError(w, "Could not load the queue", err)
		return
	}
	if entries == nil {
		entries = []models.WaitlistEntry{}
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Queue", entries))
}

func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")
	entryID := chi.URLParam(r, "entryID")

	var req models.ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Reorder: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	if err := h.WaitlistService.Reorder(instanceID, entryID, req.Direction); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Reorder: %v", err))
		utils.WriteError(w, "Could not reorder the queue", err)
		return
	}

	h.Logger.LogWaitlist("REORDER", entryID, req.Direction)
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Queue reordered", nil))
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")
	entryID := chi.URLParam(r, "entryID")

	if err := h.WaitlistService.Remove(instanceID, entryID); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Remove: %v", err))
		utils.WriteError(w, "Could not remove the entry", err)
		return
	}

	h.Logger.LogWaitlist("REMOVE", entryID, "entry removed")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")
	registrant := chi.URLParam(r, "registrant")

	removed, err := h.WaitlistService.Withdraw(instanceID, registrant)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Withdraw: %v", err))
		utils.WriteError(w, "Could not withdraw from the queue", err)
		return
	}

	h.Logger.LogWaitlist("WITHDRAW", registrant, fmt.Sprintf("%d entries removed", removed))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Withdrawn from the queue", map[string]int64{"removed": removed}))
}
