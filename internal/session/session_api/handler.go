package session_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-karaoke/internal/logger"
	"ms-karaoke/internal/models"
	"ms-karaoke/internal/session"
	"ms-karaoke/internal/utils"
	"ms-karaoke/internal/waitlist"
)

type Handler struct {
	SessionService  *session.Service
	WaitlistService *waitlist.Service
	Logger          *logger.Logger
}

func NewHandler(sessionSvc *session.Service, waitlistSvc *waitlist.Service, log *logger.Logger) *Handler {
	return &Handler{
		SessionService:  sessionSvc,
		WaitlistService: waitlistSvc,
		Logger:          log,
	}
}

// Promote moves the head of the waitlist onto the stage. The entry stays
// in the queue as waiting until the performance is closed.
func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")

	head, err := h.WaitlistService.PromoteNext(instanceID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Promote: %v", err))
		utils.WriteError(w, "Nobody is waiting to sing", err)
		return
	}

	perf, err := h.SessionService.Start(instanceID, head.SingerName, head.SongTitle, head.SongReference, head.ID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Promote: failed to start performance: %v", err))
		utils.WriteError(w, "Could not start the performance", err)
		return
	}

	h.Logger.LogPerformance("PROMOTE", perf.ID, fmt.Sprintf("%s / %s", perf.SingerName, perf.SongTitle))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Performance started", perf))
}

// Start activates an ad hoc performance that never went through the queue.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")

	var req models.StartPerformanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Start: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	perf, err := h.SessionService.Start(instanceID, req.SingerName, req.SongTitle, req.SongReference, "")
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Start: %v", err))
		utils.WriteError(w, "Could not start the performance", err)
		return
	}

	h.Logger.LogPerformance("START", perf.ID, fmt.Sprintf("%s / %s", perf.SingerName, perf.SongTitle))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Performance started", perf))
}

func (h *Handler) ChangeVideo(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")
	performanceID := chi.URLParam(r, "performanceID")

	var req models.ChangeVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ChangeVideo: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	perf, err := h.SessionService.ChangeVideo(instanceID, performanceID, req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ChangeVideo: %v", err))
		utils.WriteError(w, "Could not change the video", err)
		return
	}

	h.Logger.LogPerformance("CHANGE_VIDEO", performanceID, perf.SongReference)
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Video changed, votes reset", perf))
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")
	performanceID := chi.URLParam(r, "performanceID")

	if err := h.SessionService.Close(instanceID, performanceID); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Close: %v", err))
		utils.WriteError(w, "Could not close the performance", err)
		return
	}

	h.Logger.LogPerformance("CLOSE", performanceID, "performance closed")
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Performance closed", nil))
}

// Current serves the TV display and voting phones; both poll/subscribe to
// the single active performance.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")

	perf, err := h.SessionService.Current(instanceID)
	if err != nil {
		utils.WriteError(w, "No active performance", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Current performance", perf))
}

func (h *Handler) Rankings(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")

	perfs, err := h.SessionService.Rankings(instanceID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Rankings: %v", err))
		utils.WriteError(w, "Could not load rankings", err)
		return
	}
	if perfs == nil {
		perfs = []models.Performance{}
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Rankings", perfs))
}
