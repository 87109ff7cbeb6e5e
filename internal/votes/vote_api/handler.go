package vote_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-karaoke/internal/logger"
	"ms-karaoke/internal/models"
	"ms-karaoke/internal/utils"
	"ms-karaoke/internal/votes"
)

type Handler struct {
	VoteService *votes.Service
	Logger      *logger.Logger
}

func NewHandler(svc *votes.Service, log *logger.Logger) *Handler {
	return &Handler{VoteService: svc, Logger: log}
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")

	var req models.SubmitVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Submit: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	perf, err := h.VoteService.Submit(instanceID, req)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicateVote):
			utils.WriteError(w, "You already voted for this performance", err)
		case errors.Is(err, models.ErrInvalidState):
			utils.WriteError(w, "Voting has ended for this round", err)
		default:
			h.Logger.Error("API", fmt.Sprintf("Submit: %v", err))
			utils.WriteError(w, "Could not record the vote", err)
		}
		return
	}

	h.Logger.LogVote(req.PerformanceID, req.DeviceID, fmt.Sprintf("score %d, new average %.2f", req.Score, perf.AverageScore))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Vote recorded", perf))
}
