package search_api

import (
	"fmt"
	"net/http"

	"ms-karaoke/internal/logger"
	"ms-karaoke/internal/models"
	"ms-karaoke/internal/utils"
	"ms-karaoke/internal/videosearch"
)

type Handler struct {
	Fetcher *videosearch.Fetcher
	Logger  *logger.Logger
}

func NewHandler(fetcher *videosearch.Fetcher, log *logger.Logger) *Handler {
	return &Handler{Fetcher: fetcher, Logger: log}
}

// Search proxies the provider lookup. On provider failure the response
// tells the client to fall back to manual URL entry.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	results, err := h.Fetcher.Search(query)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Search: %v", err))
		utils.WriteError(w, "Video search unavailable, paste a URL instead", err)
		return
	}
	if results == nil {
		results = []models.VideoResult{}
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Search results", results))
}
