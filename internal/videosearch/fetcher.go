package videosearch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"ms-karaoke/internal/logger"
	"ms-karaoke/internal/models"
)

// Fetcher queries the external video search provider used to fill in
// song_reference when a participant searches by name instead of pasting
// a URL. Failures are transient: the client falls back to manual entry.
type Fetcher struct {
	client  *http.Client
	baseURL string
	logger  *logger.Logger
}

func NewFetcher(client *http.Client, baseURL string, log *logger.Logger) *Fetcher {
	return &Fetcher{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  log,
	}
}

type searchResponse struct {
	Results []models.VideoResult `json:"results"`
}

// Search runs one provider lookup.
func (f *Fetcher) Search(query string) ([]models.VideoResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("q", "must not be empty")
	}
	if f.baseURL == "" {
		return nil, &models.TransientError{Op: "video search", Err: fmt.Errorf("no provider configured")}
	}

	searchURL := fmt.Sprintf("%s/search?q=%s", f.baseURL, url.QueryEscape(query))
	f.logger.Debug("VIDEOSEARCH", fmt.Sprintf("Searching: %s", searchURL))

	req, err := http.NewRequest(http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Error("VIDEOSEARCH", fmt.Sprintf("Provider error: %v", err))
		return nil, &models.TransientError{Op: "video search", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Error("VIDEOSEARCH", fmt.Sprintf("Provider returned status: %d", resp.StatusCode))
		return nil, &models.TransientError{Op: "video search", Err: fmt.Errorf("provider returned status %d", resp.StatusCode)}
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		f.logger.Error("VIDEOSEARCH", fmt.Sprintf("Failed to decode provider response: %v", err))
		return nil, &models.TransientError{Op: "video search", Err: err}
	}

	return decoded.Results, nil
}
