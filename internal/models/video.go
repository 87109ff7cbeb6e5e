package models

// VideoResult is one hit from the external video search provider, used to
// fill in song_reference when the participant searches by name instead of
// pasting a URL.
type VideoResult struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail"`
	Channel   string `json:"channel"`
	URL       string `json:"url"`
}
