package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-karaoke/internal/logger"
)

// SSEHandler streams an instance's change feed to browser clients over
// Server-Sent Events.
type SSEHandler struct {
	Logger  *logger.Logger
	Emitter *Emitter
}

func NewSSEHandler(log *logger.Logger, emitter *Emitter) *SSEHandler {
	return &SSEHandler{Logger: log, Emitter: emitter}
}

// HandleInstanceEvents streams every row change for one event instance.
func (h *SSEHandler) HandleInstanceEvents(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")
	if instanceID == "" {
		http.Error(w, "Instance ID is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	h.setupSSEHeaders(w)

	// Context cancels when the client disconnects.
	ctx := r.Context()
	eventChan := h.Emitter.Subscribe(ctx, instanceID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"instanceID\":\"%s\"}\n\n", instanceID)
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to change feed for instance: %s", instanceID))

	for {
		select {
		case event, open := <-eventChan:
			if !open {
				h.Logger.Debug("SSE", fmt.Sprintf("Channel closed for instance: %s", instanceID))
				return
			}

			jsonData, err := json.Marshal(event)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize change event: %v", err))
				continue
			}

			fmt.Fprintf(w, "event: change\ndata: %s\n\n", jsonData)
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from change feed for instance: %s", instanceID))
			return
		}
	}
}

func (h *SSEHandler) setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
