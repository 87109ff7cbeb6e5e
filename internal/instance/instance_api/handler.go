package instance_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"ms-karaoke/internal/instance"
	"ms-karaoke/internal/logger"
	"ms-karaoke/internal/models"
	"ms-karaoke/internal/utils"
)

type Handler struct {
	InstanceService *instance.Service
	Logger          *logger.Logger
	PublicBaseURL   string
	DefaultTTL      time.Duration
}

func NewHandler(svc *instance.Service, log *logger.Logger, publicBaseURL string, defaultTTL time.Duration) *Handler {
	return &Handler{
		InstanceService: svc,
		Logger:          log,
		PublicBaseURL:   publicBaseURL,
		DefaultTTL:      defaultTTL,
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Create: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	ttl := h.DefaultTTL
	if req.TTLMinutes > 0 {
		ttl = time.Duration(req.TTLMinutes) * time.Minute
	}

	inst, err := h.InstanceService.Create(req.Name, ttl)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Create: %v", err))
		utils.WriteError(w, "Could not create the event", err)
		return
	}

	h.Logger.Info("INSTANCE", fmt.Sprintf("Created instance %s (%s)", inst.ID, inst.Name))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Event created", inst))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")

	inst, err := h.InstanceService.Get(instanceID)
	if err != nil {
		utils.WriteError(w, "Event not found", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Event", inst))
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")

	if err := h.InstanceService.Reset(instanceID); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Reset: %v", err))
		utils.WriteError(w, "Could not reset the event", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Event reset", nil))
}

// JoinQR renders the QR code shown on the TV display; phones scan it to
// reach the registration/voting page for this instance.
func (h *Handler) JoinQR(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")

	inst, err := h.InstanceService.Get(instanceID)
	if err != nil {
		utils.WriteError(w, "Event not found", err)
		return
	}

	joinURL := fmt.Sprintf("%s/join/%s", h.PublicBaseURL, inst.JoinCode)
	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("JoinQR: failed to encode QR: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not render QR code", err.Error()))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
