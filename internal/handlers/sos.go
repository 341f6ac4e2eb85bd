package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"emitra-backend/internal/middleware"
	"emitra-backend/internal/models"
	"emitra-backend/internal/services"
)

type sosService interface {
	Trigger(ctx context.Context, userID uuid.UUID, req models.LocationRequest) (*models.SOSEvent, error)
	Get(ctx context.Context, userID, eventID uuid.UUID) (*models.SOSEvent, error)
	Recent(ctx context.Context, userID uuid.UUID) ([]*models.SOSEvent, error)
}

type SOSHandler struct {
	sos sosService
}

func NewSOSHandler(sos sosService) *SOSHandler {
	return &SOSHandler{sos: sos}
}

// Trigger records the event and returns immediately; suggestions arrive
// later over the socket or by polling GET /sos/{id}.
func (h *SOSHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req models.LocationRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		invalidBody(w, r)
		return
	}

	event, err := h.sos.Trigger(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"event":    event,
		"contacts": services.EmergencyContacts(),
		"message":  "SOS activated. Stay calm, help is being arranged.",
	})
}

func (h *SOSHandler) Get(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid SOS event ID", r))
		return
	}

	event, err := h.sos.Get(r.Context(), middleware.GetUserID(r.Context()), eventID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *SOSHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.sos.Recent(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if events == nil {
		events = []*models.SOSEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}
