package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"emitra-backend/internal/middleware"
	"emitra-backend/internal/models"
	"emitra-backend/internal/services"
)

type locationStore interface {
	Update(ctx context.Context, userID uuid.UUID, p models.Position) (*models.Position, error)
	Latest(ctx context.Context, userID uuid.UUID) (*models.Position, error)
}

type updatePublisher interface {
	PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage)
}

type LocationHandler struct {
	locations locationStore
	publisher updatePublisher
}

func NewLocationHandler(locations locationStore, publisher updatePublisher) *LocationHandler {
	return &LocationHandler{locations: locations, publisher: publisher}
}

func (h *LocationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.LocationRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidBody(w, r)
		return
	}
	if !req.HasPosition() {
		handleServiceError(w, r, &services.ValidationError{Fields: map[string]string{
			"location": "Latitude and longitude are required",
		}})
		return
	}

	userID := middleware.GetUserID(r.Context())
	pos, err := h.locations.Update(r.Context(), userID, req.Position())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.publisher.PublishUpdate(r.Context(), userID, models.WSMessage{
		Type:    models.EventLocationUpdated,
		Payload: pos,
	})
	writeJSON(w, http.StatusOK, pos)
}

func (h *LocationHandler) Get(w http.ResponseWriter, r *http.Request) {
	pos, err := h.locations.Latest(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}
