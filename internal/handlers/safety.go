package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"emitra-backend/internal/middleware"
	"emitra-backend/internal/models"
	"emitra-backend/internal/services"
)

type safetyGenerator interface {
	GenerateSafetySuggestions(ctx context.Context, locationDescription string) (string, error)
	GenerateSafetyTips(ctx context.Context, locationDescription string) (string, error)
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

type positionResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, req models.LocationRequest) (*models.Position, error)
}

type SafetyHandler struct {
	gemini    safetyGenerator
	locations positionResolver
}

func NewSafetyHandler(gemini safetyGenerator, locations positionResolver) *SafetyHandler {
	return &SafetyHandler{gemini: gemini, locations: locations}
}

func (h *SafetyHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	pos, ok := h.resolvePosition(w, r, "Your location is not available. Cannot get suggestions.")
	if !ok {
		return
	}

	suggestions, err := h.gemini.GenerateSafetySuggestions(r.Context(), pos.Describe())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SuggestionsResponse{Suggestions: suggestions})
}

func (h *SafetyHandler) Tips(w http.ResponseWriter, r *http.Request) {
	pos, ok := h.resolvePosition(w, r, "Your location is not available. Cannot get tips.")
	if !ok {
		return
	}

	tips, err := h.gemini.GenerateSafetyTips(r.Context(), pos.Describe())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SafetyTipsResponse{SafetyTips: tips})
}

func (h *SafetyHandler) Translate(w http.ResponseWriter, r *http.Request) {
	var req models.TranslateRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidBody(w, r)
		return
	}

	fieldErrors := make(map[string]string)
	if strings.TrimSpace(req.Text) == "" {
		fieldErrors["text"] = "Text is required"
	}
	if strings.TrimSpace(req.TargetLanguage) == "" {
		fieldErrors["target_language"] = "Target language is required"
	}
	if len(fieldErrors) > 0 {
		handleServiceError(w, r, &services.ValidationError{Fields: fieldErrors})
		return
	}

	translated, err := h.gemini.Translate(r.Context(), req.Text, strings.TrimSpace(req.TargetLanguage))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.TranslateResponse{TranslatedText: translated})
}

func (h *SafetyHandler) Contacts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"contacts": services.EmergencyContacts(),
	})
}

// resolvePosition takes the position from an optional body, falling back to
// the user's last reported one. An empty body is allowed.
func (h *SafetyHandler) resolvePosition(w http.ResponseWriter, r *http.Request, unavailable string) (*models.Position, bool) {
	var req models.LocationRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		invalidBody(w, r)
		return nil, false
	}

	pos, err := h.locations.Resolve(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		var nf *services.NotFoundError
		if errors.As(err, &nf) {
			writeJSON(w, http.StatusBadRequest, errorResp("LOCATION_UNAVAILABLE", unavailable, r))
		} else {
			handleServiceError(w, r, err)
		}
		return nil, false
	}
	return pos, true
}
