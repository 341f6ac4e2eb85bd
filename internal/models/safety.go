package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Position struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Describe renders the position the way the safety prompts expect it.
func (p Position) Describe() string {
	return fmt.Sprintf("User is at latitude %v and longitude %v.", p.Latitude, p.Longitude)
}

// LocationRequest carries an optional position. Handlers fall back to the
// last stored position when it is absent.
type LocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  *float64 `json:"accuracy"`
}

func (r LocationRequest) HasPosition() bool {
	return r.Latitude != nil && r.Longitude != nil
}

func (r LocationRequest) Position() Position {
	p := Position{Accuracy: r.Accuracy, UpdatedAt: time.Now().UTC()}
	if r.Latitude != nil {
		p.Latitude = *r.Latitude
	}
	if r.Longitude != nil {
		p.Longitude = *r.Longitude
	}
	return p
}

type SuggestionsResponse struct {
	Suggestions string `json:"suggestions"`
}

type SafetyTipsResponse struct {
	SafetyTips string `json:"safety_tips"`
}

type TranslateRequest struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
}

type TranslateResponse struct {
	TranslatedText string `json:"translated_text"`
}

type EmergencyContact struct {
	Name   string `json:"name"`
	Number string `json:"number"`
	Kind   string `json:"kind"`
}

const (
	SOSStatusPending    = "pending"
	SOSStatusProcessing = "processing"
	SOSStatusCompleted  = "completed"
	SOSStatusFailed     = "failed"
)

// SOSEvent is one emergency activation and the suggestions generated for it.
type SOSEvent struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	Status       string     `json:"status"`
	Suggestions  *string    `json:"suggestions"`
	ErrorMessage *string    `json:"error_message"`
	RetryCount   int        `json:"retry_count"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

func (e *SOSEvent) Position() Position {
	return Position{Latitude: e.Latitude, Longitude: e.Longitude}
}
