package models

import "github.com/google/uuid"

// WebSocket event types
const (
	EventChatPending     = "chat_pending"
	EventChatReply       = "chat_reply"
	EventChatError       = "chat_error"
	EventSOSCreated      = "sos_created"
	EventSOSCompleted    = "sos_completed"
	EventSOSFailed       = "sos_failed"
	EventLocationUpdated = "location_updated"
)

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type ChatEvent struct {
	Turn  *Turn  `json:"turn,omitempty"`
	Error string `json:"error,omitempty"`
	Size  int    `json:"transcript_size"`
}

type SOSUpdate struct {
	EventID     uuid.UUID `json:"event_id"`
	Status      string    `json:"status"`
	Suggestions string    `json:"suggestions,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
