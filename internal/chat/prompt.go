package chat

import (
	"fmt"
	"strings"

	"emitra-backend/internal/models"
)

const assistantName = "Mitra"

// Persona returns the system instruction sent with every completion request.
func Persona() string {
	return strings.Join([]string{
		fmt.Sprintf("You are %s, a helpful and friendly assistant for the E-Mitra personal safety app.", assistantName),
		"Your role is to provide support and answer questions related to user safety.",
		"Keep your responses concise, calm and reassuring.",
		"If the user asks about something unrelated to personal safety, gently steer the conversation back to safety.",
		"If the user seems to be in distress or immediate danger, strongly advise them to use the SOS feature in the app or to contact local emergency services immediately (112 in India).",
	}, "\n")
}

// Greeting is the seeded first turn of a session.
func Greeting(user *models.User) string {
	name := "there"
	if user != nil && strings.TrimSpace(user.Name) != "" {
		name = strings.TrimSpace(user.Name)
	}
	return fmt.Sprintf("Hi %s! I'm %s, your safety assistant. How can I help you today?", name, assistantName)
}

// Assemble builds the request for one turn. history is replayed in full and
// the persona is never stored inside it.
func Assemble(persona string, history models.Transcript, message string) models.CompletionRequest {
	return models.CompletionRequest{
		Persona: persona,
		History: history.Clone(),
		Message: message,
	}
}
