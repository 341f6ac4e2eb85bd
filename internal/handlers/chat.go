package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"emitra-backend/internal/chat"
	"emitra-backend/internal/logger"
	"emitra-backend/internal/middleware"
	"emitra-backend/internal/models"
	"emitra-backend/internal/services"
)

type chatSessions interface {
	Open(user *models.User) chat.Snapshot
	Get(userID uuid.UUID) (*chat.Session, bool)
	Send(ctx context.Context, userID uuid.UUID, text string) (chat.Snapshot, error)
	Close(userID uuid.UUID) bool
}

type ChatHandler struct {
	sessions  chatSessions
	completer chat.Completer
	users     userStore
	timeout   time.Duration
}

func NewChatHandler(sessions chatSessions, completer chat.Completer, users userStore, timeout time.Duration) *ChatHandler {
	return &ChatHandler{
		sessions:  sessions,
		completer: completer,
		users:     users,
		timeout:   timeout,
	}
}

// Open starts (or restarts) the caller's conversation with a greeting.
func (h *ChatHandler) Open(w http.ResponseWriter, r *http.Request) {
	user, ok := loadUser(w, r, h.users)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.sessions.Open(user))
}

func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessions.Get(middleware.GetUserID(r.Context()))
	if !ok {
		writeJSON(w, http.StatusOK, chat.Snapshot{State: chat.StateClosed, Transcript: models.Transcript{}})
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

// Send blocks until the reply arrives. A failed completion still answers
// 200: the snapshot carries the error and the rolled-back transcript.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req models.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidBody(w, r)
		return
	}

	snap, err := h.sessions.Send(r.Context(), middleware.GetUserID(r.Context()), req.Message)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
	case errors.Is(err, chat.ErrPending):
		writeJSON(w, http.StatusConflict, errorResp("CHAT_PENDING", "Please wait for the current reply", r))
	case errors.Is(err, chat.ErrClosed):
		writeJSON(w, http.StatusNotFound, errorResp("CHAT_NOT_OPEN", "Open a chat before sending messages", r))
	case err != nil:
		handleServiceError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, snap)
	}
}

func (h *ChatHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.sessions.Close(middleware.GetUserID(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat closed"})
}

// Complete answers a single message against a client-held history without
// touching any server-side session.
func (h *ChatHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidBody(w, r)
		return
	}

	message := strings.TrimSpace(req.Message)
	fieldErrors := make(map[string]string)
	if message == "" {
		fieldErrors["message"] = "Message is required"
	}
	for i, turn := range req.History {
		if !turn.Role.Valid() {
			fieldErrors[fmt.Sprintf("history[%d].role", i)] = "Role must be user or model"
		}
	}
	if len(fieldErrors) > 0 {
		handleServiceError(w, r, &services.ValidationError{Fields: fieldErrors})
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result := h.completer.Complete(ctx, chat.Assemble(chat.Persona(), models.Transcript(req.History), message))
	if !result.IsOk() {
		logger.WithFields(map[string]interface{}{
			"user_id": middleware.GetUserID(r.Context()),
			"reason":  result.Reason,
		}).Warn("stateless chat completion failed")
		writeJSON(w, http.StatusBadGateway, errorResp("AI_ERROR", result.Reason, r))
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Reply: result.Text})
}
