package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"emitra-backend/internal/middleware"
	"emitra-backend/internal/models"
)

type userStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type sessionCloser interface {
	Close(userID uuid.UUID) bool
}

type UserHandler struct {
	users    userStore
	sessions sessionCloser
}

func NewUserHandler(users userStore, sessions sessionCloser) *UserHandler {
	return &UserHandler{users: users, sessions: sessions}
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, ok := loadUser(w, r, h.users)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteMe removes the account and drops any open chat session with it.
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if err := h.users.Delete(r.Context(), userID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	h.sessions.Close(userID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Account deleted"})
}

// loadUser fetches the authenticated user, writing a 404 when the account
// has gone away.
func loadUser(w http.ResponseWriter, r *http.Request, users userStore) (*models.User, bool) {
	userID := middleware.GetUserID(r.Context())
	user, err := users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "User not found", r))
		} else {
			handleServiceError(w, r, err)
		}
		return nil, false
	}
	return user, true
}
