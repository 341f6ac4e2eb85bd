package handlers

import (
	"context"
	"net/http"

	"emitra-backend/internal/models"
)

type authService interface {
	Register(ctx context.Context, req models.RegisterRequest) (string, error)
	Verify(ctx context.Context, req models.VerifyRequest) (*models.AuthTokens, error)
	RefreshToken(ctx context.Context, refreshToken string) (*models.AuthTokens, error)
	Logout(ctx context.Context, refreshToken string) error
}

type AuthHandler struct {
	authService authService
	// exposeOTP echoes the passcode in the register response for local use.
	exposeOTP bool
}

func NewAuthHandler(authService authService, exposeOTP bool) *AuthHandler {
	return &AuthHandler{authService: authService, exposeOTP: exposeOTP}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidBody(w, r)
		return
	}

	code, err := h.authService.Register(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := map[string]interface{}{
		"message": "A passcode has been sent to your mobile number.",
	}
	if h.exposeOTP {
		resp["dev_otp"] = code
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidBody(w, r)
		return
	}

	tokens, err := h.authService.Verify(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidBody(w, r)
		return
	}

	tokens, err := h.authService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidBody(w, r)
		return
	}

	h.authService.Logout(r.Context(), req.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
