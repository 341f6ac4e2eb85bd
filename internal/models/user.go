package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Mobile      string     `json:"mobile"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

type RegisterRequest struct {
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
}

type VerifyRequest struct {
	Mobile string `json:"mobile"`
	OTP    string `json:"otp"`
}

// OTPChallenge is a pending registration waiting for its passcode.
type OTPChallenge struct {
	Name     string    `json:"name"`
	Mobile   string    `json:"mobile"`
	Secret   string    `json:"secret"`
	IssuedAt time.Time `json:"issued_at"`
}

type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         *User  `json:"user,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}
