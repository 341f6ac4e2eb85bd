package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"emitra-backend/internal/logger"
	"emitra-backend/internal/middleware"
	"emitra-backend/internal/models"
)

const (
	refreshTokenTTL = 7 * 24 * time.Hour
	resendCooldown  = 60 * time.Second
)

var (
	mobileRegex = regexp.MustCompile(`^\d{10,15}$`)
	otpRegex    = regexp.MustCompile(`^\d{6}$`)
)

type userRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByMobile(ctx context.Context, mobile string) (*models.User, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error
}

// OTPSender delivers a passcode to a mobile number.
type OTPSender interface {
	SendOTP(ctx context.Context, mobile, code string) error
}

// LogOTPSender writes passcodes to the log instead of sending an SMS.
type LogOTPSender struct{}

func (LogOTPSender) SendOTP(ctx context.Context, mobile, code string) error {
	logger.WithFields(map[string]interface{}{"mobile": maskMobile(mobile)}).Infof("OTP issued: %s", code)
	return nil
}

type AuthService struct {
	userRepo    userRepository
	store       KeyValueStore
	jwt         *middleware.JWTAuth
	sender      OTPSender
	issuer      string
	otpTTL      time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewAuthService(userRepo userRepository, store KeyValueStore, jwt *middleware.JWTAuth, sender OTPSender, issuer string, otpTTL time.Duration, maxAttempts int) *AuthService {
	if otpTTL < time.Minute {
		otpTTL = 5 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if issuer == "" {
		issuer = "E-Mitra"
	}
	return &AuthService{
		userRepo:    userRepo,
		store:       store,
		jwt:         jwt,
		sender:      sender,
		issuer:      issuer,
		otpTTL:      otpTTL,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Register opens an OTP challenge for the mobile number and returns the
// passcode that was sent.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (string, error) {
	name := strings.TrimSpace(req.Name)
	mobile := strings.TrimSpace(req.Mobile)

	// Validate all fields at once
	fieldErrors := make(map[string]string)
	if utf8.RuneCountInString(name) < 2 {
		fieldErrors["name"] = "Name must be at least 2 characters."
	}
	if !mobileRegex.MatchString(mobile) {
		fieldErrors["mobile"] = "Please enter a valid mobile number."
	}
	if len(fieldErrors) > 0 {
		return "", &ValidationError{Fields: fieldErrors}
	}

	ok, err := s.store.SetNX(ctx, cooldownKey(mobile), "1", resendCooldown)
	if err != nil {
		return "", fmt.Errorf("failed to check OTP cooldown: %w", err)
	}
	if !ok {
		return "", &RateLimitError{Message: "Please wait 60 seconds before requesting another passcode"}
	}

	// A user who never got a passcode must be able to ask again straight away.
	issued := false
	defer func() {
		if !issued {
			s.store.Del(context.WithoutCancel(ctx), cooldownKey(mobile))
		}
	}()

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: mobile,
		Period:      s.period(),
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP secret: %w", err)
	}

	challenge := models.OTPChallenge{
		Name:     name,
		Mobile:   mobile,
		Secret:   key.Secret(),
		IssuedAt: s.now().UTC(),
	}
	code, err := totp.GenerateCodeCustom(challenge.Secret, challenge.IssuedAt, s.validateOpts())
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}

	data, _ := json.Marshal(challenge)
	if err := s.store.Set(ctx, challengeKey(mobile), string(data), s.otpTTL); err != nil {
		return "", fmt.Errorf("failed to store OTP challenge: %w", err)
	}
	s.store.Del(ctx, attemptsKey(mobile))

	if err := s.sender.SendOTP(ctx, mobile, code); err != nil {
		s.store.Del(context.WithoutCancel(ctx), challengeKey(mobile))
		return "", fmt.Errorf("failed to send OTP: %w", err)
	}

	issued = true
	return code, nil
}

// Verify checks the passcode, creates or refreshes the user and issues tokens.
func (s *AuthService) Verify(ctx context.Context, req models.VerifyRequest) (*models.AuthTokens, error) {
	mobile := strings.TrimSpace(req.Mobile)
	code := strings.TrimSpace(req.OTP)

	fieldErrors := make(map[string]string)
	if !mobileRegex.MatchString(mobile) {
		fieldErrors["mobile"] = "Please enter a valid mobile number."
	}
	if !otpRegex.MatchString(code) {
		fieldErrors["otp"] = "OTP must be 6 digits."
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	raw, err := s.store.Get(ctx, challengeKey(mobile))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, &NotFoundError{Message: "Invalid or expired passcode. Please register again."}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load OTP challenge: %w", err)
	}

	var challenge models.OTPChallenge
	if err := json.Unmarshal([]byte(raw), &challenge); err != nil {
		s.store.Del(ctx, challengeKey(mobile))
		return nil, fmt.Errorf("corrupt OTP challenge: %w", err)
	}

	// The attempt is counted before the code is checked so parallel guesses
	// cannot share one slot.
	attempt, err := s.store.Incr(ctx, attemptsKey(mobile), s.otpTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to count OTP attempt: %w", err)
	}
	if attempt > int64(s.maxAttempts) {
		s.store.Del(ctx, challengeKey(mobile))
		return nil, &UnauthorizedError{Message: "Too many incorrect attempts. Please register again."}
	}

	valid, err := totp.ValidateCustom(code, challenge.Secret, challenge.IssuedAt, s.validateOpts())
	if err != nil || !valid {
		if attempt >= int64(s.maxAttempts) {
			// The counter is left to expire so stragglers holding the old
			// challenge still see the limit.
			s.store.Del(ctx, challengeKey(mobile))
			return nil, &UnauthorizedError{Message: "Too many incorrect attempts. Please register again."}
		}
		return nil, &UnauthorizedError{Message: "Incorrect passcode"}
	}

	s.store.Del(ctx, challengeKey(mobile), attemptsKey(mobile))

	user, err := s.upsertUser(ctx, challenge.Name, challenge.Mobile)
	if err != nil {
		return nil, err
	}

	s.userRepo.UpdateLastLogin(ctx, user.ID)

	return s.issueTokens(ctx, user)
}

func (s *AuthService) upsertUser(ctx context.Context, name, mobile string) (*models.User, error) {
	user, err := s.userRepo.GetByMobile(ctx, mobile)
	if err == nil {
		if user.Name != name {
			if err := s.userRepo.UpdateName(ctx, user.ID, name); err != nil {
				return nil, err
			}
			user.Name = name
		}
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	user = &models.User{Name: name, Mobile: mobile}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*models.AuthTokens, error) {
	// Look up refresh token
	userIDStr, err := s.store.Get(ctx, refreshKey(refreshToken))
	if err != nil {
		return nil, &UnauthorizedError{Message: "Invalid or expired refresh token. Please log in again."}
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID: %w", err)
	}

	// Delete old token (rotation)
	s.store.Del(ctx, refreshKey(refreshToken))

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &UnauthorizedError{Message: "Account no longer exists"}
		}
		return nil, err
	}

	return s.issueTokens(ctx, user)
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.store.Del(ctx, refreshKey(refreshToken))
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (*models.AuthTokens, error) {
	accessToken, err := s.jwt.GenerateAccessToken(user.ID, user.Mobile)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := generateToken(32)
	if err != nil {
		return nil, err
	}

	if err := s.store.Set(ctx, refreshKey(refreshToken), user.ID.String(), refreshTokenTTL); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &models.AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(middleware.AccessTokenTTL.Seconds()),
		User:         user,
	}, nil
}

func (s *AuthService) period() uint {
	return uint(s.otpTTL / time.Second)
}

func (s *AuthService) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    s.period(),
		Skew:      0,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

func challengeKey(mobile string) string { return "otp:" + mobile }

func cooldownKey(mobile string) string { return "otp_cooldown:" + mobile }

func attemptsKey(mobile string) string { return "otp_attempts:" + mobile }

func refreshKey(token string) string { return "refresh:" + token }

func generateToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func maskMobile(mobile string) string {
	if len(mobile) <= 4 {
		return mobile
	}
	return strings.Repeat("*", len(mobile)-4) + mobile[len(mobile)-4:]
}
