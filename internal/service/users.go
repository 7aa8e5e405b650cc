package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"inkpress/internal/apperror"
	"inkpress/internal/auth"
	"inkpress/internal/events"
	"inkpress/internal/models"
)

const (
	// VerifyTokenTTL is how long an email verification link stays valid.
	VerifyTokenTTL = 24 * time.Hour
	// ResetTokenTTL is how long a password reset link stays valid.
	ResetTokenTTL = time.Hour

	totpIssuer = "Inkpress"
)

// UserService handles registration, email verification, password reset,
// profile edits and two-factor setup.
type UserService struct {
	users     UserRepository
	tokens    TokenRepository
	passwords *auth.PasswordService
	emails    EmailQueue
	events    events.Publisher
}

// NewUserService creates a UserService.
func NewUserService(
	users UserRepository,
	tokens TokenRepository,
	passwords *auth.PasswordService,
	emails EmailQueue,
	publisher events.Publisher,
) *UserService {
	return &UserService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		emails:    emails,
		events:    publisher,
	}
}

// RegisterInput is the payload of a registration request.
type RegisterInput struct {
	Email       string
	Username    string
	Password    string
	DisplayName string
}

// Register creates an unverified account and queues its verification email.
// Duplicate emails and usernames are reported as conflicts.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = username
	}
	if err := validateProfile(displayName, "", nil); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	user, err := s.users.Create(ctx, &models.User{
		Email:        email,
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: &hash,
		Role:         models.RoleUser,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("user registered", "user_id", user.ID, "username", user.Username)

	if err := s.sendVerification(ctx, user); err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.UserRegistered, user.ID, "user", user.ID, nil))
	return user, nil
}

// VerifyEmail consumes a verification token and marks its user verified.
func (s *UserService) VerifyEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperror.ValidationFailed("token", "token is required")
	}
	userID, err := s.tokens.VerifyEmail(ctx, auth.HashToken(token))
	if err != nil {
		return err
	}
	slog.Info("email verified", "user_id", userID)
	return nil
}

// ResendVerification queues a fresh verification email for an existing,
// unverified account. Unknown and verified addresses succeed silently.
func (s *UserService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil || user.EmailVerified {
		return nil
	}
	return s.sendVerification(ctx, user)
}

// ForgotPassword queues a password reset email for an existing account
// with a password. Unknown addresses succeed silently.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil || !user.HasPassword() {
		return nil
	}

	plain, hash, err := auth.NewOneTimeToken()
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}
	if err := s.tokens.Create(ctx, user.ID, models.TokenResetPassword, hash, ResetTokenTTL); err != nil {
		return err
	}
	if err := s.emails.EnqueuePasswordReset(ctx, user.Email, user.DisplayName, plain); err != nil {
		slog.Error("enqueue password reset failed", "user_id", user.ID, "error", err)
	}
	return nil
}

// ResetPassword consumes a reset token, stores the new password and
// revokes every session of the account.
func (s *UserService) ResetPassword(ctx context.Context, token, password string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperror.ValidationFailed("token", "token is required")
	}
	if err := validatePassword(password); err != nil {
		return err
	}
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	userID, err := s.tokens.ResetPassword(ctx, auth.HashToken(token), hash)
	if err != nil {
		return err
	}
	slog.Info("password reset", "user_id", userID)
	return nil
}

// ProfileInput carries a partial profile update. Nil fields are left as is.
type ProfileInput struct {
	DisplayName *string
	Bio         *string
	AvatarURL   *string
}

// UpdateProfile applies in to user and saves it.
func (s *UserService) UpdateProfile(ctx context.Context, user *models.User, in ProfileInput) (*models.User, error) {
	updated := *user
	if in.DisplayName != nil {
		updated.DisplayName = strings.TrimSpace(*in.DisplayName)
		if updated.DisplayName == "" {
			updated.DisplayName = user.Username
		}
	}
	if in.Bio != nil {
		updated.Bio = strings.TrimSpace(*in.Bio)
	}
	if in.AvatarURL != nil {
		avatar := strings.TrimSpace(*in.AvatarURL)
		if avatar == "" {
			updated.AvatarURL = nil
		} else {
			updated.AvatarURL = &avatar
		}
	}
	if err := validateProfile(updated.DisplayName, updated.Bio, updated.AvatarURL); err != nil {
		return nil, err
	}
	if err := s.users.UpdateProfile(ctx, &updated); err != nil {
		return nil, err
	}
	return s.users.FindByID(ctx, user.ID)
}

// TOTPSetup is the secret a client enrolls in an authenticator app.
type TOTPSetup struct {
	Secret string `json:"secret"`
	QRCode string `json:"qrCode"` // base64 PNG of the otpauth:// URL
}

// SetupTOTP generates and stores a new TOTP secret. Two-factor login is
// not required until EnableTOTP confirms a code from it.
func (s *UserService) SetupTOTP(ctx context.Context, user *models.User) (*TOTPSetup, error) {
	if user.TOTPEnabled {
		return nil, apperror.Conflict("code", "two-factor authentication is already enabled")
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: user.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("totp generate: %w", err)
	}
	if err := s.users.SetTOTPSecret(ctx, user.ID, key.Secret()); err != nil {
		return nil, err
	}

	qrPNG, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("qr code: %w", err)
	}
	return &TOTPSetup{
		Secret: key.Secret(),
		QRCode: base64.StdEncoding.EncodeToString(qrPNG),
	}, nil
}

// EnableTOTP turns on two-factor login once code matches the pending secret.
func (s *UserService) EnableTOTP(ctx context.Context, user *models.User, code string) error {
	if user.TOTPEnabled {
		return apperror.Conflict("code", "two-factor authentication is already enabled")
	}
	if user.TOTPSecret == nil {
		return apperror.ValidationFailed("code", "two-factor setup has not been started")
	}
	if !totp.Validate(strings.TrimSpace(code), *user.TOTPSecret) {
		return apperror.ValidationFailed("code", "invalid two-factor code")
	}
	return s.users.EnableTOTP(ctx, user.ID)
}

// DisableTOTP turns off two-factor login and clears the secret.
func (s *UserService) DisableTOTP(ctx context.Context, user *models.User, code string) error {
	if !user.TOTPEnabled || user.TOTPSecret == nil {
		return apperror.ValidationFailed("code", "two-factor authentication is not enabled")
	}
	if !totp.Validate(strings.TrimSpace(code), *user.TOTPSecret) {
		return apperror.ValidationFailed("code", "invalid two-factor code")
	}
	return s.users.ResetTOTP(ctx, user.ID)
}

func (s *UserService) sendVerification(ctx context.Context, user *models.User) error {
	plain, hash, err := auth.NewOneTimeToken()
	if err != nil {
		return fmt.Errorf("verification token: %w", err)
	}
	if err := s.tokens.Create(ctx, user.ID, models.TokenVerifyEmail, hash, VerifyTokenTTL); err != nil {
		return err
	}
	// The account exists either way; a lost email can be re-sent.
	if err := s.emails.EnqueueVerifyEmail(ctx, user.Email, user.DisplayName, plain); err != nil {
		slog.Error("enqueue verification email failed", "user_id", user.ID, "error", err)
	}
	return nil
}

func (s *UserService) publish(ctx context.Context, ev events.Event) {
	if err := s.events.Publish(ctx, ev); err != nil {
		slog.Warn("publish event failed", "type", ev.Type, "error", err)
	}
}
