package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/rs/xid"

	"inkpress/internal/apperror"
	"inkpress/internal/auth"
	"inkpress/internal/models"
	"inkpress/internal/session"
)

var (
	errBadCredentials = apperror.Unauthorized("invalid email or password")
	errCodeRequired   = apperror.Unauthorized("two-factor code required")
	errCodeInvalid    = apperror.Unauthorized("invalid two-factor code")
	errBadState       = apperror.ValidationFailed("state", "invalid or expired oauth state")
)

var usernameStrip = regexp.MustCompile(`[^a-z0-9_]+`)

// StateStore issues and consumes single-use OAuth state values.
type StateStore interface {
	Issue(ctx context.Context, provider string) (string, error)
	Consume(ctx context.Context, state, provider string) (bool, error)
}

// AuthService signs users in with a password or a social provider and
// manages their sessions.
type AuthService struct {
	users     UserRepository
	passwords *auth.PasswordService
	sessions  *session.Manager
	lister    SessionLister
	states    StateStore
	providers map[string]auth.Provider
}

// NewAuthService creates an AuthService. Only providers passed here are
// available for social login.
func NewAuthService(
	users UserRepository,
	passwords *auth.PasswordService,
	sessions *session.Manager,
	lister SessionLister,
	states StateStore,
	providers ...auth.Provider,
) *AuthService {
	byName := make(map[string]auth.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &AuthService{
		users:     users,
		passwords: passwords,
		sessions:  sessions,
		lister:    lister,
		states:    states,
		providers: byName,
	}
}

// LoginInput is a password login attempt.
type LoginInput struct {
	Email    string
	Password string
	Code     string // TOTP code, required when two-factor is enabled
	Meta     session.Meta
}

// LoginResult bundles the issued bearer token with its user and session.
type LoginResult struct {
	Token   string
	User    *models.User
	Session *models.Session
}

// Login checks credentials and opens a session. Unknown emails and wrong
// passwords are indistinguishable. Unverified accounts are forbidden.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.HasPassword() {
		return nil, errBadCredentials
	}
	if err := s.passwords.Verify(*user.PasswordHash, in.Password); err != nil {
		return nil, errBadCredentials
	}
	if !user.EmailVerified {
		return nil, apperror.Forbidden("email address is not verified")
	}
	if user.TOTPEnabled && user.TOTPSecret != nil {
		code := strings.TrimSpace(in.Code)
		if code == "" {
			return nil, errCodeRequired
		}
		if !totp.Validate(code, *user.TOTPSecret) {
			return nil, errCodeInvalid
		}
	}
	return s.issue(ctx, user, in.Meta)
}

// Logout revokes the session the request was authenticated with.
func (s *AuthService) Logout(ctx context.Context, id *session.Identity) error {
	return s.sessions.Revoke(ctx, id.Session.ID, id.User.ID)
}

// Sessions lists the user's unexpired, unrevoked sessions.
func (s *AuthService) Sessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	return s.lister.ListActive(ctx, userID)
}

// RevokeSession ends one of the user's sessions. Sessions of other users
// are reported as not found.
func (s *AuthService) RevokeSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	return s.sessions.Revoke(ctx, sessionID, userID)
}

func (s *AuthService) provider(name string) (auth.Provider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, apperror.NotFoundf("unknown provider %q", name)
	}
	return p, nil
}

// BeginSocialLogin returns the provider URL to redirect the browser to.
func (s *AuthService) BeginSocialLogin(ctx context.Context, providerName string) (string, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return "", err
	}
	state, err := s.states.Issue(ctx, p.Name())
	if err != nil {
		return "", err
	}
	return p.AuthURL(state), nil
}

// CompleteSocialLogin handles the provider callback. The user is found by
// linked identity first, then by verified email (which links the identity),
// and is otherwise created as a verified account without a password.
func (s *AuthService) CompleteSocialLogin(ctx context.Context, providerName, code, state string, meta session.Meta) (*LoginResult, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return nil, err
	}
	ok, err := s.states.Consume(ctx, state, p.Name())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errBadState
	}
	if code == "" {
		return nil, apperror.ValidationFailed("code", "authorization code is required")
	}

	profile, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s exchange: %w", p.Name(), err)
	}
	user, err := s.resolveSocialUser(ctx, profile)
	if err != nil {
		return nil, err
	}
	slog.Info("social login", "provider", profile.Provider, "user_id", user.ID)
	return s.issue(ctx, user, meta)
}

func (s *AuthService) resolveSocialUser(ctx context.Context, profile *auth.Profile) (*models.User, error) {
	user, err := s.users.FindByIdentity(ctx, profile.Provider, profile.ID)
	if err != nil || user != nil {
		return user, err
	}

	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if email == "" {
		return nil, apperror.ValidationFailed("email", "provider did not return an email address")
	}
	if profile.EmailVerified {
		existing, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if err := s.users.LinkIdentity(ctx, existing.ID, profile.Provider, profile.ID); err != nil {
				return nil, err
			}
			return s.users.FindByID(ctx, existing.ID)
		}
	}

	base := profile.Login
	if base == "" {
		base, _, _ = strings.Cut(email, "@")
	}
	username, err := s.availableUsername(ctx, base)
	if err != nil {
		return nil, err
	}
	displayName := strings.TrimSpace(profile.Name)
	if displayName == "" {
		displayName = username
	}
	u := &models.User{
		Email:       email,
		Username:    username,
		DisplayName: displayName,
	}
	if profile.AvatarURL != "" {
		u.AvatarURL = &profile.AvatarURL
	}

	created, err := s.users.CreateWithIdentity(ctx, u, profile.Provider, profile.ID)
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && errors.Is(err, apperror.ErrConflict) && appErr.Field == "username" {
		// Lost a race for the username; one suffixed retry.
		u.Username = suffixUsername(base)
		created, err = s.users.CreateWithIdentity(ctx, u, profile.Provider, profile.ID)
	}
	return created, err
}

// availableUsername derives a valid username from base, adding a random
// suffix when it is already taken.
func (s *AuthService) availableUsername(ctx context.Context, base string) (string, error) {
	name := cleanUsername(base)
	taken, err := s.users.FindByUsername(ctx, name)
	if err != nil {
		return "", err
	}
	if taken == nil {
		return name, nil
	}
	return suffixUsername(base), nil
}

func cleanUsername(base string) string {
	name := usernameStrip.ReplaceAllString(strings.ToLower(base), "_")
	name = strings.Trim(name, "_")
	if len(name) > 30 {
		name = name[:30]
	}
	if len(name) < 3 {
		name = "user"
	}
	return name
}

// suffixUsername appends "_" and six xid characters, keeping the result
// within the 30 character limit.
func suffixUsername(base string) string {
	name := cleanUsername(base)
	if len(name) > 23 {
		name = name[:23]
	}
	id := xid.New().String()
	return name + "_" + id[len(id)-6:]
}

func (s *AuthService) issue(ctx context.Context, user *models.User, meta session.Meta) (*LoginResult, error) {
	token, sess, err := s.sessions.Issue(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: user, Session: sess}, nil
}
