// Package session issues and authenticates bearer sessions. Each login
// creates a sessions row and a signed token naming it, so a session can be
// revoked before its token expires.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"inkpress/internal/apperror"
	"inkpress/internal/auth"
	"inkpress/internal/models"
)

const (
	// DefaultTTL is how long a session and its token stay valid.
	DefaultTTL = 30 * 24 * time.Hour

	// touchInterval limits last_seen_at writes to one per session per interval.
	touchInterval = time.Minute

	maxDeviceLen    = 100
	maxUserAgentLen = 512
)

// ErrInvalidSession is returned by Authenticate for any token that does
// not resolve to an active session of an existing user.
var ErrInvalidSession = apperror.Unauthorized("invalid or expired session")

// Repository persists sessions.
type Repository interface {
	Create(ctx context.Context, sess *models.Session, ttl time.Duration) (*models.Session, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	Touch(ctx context.Context, id uuid.UUID) error
	Revoke(ctx context.Context, id, userID uuid.UUID) (bool, error)
}

// UserFinder loads the user behind a session.
type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Meta describes the client a session is issued to.
type Meta struct {
	Device    string
	IP        string
	UserAgent string
}

// Identity is the authenticated caller of a request.
type Identity struct {
	User    *models.User
	Session *models.Session
}

// Manager ties session rows to signed tokens.
type Manager struct {
	repo   Repository
	users  UserFinder
	tokens *auth.TokenService
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a Manager. A zero ttl selects DefaultTTL.
func NewManager(repo Repository, users UserFinder, tokens *auth.TokenService, ttl time.Duration) *Manager {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Manager{repo: repo, users: users, tokens: tokens, ttl: ttl, now: time.Now}
}

// Issue creates a session for user and returns its bearer token.
func (m *Manager) Issue(ctx context.Context, user *models.User, meta Meta) (string, *models.Session, error) {
	sess, err := m.repo.Create(ctx, &models.Session{
		UserID:    user.ID,
		Device:    clientText(meta.Device, maxDeviceLen),
		IP:        clientText(meta.IP, maxDeviceLen),
		UserAgent: clientText(meta.UserAgent, maxUserAgentLen),
	}, m.ttl)
	if err != nil {
		return "", nil, fmt.Errorf("session issue: %w", err)
	}

	token, err := m.tokens.Generate(user.ID, sess.ID, m.ttl)
	if err != nil {
		return "", nil, fmt.Errorf("session issue: %w", err)
	}
	return token, sess, nil
}

// clientText makes client-supplied header text storable: invalid UTF-8 is
// dropped and the result is cut to at most max runes.
func clientText(s string, max int) string {
	s = strings.ToValidUTF8(s, "")
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// Authenticate validates a bearer token and resolves it to its user and
// active session. Unknown, revoked and expired sessions are all rejected
// with ErrInvalidSession; storage failures are returned as-is.
func (m *Manager) Authenticate(ctx context.Context, token string) (*Identity, error) {
	userID, sessionID, err := m.tokens.Validate(token)
	if err != nil {
		return nil, ErrInvalidSession
	}

	sess, err := m.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if sess == nil || sess.UserID != userID || !sess.Active(now) {
		return nil, ErrInvalidSession
	}

	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidSession
	}

	if now.Sub(sess.LastSeenAt) > touchInterval {
		if err := m.repo.Touch(ctx, sess.ID); err != nil {
			slog.Warn("session touch failed", "session_id", sess.ID, "error", err)
		}
	}
	return &Identity{User: user, Session: sess}, nil
}

// Revoke ends one of the user's sessions. A session owned by someone else
// is reported as not found.
func (m *Manager) Revoke(ctx context.Context, sessionID, userID uuid.UUID) error {
	ok, err := m.repo.Revoke(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NotFound("session", sessionID.String())
	}
	return nil
}

// IsInvalid reports whether err means the caller is not authenticated.
func IsInvalid(err error) bool {
	return errors.Is(err, apperror.ErrUnauthorized)
}
