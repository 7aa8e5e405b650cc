package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkpress/internal/apperror"
	"inkpress/internal/auth"
	"inkpress/internal/models"
	"inkpress/internal/session"
)

type fakeProvider struct {
	name    string
	profile *auth.Profile
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthURL(state string) string {
	return "https://provider.test/authorize?state=" + state
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*auth.Profile, error) {
	if code != "good-code" {
		return nil, errors.New("bad code")
	}
	cp := *p.profile
	cp.Provider = p.name
	return &cp, nil
}

type fakeStates struct {
	issued map[string]string
	n      int
}

func (f *fakeStates) Issue(_ context.Context, provider string) (string, error) {
	f.n++
	state := "state-" + string(rune('a'+f.n))
	f.issued[state] = provider
	return state, nil
}

func (f *fakeStates) Consume(_ context.Context, state, provider string) (bool, error) {
	p, ok := f.issued[state]
	delete(f.issued, state)
	return ok && p == provider, nil
}

type authFixture struct {
	svc      *AuthService
	users    *fakeUsers
	sessions *fakeSessions
	manager  *session.Manager
	states   *fakeStates
	github   *fakeProvider
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	users := newFakeUsers()
	sessions := newFakeSessions()
	mgr := newTestSessionManager(t, sessions, users)
	states := &fakeStates{issued: map[string]string{}}
	gh := &fakeProvider{name: "github", profile: &auth.Profile{
		ID: "42", Email: "octo@example.com", EmailVerified: true, Name: "Octo Cat", Login: "Octo-Cat",
		AvatarURL: "https://avatars.test/42.png",
	}}
	return &authFixture{
		svc:      NewAuthService(users, testPasswords, mgr, sessions, states, gh),
		users:    users,
		sessions: sessions,
		manager:  mgr,
		states:   states,
		github:   gh,
	}
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.users.addUser(t, "ada", "correct horse")

	res, err := f.svc.Login(ctx, LoginInput{Email: "ADA@example.com", Password: "correct horse", Meta: session.Meta{Device: "laptop"}})
	require.NoError(t, err)
	assert.Equal(t, user.ID, res.User.ID)
	assert.Equal(t, "laptop", res.Session.Device)

	id, err := f.manager.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.Session.ID, id.Session.ID)
}

func TestLogin_Rejections(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.users.addUser(t, "ada", "correct horse")

	_, err := f.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "wrong horse"})
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))

	_, err = f.svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "correct horse"})
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))

	hash, _ := testPasswords.Hash("password123")
	_, err = f.users.Create(ctx, &models.User{Email: "new@example.com", Username: "newbie", PasswordHash: &hash})
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, LoginInput{Email: "new@example.com", Password: "password123"})
	assert.True(t, errors.Is(err, apperror.ErrForbidden), "unverified accounts are forbidden")

	_, err = f.users.CreateWithIdentity(ctx, &models.User{Email: "social@example.com", Username: "social"}, "github", "7")
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, LoginInput{Email: "social@example.com", Password: "anything1"})
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized), "social-only accounts have no password")
}

func TestLogin_TwoFactor(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.users.addUser(t, "ada", "correct horse")
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "Inkpress", AccountName: user.Email})
	require.NoError(t, err)
	require.NoError(t, f.users.SetTOTPSecret(ctx, user.ID, key.Secret()))
	require.NoError(t, f.users.EnableTOTP(ctx, user.ID))

	_, err = f.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "correct horse"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))
	assert.Contains(t, err.Error(), "two-factor code required")

	_, err = f.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "correct horse", Code: "000000"})
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "correct horse", Code: code})
	assert.NoError(t, err)
}

func TestLogoutAndSessions(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.users.addUser(t, "ada", "correct horse")
	other := f.users.addUser(t, "bob", "correct horse")

	first, err := f.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "correct horse", Meta: session.Meta{Device: "phone"}})
	require.NoError(t, err)
	second, err := f.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "correct horse", Meta: session.Meta{Device: "laptop"}})
	require.NoError(t, err)

	list, err := f.svc.Sessions(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	err = f.svc.RevokeSession(ctx, other.ID, first.Session.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "foreign sessions are not found")

	id, err := f.manager.Authenticate(ctx, second.Token)
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, id))
	_, err = f.manager.Authenticate(ctx, second.Token)
	assert.True(t, session.IsInvalid(err))

	list, err = f.svc.Sessions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.Session.ID, list[0].ID)
}

// callback runs a full social login round trip.
func (f *authFixture) callback(t *testing.T, provider string) (*LoginResult, error) {
	t.Helper()
	ctx := context.Background()
	redirect, err := f.svc.BeginSocialLogin(ctx, provider)
	require.NoError(t, err)
	state := redirect[strings.Index(redirect, "state=")+len("state="):]
	return f.svc.CompleteSocialLogin(ctx, provider, "good-code", state, session.Meta{})
}

func TestSocialLogin_CreatesVerifiedUser(t *testing.T) {
	f := newAuthFixture(t)

	res, err := f.callback(t, "github")
	require.NoError(t, err)
	assert.Equal(t, "octo_cat", res.User.Username)
	assert.Equal(t, "Octo Cat", res.User.DisplayName)
	assert.True(t, res.User.EmailVerified)
	assert.False(t, res.User.HasPassword())
	assert.NotEmpty(t, res.Token)

	again, err := f.callback(t, "github")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, again.User.ID, "the linked identity finds the same user")
}

func TestSocialLogin_LinksVerifiedEmail(t *testing.T) {
	f := newAuthFixture(t)
	hash, _ := testPasswords.Hash("password123")
	existing, err := f.users.Create(context.Background(), &models.User{Email: "octo@example.com", Username: "octo", PasswordHash: &hash})
	require.NoError(t, err)

	res, err := f.callback(t, "github")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, res.User.ID)
	assert.True(t, res.User.EmailVerified, "a provider-verified email verifies the account")
}

func TestSocialLogin_UnverifiedEmailConflicts(t *testing.T) {
	f := newAuthFixture(t)
	f.users.addUser(t, "octo", "password123")
	f.github.profile.Email = "octo@example.com"
	f.github.profile.EmailVerified = false

	_, err := f.callback(t, "github")
	assert.True(t, errors.Is(err, apperror.ErrConflict))
}

func TestSocialLogin_UsernameTaken(t *testing.T) {
	f := newAuthFixture(t)
	f.users.addUser(t, "octo_cat", "password123")

	res, err := f.callback(t, "github")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.User.Username, "octo_cat_"))
	assert.Regexp(t, `^[a-z0-9_]{3,30}$`, res.User.Username)
}

func TestSocialLogin_Rejections(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.BeginSocialLogin(ctx, "myspace")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	_, err = f.svc.CompleteSocialLogin(ctx, "github", "good-code", "forged", session.Meta{})
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	redirect, err := f.svc.BeginSocialLogin(ctx, "github")
	require.NoError(t, err)
	state := redirect[strings.Index(redirect, "state=")+len("state="):]
	_, err = f.svc.CompleteSocialLogin(ctx, "github", "bad-code", state, session.Meta{})
	assert.Error(t, err)
	_, err = f.svc.CompleteSocialLogin(ctx, "github", "good-code", state, session.Meta{})
	assert.True(t, errors.Is(err, apperror.ErrValidation), "state is single use")
}

func TestCleanUsername(t *testing.T) {
	tests := map[string]string{
		"Octo-Cat":                 "octo_cat",
		"a":                        "user",
		"__x__":                    "user",
		"José.Ramírez":             "jos_ram_rez",
		strings.Repeat("long", 10): strings.Repeat("long", 10)[:30],
	}
	for in, want := range tests {
		assert.Equal(t, want, cleanUsername(in), in)
	}
	assert.LessOrEqual(t, len(suffixUsername(strings.Repeat("x", 40))), 30)
}
