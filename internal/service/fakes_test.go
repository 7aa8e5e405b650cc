package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"inkpress/internal/apperror"
	"inkpress/internal/auth"
	"inkpress/internal/events"
	"inkpress/internal/models"
	"inkpress/internal/session"
)

// The fakes below are in-memory versions of the stores. They model the
// behavior the services depend on, including conflicts and not-found
// results, without a database.

type fakeUsers struct {
	mu         sync.Mutex
	byID       map[uuid.UUID]*models.User
	identities map[string]uuid.UUID // provider + ":" + id
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[uuid.UUID]*models.User{}, identities: map[string]uuid.UUID{}}
}

func (f *fakeUsers) get(id uuid.UUID) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byID[id]
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return f.get(id), nil
}

func (f *fakeUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range f.byID {
		if existing.Email == email {
			return nil, apperror.Conflict("email", "email already registered")
		}
		if existing.Username == u.Username {
			return nil, apperror.Conflict("username", "username already taken")
		}
	}
	cp := *u
	cp.ID = uuid.New()
	cp.Email = email
	if cp.Role == "" {
		cp.Role = models.RoleUser
	}
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	f.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing := f.byID[u.ID]
	existing.DisplayName = u.DisplayName
	existing.Bio = u.Bio
	existing.AvatarURL = u.AvatarURL
	return nil
}

func (f *fakeUsers) SetTOTPSecret(_ context.Context, userID uuid.UUID, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[userID].TOTPSecret = &secret
	return nil
}

func (f *fakeUsers) EnableTOTP(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[userID].TOTPEnabled = true
	return nil
}

func (f *fakeUsers) ResetTOTP(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[userID].TOTPEnabled = false
	f.byID[userID].TOTPSecret = nil
	return nil
}

func (f *fakeUsers) FindByIdentity(_ context.Context, provider, providerUserID string) (*models.User, error) {
	f.mu.Lock()
	id, ok := f.identities[provider+":"+providerUserID]
	f.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return f.get(id), nil
}

func (f *fakeUsers) LinkIdentity(_ context.Context, userID uuid.UUID, provider, providerUserID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identities[provider+":"+providerUserID] = userID
	f.byID[userID].EmailVerified = true
	return nil
}

func (f *fakeUsers) CreateWithIdentity(ctx context.Context, u *models.User, provider, providerUserID string) (*models.User, error) {
	u.EmailVerified = true
	u.PasswordHash = nil
	created, err := f.Create(ctx, u)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.identities[provider+":"+providerUserID] = created.ID
	f.mu.Unlock()
	return created, nil
}

// addUser stores a verified user with the given password.
func (f *fakeUsers) addUser(t *testing.T, username, password string) *models.User {
	t.Helper()
	hash, err := testPasswords.Hash(password)
	require.NoError(t, err)
	u, err := f.Create(context.Background(), &models.User{
		Email:         username + "@example.com",
		Username:      username,
		DisplayName:   username,
		PasswordHash:  &hash,
		EmailVerified: true,
	})
	require.NoError(t, err)
	return u
}

type fakeToken struct {
	userID  uuid.UUID
	purpose models.TokenPurpose
	expires time.Time
	used    bool
}

type fakeTokens struct {
	users    *fakeUsers
	sessions *fakeSessions
	byHash   map[string]*fakeToken
}

func newFakeTokens(users *fakeUsers, sessions *fakeSessions) *fakeTokens {
	return &fakeTokens{users: users, sessions: sessions, byHash: map[string]*fakeToken{}}
}

func (f *fakeTokens) Create(_ context.Context, userID uuid.UUID, purpose models.TokenPurpose, hash string, ttl time.Duration) error {
	for _, t := range f.byHash {
		if t.userID == userID && t.purpose == purpose {
			t.used = true
		}
	}
	f.byHash[hash] = &fakeToken{userID: userID, purpose: purpose, expires: time.Now().Add(ttl)}
	return nil
}

func (f *fakeTokens) consume(purpose models.TokenPurpose, hash string) (uuid.UUID, error) {
	t, ok := f.byHash[hash]
	if !ok || t.used || t.purpose != purpose || time.Now().After(t.expires) {
		return uuid.Nil, apperror.ValidationFailed("token", "invalid or expired token")
	}
	t.used = true
	return t.userID, nil
}

func (f *fakeTokens) VerifyEmail(_ context.Context, hash string) (uuid.UUID, error) {
	id, err := f.consume(models.TokenVerifyEmail, hash)
	if err != nil {
		return uuid.Nil, err
	}
	f.users.mu.Lock()
	f.users.byID[id].EmailVerified = true
	f.users.mu.Unlock()
	return id, nil
}

func (f *fakeTokens) ResetPassword(_ context.Context, hash, passwordHash string) (uuid.UUID, error) {
	id, err := f.consume(models.TokenResetPassword, hash)
	if err != nil {
		return uuid.Nil, err
	}
	f.users.mu.Lock()
	f.users.byID[id].PasswordHash = &passwordHash
	f.users.mu.Unlock()
	if f.sessions != nil {
		f.sessions.revokeAll(id)
	}
	return id, nil
}

// pending counts unused tokens for a user and purpose.
func (f *fakeTokens) pending(userID uuid.UUID, purpose models.TokenPurpose) int {
	n := 0
	for _, t := range f.byHash {
		if t.userID == userID && t.purpose == purpose && !t.used {
			n++
		}
	}
	return n
}

type fakeSessions struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{rows: map[uuid.UUID]*models.Session{}}
}

func (f *fakeSessions) Create(_ context.Context, s *models.Session, ttl time.Duration) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	cp.ID = uuid.New()
	cp.CreatedAt = time.Now()
	cp.LastSeenAt = cp.CreatedAt
	cp.ExpiresAt = cp.CreatedAt.Add(ttl)
	f.rows[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeSessions) FindByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) Touch(context.Context, uuid.UUID) error { return nil }

func (f *fakeSessions) Revoke(_ context.Context, id, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[id]
	if !ok || s.UserID != userID || s.RevokedAt != nil {
		return false, nil
	}
	now := time.Now()
	s.RevokedAt = &now
	return true, nil
}

func (f *fakeSessions) ListActive(_ context.Context, userID uuid.UUID) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Session
	for _, s := range f.rows {
		if s.UserID == userID && s.Active(time.Now()) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessions) revokeAll(userID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, s := range f.rows {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &now
		}
	}
}

type queuedEmail struct {
	kind, to, token string
}

type fakeQueue struct {
	sent []queuedEmail
	err  error
}

func (f *fakeQueue) EnqueueVerifyEmail(_ context.Context, to, _, token string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, queuedEmail{"verify", to, token})
	return nil
}

func (f *fakeQueue) EnqueuePasswordReset(_ context.Context, to, _, token string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, queuedEmail{"reset", to, token})
	return nil
}

func (f *fakeQueue) last(t *testing.T) queuedEmail {
	t.Helper()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, ev events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.Type
	}
	return out
}

type fakeCategories struct {
	rows []models.Category
}

func newFakeCategories() *fakeCategories {
	f := &fakeCategories{}
	for i, name := range []string{"technology", "travel", "other"} {
		f.rows = append(f.rows, models.Category{ID: uuid.New(), Name: strings.ToUpper(name[:1]) + name[1:], Slug: name, SortOrder: i})
	}
	return f
}

func (f *fakeCategories) List(context.Context) ([]models.Category, error) {
	return append([]models.Category(nil), f.rows...), nil
}

func (f *fakeCategories) Resolve(_ context.Context, nameOrSlug string) (*models.Category, error) {
	for _, c := range f.rows {
		if strings.EqualFold(c.Name, nameOrSlug) || strings.EqualFold(c.Slug, nameOrSlug) {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeCategories) byID(id uuid.UUID) models.Category {
	for _, c := range f.rows {
		if c.ID == id {
			return c
		}
	}
	return models.Category{}
}

func (f *fakeCategories) Create(_ context.Context, c *models.Category) (*models.Category, error) {
	for _, existing := range f.rows {
		if strings.EqualFold(existing.Name, c.Name) || existing.Slug == c.Slug {
			return nil, apperror.Conflict("name", "category already exists")
		}
	}
	cp := *c
	cp.ID = uuid.New()
	f.rows = append(f.rows, cp)
	return &cp, nil
}

func (f *fakeCategories) Delete(_ context.Context, slug string) (int64, error) {
	for i, c := range f.rows {
		if c.Slug == slug {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return 0, nil
		}
	}
	return 0, apperror.NotFound("category", slug)
}

type fakeArticles struct {
	mu         sync.Mutex
	rows       map[uuid.UUID]*models.Article
	categories *fakeCategories
	users      *fakeUsers
}

func newFakeArticles(categories *fakeCategories, users *fakeUsers) *fakeArticles {
	return &fakeArticles{rows: map[uuid.UUID]*models.Article{}, categories: categories, users: users}
}

func (f *fakeArticles) hydrate(a *models.Article) *models.Article {
	cp := *a
	cp.Tags = append([]string{}, a.Tags...)
	cat := f.categories.byID(a.CategoryID)
	cp.Category = models.CategoryRef{Name: cat.Name, Slug: cat.Slug}
	if u := f.users.get(a.AuthorID); u != nil {
		cp.Author = models.Author{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName}
	}
	return &cp
}

func (f *fakeArticles) Create(_ context.Context, a *models.Article, tags []string) (*models.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rows {
		if existing.Slug == a.Slug {
			return nil, apperror.Conflict("slug", "slug already exists")
		}
	}
	cp := *a
	cp.ID = uuid.New()
	cp.Tags = append([]string{}, tags...)
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	f.rows[cp.ID] = &cp
	return f.hydrate(&cp), nil
}

func (f *fakeArticles) Update(_ context.Context, a *models.Article, tags []string) (*models.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.rows[a.ID]
	if !ok {
		return nil, apperror.NotFound("article", a.Slug)
	}
	existing.Title = a.Title
	existing.Description = a.Description
	existing.Body = a.Body
	existing.ImageURL = a.ImageURL
	existing.CategoryID = a.CategoryID
	if tags != nil {
		existing.Tags = append([]string{}, tags...)
	}
	return f.hydrate(existing), nil
}

func (f *fakeArticles) FindBySlug(_ context.Context, slug string) (*models.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.rows {
		if a.Slug == slug {
			return f.hydrate(a), nil
		}
	}
	return nil, nil
}

func (f *fakeArticles) FindByID(_ context.Context, id uuid.UUID) (*models.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.rows[id]; ok {
		return f.hydrate(a), nil
	}
	return nil, nil
}

func (f *fakeArticles) SlugExists(_ context.Context, slug string) (bool, error) {
	a, _ := f.FindBySlug(context.Background(), slug)
	return a != nil, nil
}

func (f *fakeArticles) List(_ context.Context, filter models.ArticleFilter) ([]models.Article, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []models.Article
	for _, a := range f.rows {
		h := f.hydrate(a)
		if h.IsArchived {
			continue
		}
		if filter.Category != "" && h.Category.Slug != filter.Category {
			continue
		}
		if filter.Author != "" && h.Author.Username != filter.Author {
			continue
		}
		if filter.Tag != "" && !contains(h.Tags, filter.Tag) {
			continue
		}
		matched = append(matched, *h)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	if filter.Offset >= total {
		return nil, total, nil
	}
	end := min(filter.Offset+filter.Limit, total)
	return matched[filter.Offset:end], total, nil
}

func (f *fakeArticles) SetArchived(_ context.Context, id uuid.UUID, archived bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[id].IsArchived = archived
	return nil
}

func (f *fakeArticles) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type fakeTags struct{ rows []models.Tag }

func (f *fakeTags) List(context.Context) ([]models.Tag, error) { return f.rows, nil }

type fakeComments struct {
	rows     map[uuid.UUID]*models.Comment
	articles *fakeArticles
}

func newFakeComments(articles *fakeArticles) *fakeComments {
	return &fakeComments{rows: map[uuid.UUID]*models.Comment{}, articles: articles}
}

func (f *fakeComments) Create(_ context.Context, c *models.Comment) (*models.Comment, error) {
	f.articles.mu.Lock()
	a, ok := f.articles.rows[c.ArticleID]
	if ok {
		a.CommentsCount++
	}
	f.articles.mu.Unlock()
	if !ok {
		return nil, apperror.NotFound("article", c.ArticleID.String())
	}
	cp := *c
	cp.ID = uuid.New()
	cp.CreatedAt = time.Now()
	f.rows[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeComments) FindByID(_ context.Context, id uuid.UUID) (*models.Comment, error) {
	c, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeComments) ListByArticle(_ context.Context, articleID uuid.UUID) ([]models.Comment, error) {
	var out []models.Comment
	for _, c := range f.rows {
		if c.ArticleID == articleID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeComments) Delete(_ context.Context, c *models.Comment) error {
	delete(f.rows, c.ID)
	f.articles.mu.Lock()
	if a, ok := f.articles.rows[c.ArticleID]; ok && a.CommentsCount > 0 {
		a.CommentsCount--
	}
	f.articles.mu.Unlock()
	return nil
}

type reactionKey struct {
	target   models.TargetType
	targetID uuid.UUID
	userID   uuid.UUID
}

// fakeReactions applies the same state machine as the store and recounts
// from its rows after every change.
type fakeReactions struct {
	mu   sync.Mutex
	rows map[reactionKey]models.ReactionKind
}

func newFakeReactions() *fakeReactions {
	return &fakeReactions{rows: map[reactionKey]models.ReactionKind{}}
}

func (f *fakeReactions) Apply(_ context.Context, target models.TargetType, targetID, userID uuid.UUID, kind models.ReactionKind, remove bool) (*models.ReactionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := reactionKey{target, targetID, userID}
	var current *models.ReactionKind
	if k, ok := f.rows[key]; ok {
		current = &k
	}
	action := models.NextReaction(current, kind, remove)
	switch action {
	case models.ActionInsert, models.ActionSwitch:
		f.rows[key] = kind
	case models.ActionDelete:
		delete(f.rows, key)
	}
	var counts models.Counts
	for k, v := range f.rows {
		if k.target == target && k.targetID == targetID {
			if v == models.ReactionLike {
				counts.Likes++
			} else {
				counts.Dislikes++
			}
		}
	}
	return &models.ReactionResult{Action: action, Counts: counts}, nil
}

type fakeMedia struct {
	rows map[uuid.UUID]*models.Media
	err  error
}

func newFakeMedia() *fakeMedia { return &fakeMedia{rows: map[uuid.UUID]*models.Media{}} }

func (f *fakeMedia) Create(_ context.Context, m *models.Media) (*models.Media, error) {
	if f.err != nil {
		return nil, f.err
	}
	cp := *m
	cp.ID = uuid.New()
	cp.CreatedAt = time.Now()
	f.rows[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeMedia) FindByID(_ context.Context, id uuid.UUID) (*models.Media, error) {
	m, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMedia) ListByUploader(_ context.Context, uploaderID uuid.UUID, limit, offset int) ([]models.Media, error) {
	var out []models.Media
	for _, m := range f.rows {
		if m.UploaderID == uploaderID {
			out = append(out, *m)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:min(offset+limit, len(out))], nil
}

func (f *fakeMedia) Delete(_ context.Context, id uuid.UUID) (*models.Media, error) {
	m, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	delete(f.rows, id)
	return m, nil
}

type fakeStorage struct {
	objects   map[string][]byte
	uploadErr error
}

func newFakeStorage() *fakeStorage { return &fakeStorage{objects: map[string][]byte{}} }

func (f *fakeStorage) Upload(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	if _, ok := f.objects[key]; !ok {
		return errors.New("no such key")
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) FileURL(key string) string { return "https://cdn.test/" + key }
func (f *fakeStorage) Bucket() string            { return "inkpress-test" }

// testPasswords uses the minimum bcrypt cost to keep tests fast.
var testPasswords = auth.NewPasswordService(4)

func newTestSessionManager(t *testing.T, sessions *fakeSessions, users *fakeUsers) *session.Manager {
	t.Helper()
	tokens, err := auth.NewTokenService("service-test-secret-0123456789")
	require.NoError(t, err)
	return session.NewManager(sessions, users, tokens, time.Hour)
}
