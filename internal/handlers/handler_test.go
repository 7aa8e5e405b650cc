// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler integration
// tests. Tests are skipped when PostgreSQL or Valkey are unavailable.
package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"
	"github.com/stretchr/testify/require"

	"inkpress/internal/auth"
	"inkpress/internal/database"
	"inkpress/internal/events"
	"inkpress/internal/middleware"
	"inkpress/internal/models"
	"inkpress/internal/service"
	"inkpress/internal/session"
	"inkpress/internal/store"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test PostgreSQL and runs migrations.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "inkpress")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "inkpress")
	dsn := "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	db, err := database.Connect(ctx, dsn)
	if err != nil {
		t.Skipf("skipping: DB not reachable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// testValkeyClient returns a Redis client for handler tests on DB 15.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:     envOr("VALKEY_HOST", "localhost") + ":" + envOr("VALKEY_PORT", "6379"),
		Password: os.Getenv("VALKEY_PASSWORD"),
		DB:       15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, "oauth:state:*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})
	return client
}

// capturedEmail is one email job the test queue received.
type capturedEmail struct {
	Kind  string
	To    string
	Token string
}

// captureQueue records email jobs instead of enqueueing them, so tests can
// read the plaintext tokens.
type captureQueue struct {
	mu   sync.Mutex
	sent []capturedEmail
}

func (q *captureQueue) EnqueueVerifyEmail(_ context.Context, to, _, token string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, capturedEmail{Kind: "verify", To: to, Token: token})
	return nil
}

func (q *captureQueue) EnqueuePasswordReset(_ context.Context, to, _, token string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, capturedEmail{Kind: "reset", To: to, Token: token})
	return nil
}

// last returns the most recent email of kind sent to addr.
func (q *captureQueue) last(t *testing.T, kind, addr string) capturedEmail {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := len(q.sent) - 1; i >= 0; i-- {
		if q.sent[i].Kind == kind && q.sent[i].To == addr {
			return q.sent[i]
		}
	}
	t.Fatalf("no %s email sent to %s", kind, addr)
	return capturedEmail{}
}

// testEnv holds all dependencies for handler integration tests.
type testEnv struct {
	DB         *sql.DB
	Valkey     *redis.Client
	Queue      *captureQueue
	Sessions   *session.Manager
	Users      *Users
	Auth       *Auth
	Articles   *Articles
	Reactions  *Reactions
	Comments   *Comments
	Categories *Categories
}

// newTestEnv creates a complete test environment with all handler dependencies.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testDB(t)
	vk := testValkeyClient(t)

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789")
	require.NoError(t, err)
	passwords := auth.NewPasswordService(4)
	publisher := events.Nop{}
	queue := &captureQueue{}

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	articleStore := store.NewArticleStore(db)
	categoryStore := store.NewCategoryStore(db)
	commentStore := store.NewCommentStore(db)
	sessions := session.NewManager(sessionStore, userStore, tokens, 0)

	return &testEnv{
		DB:       db,
		Valkey:   vk,
		Queue:    queue,
		Sessions: sessions,
		Users: NewUsers(service.NewUserService(userStore, store.NewTokenStore(db),
			passwords, queue, publisher)),
		Auth: NewAuth(service.NewAuthService(userStore, passwords, sessions, sessionStore,
			auth.NewStateStore(vk))),
		Articles: NewArticles(service.NewArticleService(articleStore, categoryStore,
			store.NewTagStore(db), publisher)),
		Reactions: NewReactions(service.NewReactionService(store.NewReactionStore(db),
			articleStore, commentStore, publisher)),
		Comments:   NewComments(service.NewCommentService(commentStore, articleStore, publisher)),
		Categories: NewCategories(service.NewCategoryService(categoryStore)),
	}
}

// createUser inserts a verified user with the given password and role and
// removes it when the test finishes.
func (e *testEnv) createUser(t *testing.T, password string, role models.Role) *models.User {
	t.Helper()
	hash, err := auth.NewPasswordService(4).Hash(password)
	require.NoError(t, err)
	id := xid.New().String()
	u, err := store.NewUserStore(e.DB).Create(context.Background(), &models.User{
		Email:         "handler-" + id + "@handler-test.local",
		Username:      "h_" + id,
		DisplayName:   "Handler Test",
		PasswordHash:  &hash,
		Role:          role,
		EmailVerified: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { e.DB.Exec("DELETE FROM users WHERE id = $1", u.ID) })
	return u
}

// as authenticates req as user by opening a real session for them.
func (e *testEnv) as(t *testing.T, req *http.Request, user *models.User) *http.Request {
	t.Helper()
	token, _, err := e.Sessions.Issue(req.Context(), user, session.Meta{Device: "test"})
	require.NoError(t, err)
	id, err := e.Sessions.Authenticate(req.Context(), token)
	require.NoError(t, err)
	return req.WithContext(middleware.WithIdentity(req.Context(), id))
}

// jsonRequest builds a request with a JSON-encoded body. A nil body sends
// no body at all; a string is sent verbatim.
func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// withURLParams adds chi URL parameters to the request context so
// handlers calling chi.URLParam work without a router.
func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeBody decodes a JSON response body into a generic map.
func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), "body: %s", rr.Body.String())
	return body
}
