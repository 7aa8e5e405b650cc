// store_test.go provides a shared test database helper for all store
// integration tests. Tests are skipped if PostgreSQL is not available.
package store

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"github.com/stretchr/testify/require"

	"inkpress/internal/database"
	"inkpress/internal/models"
)

// testDSN returns the PostgreSQL connection string for testing.
// Uses environment variables with defaults matching docker-compose.yml.
func testDSN() string {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "inkpress")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "inkpress")
	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test database and runs migrations.
// If the database is unavailable, the test is skipped. A cleanup
// function is registered to close the connection when the test finishes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, testDSN())
	if err != nil {
		t.Skipf("skipping integration test: DB not reachable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(db), "run migrations")
	return db
}

// createUser inserts a verified user with a unique email and username and
// removes it when the test finishes. Owned rows cascade.
func createUser(t *testing.T, db *sql.DB) *models.User {
	t.Helper()
	id := xid.New().String()
	hash := "not-a-real-hash"
	u, err := NewUserStore(db).Create(context.Background(), &models.User{
		Email:         "store-" + id + "@store-test.local",
		Username:      "u_" + id,
		DisplayName:   "Store Test",
		PasswordHash:  &hash,
		EmailVerified: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Exec("DELETE FROM users WHERE id = $1", u.ID) })
	return u
}

// fallbackCategoryID returns the seeded fallback category ID.
func fallbackCategoryID(t *testing.T, db *sql.DB) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	require.NoError(t, db.QueryRow("SELECT id FROM categories WHERE slug = $1", models.FallbackCategory).Scan(&id))
	return id
}

// createArticle inserts an article by author in the fallback category.
func createArticle(t *testing.T, db *sql.DB, author *models.User, tags ...string) *models.Article {
	t.Helper()
	a, err := NewArticleStore(db).Create(context.Background(), &models.Article{
		Slug:       "store-test-" + xid.New().String(),
		Title:      "Store Test",
		Body:       "Hello **world**",
		AuthorID:   author.ID,
		CategoryID: fallbackCategoryID(t, db),
	}, tags)
	require.NoError(t, err)
	return a
}
