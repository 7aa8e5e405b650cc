package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"inkpress/internal/auth"
)

// Seed populates the database with a development admin account if no
// users exist. Categories are seeded by the migrations themselves.
func Seed(ctx context.Context, db *sql.DB) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("seed check users: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	hash, err := auth.NewPasswordService(auth.DefaultCost).Hash("admin12345")
	if err != nil {
		return fmt.Errorf("seed hash password: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO users (email, username, display_name, password_hash, role, email_verified)
		VALUES ($1, $2, $3, $4, $5, TRUE)
	`, "admin@inkpress.local", "admin", "Admin", hash, "admin")
	if err != nil {
		return fmt.Errorf("seed insert admin: %w", err)
	}

	slog.Info("database seeded with default admin user",
		"email", "admin@inkpress.local",
		"password", "admin12345",
	)

	return nil
}
