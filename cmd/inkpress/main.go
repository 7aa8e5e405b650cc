// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package main is the entry point for the Inkpress API server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"inkpress/internal/auth"
	"inkpress/internal/config"
	"inkpress/internal/database"
	"inkpress/internal/events"
	"inkpress/internal/handlers"
	"inkpress/internal/jobs"
	"inkpress/internal/middleware"
	"inkpress/internal/router"
	"inkpress/internal/service"
	"inkpress/internal/session"
	"inkpress/internal/storage"
	"inkpress/internal/store"
	"inkpress/internal/valkey"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// JSON logs in production, text in development.
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var logHandler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.IsDev() {
		logHandler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(logHandler))

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
	)

	ctx := context.Background()

	db, err := database.Connect(ctx, cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(ctx, db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	valkeyClient, err := valkey.Connect(ctx, cfg.ValkeyAddr(), cfg.ValkeyPassword, 0)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	var publisher events.Publisher = events.Nop{}
	if cfg.RabbitMQURL != "" {
		rabbit, err := events.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			slog.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		publisher = rabbit
	} else {
		slog.Warn("rabbitmq not configured, interaction events disabled")
	}
	defer publisher.Close()

	health := handlers.NewHealth(db, valkeyClient)

	// A nil *storage.Client must not reach ImageService as a non-nil interface.
	var objects service.ObjectStorage
	if cfg.StorageEnabled() {
		client, err := storage.New(
			cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey,
			cfg.S3BucketPublic, cfg.S3PublicURL,
		)
		if err != nil {
			slog.Error("failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		if client != nil {
			objects = client
			health.AddCheck("storage", client.Ping)
			slog.Info("s3 storage connected",
				"endpoint", cfg.S3Endpoint,
				"bucket", cfg.S3BucketPublic,
			)
		}
	} else {
		slog.Warn("s3 storage not configured, image uploads disabled")
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		slog.Error("invalid jwt secret", "error", err)
		os.Exit(1)
	}
	passwords := auth.NewPasswordService(auth.DefaultCost)

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	articleStore := store.NewArticleStore(db)
	categoryStore := store.NewCategoryStore(db)
	commentStore := store.NewCommentStore(db)

	sessions := session.NewManager(sessionStore, userStore, tokens, cfg.SessionTTL)

	queue := jobs.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.ValkeyAddr(),
		Password: cfg.ValkeyPassword,
	})
	defer queue.Close()

	var providers []auth.Provider
	if cfg.GitHubClientID != "" {
		providers = append(providers, auth.NewGitHubProvider(
			cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.BaseURL+"/auth/github/callback"))
	}
	if cfg.GoogleClientID != "" {
		providers = append(providers, auth.NewGoogleProvider(
			cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.BaseURL+"/auth/google/callback"))
	}

	h := router.Handlers{
		Health: health,
		Users: handlers.NewUsers(service.NewUserService(
			userStore, store.NewTokenStore(db), passwords, queue, publisher)),
		Auth: handlers.NewAuth(service.NewAuthService(
			userStore, passwords, sessions, sessionStore, auth.NewStateStore(valkeyClient), providers...)),
		Articles: handlers.NewArticles(service.NewArticleService(
			articleStore, categoryStore, store.NewTagStore(db), publisher)),
		Reactions: handlers.NewReactions(service.NewReactionService(
			store.NewReactionStore(db), articleStore, commentStore, publisher)),
		Comments:   handlers.NewComments(service.NewCommentService(commentStore, articleStore, publisher)),
		Categories: handlers.NewCategories(service.NewCategoryService(categoryStore)),
		Images:     handlers.NewImages(service.NewImageService(store.NewMediaStore(db), objects)),
	}

	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		slog.Error("invalid trusted proxies", "error", err)
		os.Exit(1)
	}
	limiter := middleware.NewRateLimiter(valkeyClient, "auth", cfg.AuthRateLimit, cfg.AuthRateWindow)
	r := router.New(sessions, limiter, proxies, h)

	// WriteTimeout covers image uploads with thumbnail generation.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
