// Package main is the entry point for the Inkpress background worker. It
// delivers queued emails and runs the periodic session cleanup.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"inkpress/internal/config"
	"inkpress/internal/database"
	"inkpress/internal/jobs"
	"inkpress/internal/mail"
	"inkpress/internal/store"
)

// sessionRetention keeps ended sessions listable for a week before purging.
const sessionRetention = 7 * 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var logHandler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.IsDev() {
		logHandler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(logHandler))

	db, err := database.Connect(context.Background(), cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var sender mail.Sender = mail.LogSender{}
	if cfg.SMTPHost != "" {
		sender = mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
	} else {
		slog.Warn("smtp not configured, emails are logged instead of sent")
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.ValkeyAddr(),
		Password: cfg.ValkeyPassword,
	}

	server := jobs.NewServer(redisOpt, cfg.WorkerConcurrency,
		jobs.NewEmailHandler(sender, cfg.BaseURL),
		jobs.NewCleanupHandler(store.NewSessionStore(db), sessionRetention),
	)
	if err := server.Start(); err != nil {
		slog.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	scheduler, err := jobs.NewScheduler(redisOpt)
	if err != nil {
		slog.Error("failed to configure scheduler", "error", err)
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		slog.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	scheduler.Shutdown()
	server.Shutdown()
	slog.Info("worker stopped gracefully")
}
