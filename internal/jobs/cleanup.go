package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"inkpress/internal/metrics"
)

const (
	TypeCleanupSessions = "sessions:cleanup"

	// CleanupSchedule is the cron expression for session cleanup.
	CleanupSchedule = "@every 1h"
)

// SessionPurger deletes sessions that ended before cutoff.
type SessionPurger interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupHandler removes dead session rows. Rows are kept for retention
// after they expire or are revoked so recent sign-outs stay visible.
type CleanupHandler struct {
	sessions  SessionPurger
	retention time.Duration
	now       func() time.Time
}

// NewCleanupHandler creates a CleanupHandler.
func NewCleanupHandler(sessions SessionPurger, retention time.Duration) *CleanupHandler {
	return &CleanupHandler{sessions: sessions, retention: retention, now: time.Now}
}

// HandleCleanupSessions processes TypeCleanupSessions tasks.
func (h *CleanupHandler) HandleCleanupSessions(ctx context.Context, task *asynq.Task) error {
	n, err := h.sessions.DeleteExpired(ctx, h.now().Add(-h.retention))
	if err != nil {
		metrics.Jobs.WithLabelValues(task.Type(), "error").Inc()
		return fmt.Errorf("cleanup sessions: %w", err)
	}
	metrics.Jobs.WithLabelValues(task.Type(), "ok").Inc()
	slog.Info("expired sessions purged", "job_type", task.Type(), "deleted", n)
	return nil
}

// Scheduler enqueues periodic maintenance tasks.
type Scheduler struct {
	scheduler *asynq.Scheduler
}

// NewScheduler registers the periodic tasks on a new asynq scheduler.
func NewScheduler(opt asynq.RedisClientOpt) (*Scheduler, error) {
	s := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC})
	if _, err := s.Register(CleanupSchedule, asynq.NewTask(TypeCleanupSessions, nil),
		asynq.Queue(DefaultQueue), asynq.MaxRetry(1)); err != nil {
		return nil, fmt.Errorf("register %s: %w", TypeCleanupSessions, err)
	}
	return &Scheduler{scheduler: s}, nil
}

// Start runs the scheduler in background goroutines.
func (s *Scheduler) Start() error {
	slog.Info("starting asynq scheduler")
	return s.scheduler.Start()
}

// Shutdown stops the scheduler.
func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
