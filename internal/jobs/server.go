package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Server runs the email and maintenance task handlers.
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewServer wires the task handlers into an asynq server. cleanup may be
// nil, in which case session cleanup tasks are left unhandled.
func NewServer(opt asynq.RedisClientOpt, concurrency int, emails *EmailHandler, cleanup *CleanupHandler) *Server {
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			DefaultQueue: 10,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			slog.Error("task failed",
				"job_type", task.Type(),
				"retry", retried,
				"error", err,
			)
		}),
	})

	return &Server{server: server, mux: newMux(emails, cleanup)}
}

func newMux(emails *EmailHandler, cleanup *CleanupHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeVerifyEmail, emails.HandleVerifyEmail)
	mux.HandleFunc(TypeResetPassword, emails.HandlePasswordReset)
	if cleanup != nil {
		mux.HandleFunc(TypeCleanupSessions, cleanup.HandleCleanupSessions)
	}
	return mux
}

// Start begins processing in background goroutines.
func (s *Server) Start() error {
	slog.Info("starting asynq worker")
	return s.server.Start(s.mux)
}

// Shutdown waits for in-flight tasks and stops the server.
func (s *Server) Shutdown() {
	slog.Info("shutting down asynq worker")
	s.server.Shutdown()
}
