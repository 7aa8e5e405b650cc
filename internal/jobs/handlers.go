package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"inkpress/internal/mail"
	"inkpress/internal/metrics"
)

// EmailHandler renders and sends the emails behind each task type.
type EmailHandler struct {
	sender  mail.Sender
	baseURL string
}

// NewEmailHandler creates an EmailHandler. Links in emails point at baseURL.
func NewEmailHandler(sender mail.Sender, baseURL string) *EmailHandler {
	return &EmailHandler{sender: sender, baseURL: baseURL}
}

// HandleVerifyEmail processes TypeVerifyEmail tasks.
func (h *EmailHandler) HandleVerifyEmail(ctx context.Context, task *asynq.Task) error {
	return h.handle(ctx, task, mail.VerifyEmail)
}

// HandlePasswordReset processes TypeResetPassword tasks.
func (h *EmailHandler) HandlePasswordReset(ctx context.Context, task *asynq.Task) error {
	return h.handle(ctx, task, mail.PasswordReset)
}

type buildFunc func(baseURL, to, name, token string) (mail.Message, error)

func (h *EmailHandler) handle(ctx context.Context, task *asynq.Task, build buildFunc) error {
	var p EmailPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		metrics.Jobs.WithLabelValues(task.Type(), "invalid").Inc()
		// A malformed payload never succeeds on retry.
		return fmt.Errorf("decode %s payload: %v: %w", task.Type(), err, asynq.SkipRetry)
	}

	msg, err := build(h.baseURL, p.To, p.Name, p.Token)
	if err != nil {
		metrics.Jobs.WithLabelValues(task.Type(), "error").Inc()
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if err := h.sender.Send(ctx, msg); err != nil {
		metrics.Jobs.WithLabelValues(task.Type(), "error").Inc()
		return err
	}

	metrics.Jobs.WithLabelValues(task.Type(), "ok").Inc()
	slog.Info("email sent", "job_type", task.Type(), "to", p.To)
	return nil
}
