// Package jobs enqueues and processes background email jobs on asynq,
// which stores its queues in Valkey.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeVerifyEmail   = "email:verify"
	TypeResetPassword = "email:reset"
	DefaultQueue      = "default"

	maxRetry    = 5
	taskTimeout = 30 * time.Second
)

// EmailPayload is the task body for both email job types.
type EmailPayload struct {
	To    string `json:"to"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

// Client enqueues email jobs.
type Client struct {
	client *asynq.Client
}

// NewClient creates a Client on the given Valkey connection options.
func NewClient(opt asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(opt)}
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueVerifyEmail schedules the address verification email.
func (c *Client) EnqueueVerifyEmail(ctx context.Context, to, name, token string) error {
	return c.enqueue(ctx, TypeVerifyEmail, EmailPayload{To: to, Name: name, Token: token})
}

// EnqueuePasswordReset schedules the password reset email.
func (c *Client) EnqueuePasswordReset(ctx context.Context, to, name, token string) error {
	return c.enqueue(ctx, TypeResetPassword, EmailPayload{To: to, Name: name, Token: token})
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload EmailPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", taskType, err)
	}

	task := asynq.NewTask(taskType, body,
		asynq.Queue(DefaultQueue),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(taskTimeout),
	)
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}

	slog.Info("job enqueued", "job_id", info.ID, "job_type", taskType, "queue", info.Queue)
	return nil
}
