// Package valkey provides Valkey (Redis-compatible) client initialization.
// The client backs OAuth state, auth rate limiting and the job queue.
package valkey

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
)

// connectTries bounds how often Connect pings before giving up.
const connectTries = 5

// Connect creates a Valkey client and verifies the connection with a ping,
// retrying with exponential backoff while the server starts.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	_, err := backoff.Retry(ctx, func() (string, error) {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		res, err := client.Ping(pingCtx).Result()
		if err != nil {
			slog.Warn("valkey not ready", "addr", addr, "error", err)
		}
		return res, err
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(connectTries),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey ping: %w", err)
	}

	slog.Info("valkey connected", "addr", addr)
	return client, nil
}
